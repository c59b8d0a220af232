package packer

import (
	"context"
	"fmt"
	"math"
)

// Counter hands out box sequence numbers for one run.
type Counter struct {
	next int
}

// NewCounter returns a Counter whose first value is 1.
func NewCounter() *Counter {
	return &Counter{next: 1}
}

// Next returns the current value and advances the counter.
func (c *Counter) Next() int {
	n := c.next
	c.next++
	return n
}

// Box accumulates units while a group is being packed.
type Box struct {
	ID        string
	StoreID   string
	Arm       Arm
	Volume    float64
	Weight    float64
	Oversized bool

	products map[productKey]*boxProduct
	order    []productKey
}

// productKey separates demands that share a product id but differ otherwise.
type productKey struct {
	product     string
	description string
	uom         string
	unitVolume  float64
	unitWeight  float64
}

type boxProduct struct {
	quantity int
	volume   float64
	weight   float64
}

func newBox(id string, key groupKey) *Box {
	return &Box{
		ID:       id,
		StoreID:  key.store,
		Arm:      key.arm,
		products: make(map[productKey]*boxProduct),
	}
}

func (b *Box) add(d Demand, units int) {
	key := productKey{
		product:     d.ProductID,
		description: d.Description,
		uom:         d.UnitOfMeasure,
		unitVolume:  d.UnitVolume,
		unitWeight:  d.UnitWeight,
	}
	p, ok := b.products[key]
	if !ok {
		p = &boxProduct{}
		b.products[key] = p
		b.order = append(b.order, key)
	}
	volume := d.UnitVolume * float64(units)
	weight := d.UnitWeight * float64(units)
	p.quantity += units
	p.volume += volume
	p.weight += weight
	b.Volume += volume
	b.Weight += weight
}

// Lines flattens the box into one BoxLine per product, in placement order.
func (b *Box) Lines() []BoxLine {
	armID, _ := b.Arm.ID()
	lines := make([]BoxLine, 0, len(b.order))
	for _, key := range b.order {
		p := b.products[key]
		lines = append(lines, BoxLine{
			BoxID:         b.ID,
			StoreID:       b.StoreID,
			ArmID:         armID,
			ProductID:     key.product,
			Description:   key.description,
			UnitOfMeasure: key.uom,
			Quantity:      p.quantity,
			Volume:        p.volume,
			Weight:        p.weight,
			BoxVolume:     b.Volume,
			BoxWeight:     b.Weight,
			Oversized:     b.Oversized,
		})
	}
	return lines
}

// Engine places sorted demand into boxes under one placement policy.
type Engine struct {
	limits Limits
	policy Policy
}

// NewEngine validates its arguments and returns an Engine.
func NewEngine(limits Limits, policy Policy) (*Engine, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if policy != FirstFit && policy != BestFit {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	return &Engine{limits: limits, policy: policy}, nil
}

// Pack runs the engine over demand as produced by BuildDemand. Each call owns
// its own box counter, so concurrent calls on one Engine are safe.
func (e *Engine) Pack(ctx context.Context, demand []Demand) (Result, error) {
	counter := NewCounter()
	order, groups := splitGroups(demand)

	result := Result{Policy: e.policy}
	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		boxes := e.packGroup(key, groups[key], counter)
		for _, box := range boxes {
			result.Lines = append(result.Lines, box.Lines()...)
		}
		result.BoxCount += len(boxes)
	}
	return result, nil
}

func (e *Engine) packGroup(key groupKey, demand []Demand, counter *Counter) []*Box {
	var boxes []*Box
	var open []*Box
	prefix := boxPrefix(key)

	for _, d := range demand {
		if d.Quantity <= 0 {
			continue
		}
		if d.UnitVolume > e.limits.VolumeMax || d.UnitWeight > e.limits.WeightMax {
			box := newBox(fmt.Sprintf("%s_%d", prefix, counter.Next()), key)
			box.Oversized = true
			box.add(d, d.Quantity)
			boxes = append(boxes, box)
			continue
		}

		remaining := d.Quantity
		for remaining > 0 {
			idx := e.selectBox(open, d, remaining)
			if idx < 0 {
				box := newBox(fmt.Sprintf("%s_%d", prefix, counter.Next()), key)
				boxes = append(boxes, box)
				open = append(open, box)
				continue
			}
			box := open[idx]
			units := e.fit(box, d, remaining)
			box.add(d, units)
			remaining -= units
		}
	}
	return boxes
}

// selectBox returns the index of the open box chosen for d, or -1.
func (e *Engine) selectBox(open []*Box, d Demand, remaining int) int {
	best := -1
	bestLeftover := math.Inf(1)
	for i, box := range open {
		units := e.fit(box, d, remaining)
		if units <= 0 {
			continue
		}
		if e.policy == FirstFit {
			return i
		}
		n := float64(units)
		leftover := (e.limits.VolumeMax - (box.Volume + d.UnitVolume*n)) +
			(e.limits.WeightMax - (box.Weight + d.UnitWeight*n))
		if best < 0 || leftover < bestLeftover {
			best = i
			bestLeftover = leftover
		}
	}
	return best
}

// fit is the number of whole units of d that box still accepts, capped at remaining.
func (e *Engine) fit(box *Box, d Demand, remaining int) int {
	units := remaining
	units = min(units, unitsWithin(box.Volume, e.limits.VolumeMax, d.UnitVolume, remaining))
	units = min(units, unitsWithin(box.Weight, e.limits.WeightMax, d.UnitWeight, remaining))
	return units
}

// unitsWithin counts the units of size unit that fit between used and limit.
// The result never takes used+unit*n past limit.
func unitsWithin(used, limit, unit float64, remaining int) int {
	if unit <= 0 {
		return remaining
	}
	n := floorDiv(limit-used, unit)
	if n <= 0 {
		return 0
	}
	if n >= float64(remaining) {
		n = float64(remaining)
	}
	for n > 0 && used+unit*n > limit {
		n--
	}
	return int(n)
}

// floorDiv is floor(x/y) computed from the remainder of x by y, so that a
// quotient rounding up across an integer does not add a unit.
func floorDiv(x, y float64) float64 {
	mod := math.Mod(x, y)
	div := (x - mod) / y
	if mod != 0 && (y < 0) != (mod < 0) {
		div--
	}
	if div == 0 {
		return 0
	}
	q := math.Floor(div)
	if div-q > 0.5 {
		q++
	}
	return q
}

func boxPrefix(key groupKey) string {
	if arm, ok := key.arm.ID(); ok {
		return key.store + "_" + arm
	}
	return key.store
}
