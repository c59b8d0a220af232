package packer

import (
	"cmp"
	"math"
	"slices"
)

type demandKey struct {
	store       string
	arm         Arm
	product     string
	description string
	unitVolume  float64
	unitWeight  float64
	uom         string
}

// groupKey identifies one independently packed group.
type groupKey struct {
	store string
	arm   Arm
}

func (k groupKey) compare(o groupKey) int {
	if c := cmp.Compare(k.store, o.store); c != 0 {
		return c
	}
	return compareArm(k.arm, o.arm)
}

func compareArm(a, b Arm) int {
	if a.set != b.set {
		if !a.set {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.id, b.id)
}

func keyFor(store string, arm Arm, ignoreArm bool) groupKey {
	if ignoreArm {
		arm = NoArm()
	}
	return groupKey{store: store, arm: arm}
}

// BuildDemand sums normalized lines into one Demand per distinct key and orders
// them by unit volume, then unit weight, both descending. Remaining ties are
// broken on the identifying fields so the order never depends on input order.
// Lines with no quantity contribute nothing.
func BuildDemand(lines []NormalizedLine, ignoreArm bool) []Demand {
	sums := make(map[demandKey]float64, len(lines))
	keys := make([]demandKey, 0, len(lines))

	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		group := keyFor(line.StoreID, line.Arm, ignoreArm)
		key := demandKey{
			store:       group.store,
			arm:         group.arm,
			product:     line.ProductID,
			description: line.Description,
			unitVolume:  line.UnitVolume,
			unitWeight:  line.UnitWeight,
			uom:         line.UnitOfMeasure,
		}
		if _, seen := sums[key]; !seen {
			keys = append(keys, key)
		}
		sums[key] += line.Quantity
	}

	demand := make([]Demand, 0, len(keys))
	for _, key := range keys {
		demand = append(demand, Demand{
			StoreID:       key.store,
			Arm:           key.arm,
			ProductID:     key.product,
			Description:   key.description,
			UnitVolume:    key.unitVolume,
			UnitWeight:    key.unitWeight,
			UnitOfMeasure: key.uom,
			Quantity:      int(math.Floor(sums[key])),
		})
	}

	slices.SortFunc(demand, compareDemand)
	return demand
}

func compareDemand(a, b Demand) int {
	if c := cmp.Compare(b.UnitVolume, a.UnitVolume); c != 0 {
		return c
	}
	if c := cmp.Compare(b.UnitWeight, a.UnitWeight); c != 0 {
		return c
	}
	if c := (groupKey{a.StoreID, a.Arm}).compare(groupKey{b.StoreID, b.Arm}); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ProductID, b.ProductID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Description, b.Description); c != 0 {
		return c
	}
	return cmp.Compare(a.UnitOfMeasure, b.UnitOfMeasure)
}

// splitGroups partitions sorted demand by (store, arm) preserving order within
// each group, and returns the groups in ascending key order.
func splitGroups(demand []Demand) ([]groupKey, map[groupKey][]Demand) {
	groups := make(map[groupKey][]Demand)
	var order []groupKey
	for _, d := range demand {
		key := groupKey{store: d.StoreID, arm: d.Arm}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], d)
	}
	slices.SortFunc(order, groupKey.compare)
	return order, groups
}
