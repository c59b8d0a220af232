package packer

import (
	"context"
	"encoding/json"
	"math"
	"strings"
)

// Unit-of-measure codes understood by the normalizer.
const (
	UnitOfMeasureSingle  = "UN"
	UnitOfMeasurePackage = "PAC"
)

// WeightUnit is the unit a line's total weight is expressed in.
type WeightUnit int

const (
	Kilogram WeightUnit = iota
	Gram
)

// ParseWeightUnit maps a raw weight-unit code to a WeightUnit. Anything that is
// not recognisably grams is treated as kilograms.
func ParseWeightUnit(raw string) WeightUnit {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "G", "GR", "GRAM", "GRAMS", "GRAMA", "GRAMAS":
		return Gram
	default:
		return Kilogram
	}
}

func (u WeightUnit) String() string {
	if u == Gram {
		return "G"
	}
	return "KG"
}

// Arm identifies the zone a line is picked from. The zero value is NoArm.
type Arm struct {
	id  string
	set bool
}

// WithArm returns an Arm for id. A blank id yields NoArm.
func WithArm(id string) Arm {
	id = strings.TrimSpace(id)
	if id == "" {
		return NoArm()
	}
	return Arm{id: id, set: true}
}

// NoArm returns the absent arm.
func NoArm() Arm {
	return Arm{}
}

// ID returns the arm identifier and whether one is present.
func (a Arm) ID() (string, bool) {
	return a.id, a.set
}

func (a Arm) String() string {
	return a.id
}

func (a Arm) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	return json.Marshal(a.id)
}

func (a *Arm) UnmarshalJSON(data []byte) error {
	var id *string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	if id == nil {
		*a = NoArm()
		return nil
	}
	*a = WithArm(*id)
	return nil
}

// Limits bounds the content of a single box.
type Limits struct {
	VolumeMax float64 `json:"volumeMax" yaml:"volume_max"`
	WeightMax float64 `json:"weightMax" yaml:"weight_max"`
}

// Validate reports whether both limits are finite and positive.
func (l Limits) Validate() error {
	if !positiveFinite(l.VolumeMax) || !positiveFinite(l.WeightMax) {
		return ErrInvalidLimits
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Policy selects how the engine chooses among open boxes.
type Policy string

const (
	FirstFit Policy = "FFD"
	BestFit  Policy = "BFD"
)

// OrderLine is one raw input row. It is never mutated.
type OrderLine struct {
	StoreID         string `json:"storeId"`
	Arm             Arm    `json:"armId"`
	ProductID       string `json:"productId"`
	Description     string `json:"description"`
	Quantity        Number `json:"quantity"`
	TotalWeight     Number `json:"totalWeight"`
	TotalVolume     Number `json:"totalVolume"`
	WeightUnit      string `json:"weightUnit,omitempty"`
	UnitOfMeasure   string `json:"unitOfMeasure,omitempty"`
	UnitsRequested  Number `json:"unitsRequested,omitempty"`
	HistoricalBoxID string `json:"historicalBoxId,omitempty"`
}

// NormalizedLine is an OrderLine with per-unit figures resolved.
type NormalizedLine struct {
	StoreID       string
	Arm           Arm
	ProductID     string
	Description   string
	UnitOfMeasure string
	Quantity      float64
	TotalWeight   float64
	TotalVolume   float64
	UnitVolume    float64
	UnitWeight    float64
}

// Demand is the aggregated quantity of one product to place within a group.
type Demand struct {
	StoreID       string
	Arm           Arm
	ProductID     string
	Description   string
	UnitVolume    float64
	UnitWeight    float64
	UnitOfMeasure string
	Quantity      int
}

// BoxLine is one (box, product) row of a packing result.
type BoxLine struct {
	BoxID         string  `json:"boxId"`
	StoreID       string  `json:"storeId"`
	ArmID         string  `json:"armId,omitempty"`
	ProductID     string  `json:"productId"`
	Description   string  `json:"description"`
	UnitOfMeasure string  `json:"unitOfMeasure,omitempty"`
	Quantity      int     `json:"quantity"`
	Volume        float64 `json:"volume"`
	Weight        float64 `json:"weight"`
	BoxVolume     float64 `json:"boxVolume"`
	BoxWeight     float64 `json:"boxWeight"`
	Oversized     bool    `json:"oversized,omitempty"`
}

// Result is the outcome of one engine run.
type Result struct {
	Policy   Policy    `json:"policy"`
	Lines    []BoxLine `json:"lines"`
	BoxCount int       `json:"boxCount"`
}

// Options parameterise a packing run.
type Options struct {
	Limits               Limits `json:"limits"`
	IgnoreArm            bool   `json:"ignoreArm"`
	ConvertPackageToUnit bool   `json:"convertPackageToUnit"`
}

// Selection is the result chosen between the two heuristics.
type Selection struct {
	Result
	FirstFitBoxes  int `json:"firstFitBoxes"`
	BestFitBoxes   int `json:"bestFitBoxes"`
	OversizedBoxes int `json:"oversizedBoxes"`
}

// Packer turns order lines into boxes.
type Packer interface {
	Pack(ctx context.Context, lines []OrderLine, opts Options) (Selection, error)
}
