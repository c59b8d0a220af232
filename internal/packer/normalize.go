package packer

import "strings"

const gramsPerKilogram = 1000

// Normalize resolves per-unit volume and weight for every line.
//
// With convertPackageToUnit set, package lines take UnitsRequested as their
// quantity basis and are relabelled as single units. Totals are not rescaled.
// Unreadable weights and volumes count as 0, unreadable quantities as 1.
func Normalize(lines []OrderLine, convertPackageToUnit bool) []NormalizedLine {
	out := make([]NormalizedLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, normalizeLine(line, convertPackageToUnit))
	}
	return out
}

func normalizeLine(line OrderLine, convertPackageToUnit bool) NormalizedLine {
	uom := strings.TrimSpace(line.UnitOfMeasure)
	quantity := line.Quantity
	if convertPackageToUnit && strings.EqualFold(uom, UnitOfMeasurePackage) {
		quantity = line.UnitsRequested
		uom = UnitOfMeasureSingle
	}

	weight := nonNegative(line.TotalWeight.Float(0))
	volume := nonNegative(line.TotalVolume.Float(0))
	qty := nonNegative(quantity.Float(1))

	if ParseWeightUnit(line.WeightUnit) == Gram {
		weight /= gramsPerKilogram
	}

	n := NormalizedLine{
		StoreID:       strings.TrimSpace(line.StoreID),
		Arm:           line.Arm,
		ProductID:     strings.TrimSpace(line.ProductID),
		Description:   strings.TrimSpace(line.Description),
		UnitOfMeasure: uom,
		Quantity:      qty,
		TotalWeight:   weight,
		TotalVolume:   volume,
	}
	if qty > 0 {
		n.UnitVolume = volume / qty
		n.UnitWeight = weight / qty
	}
	return n
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
