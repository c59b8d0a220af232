package packer

import (
	"slices"
	"strings"
)

// Efficiency is the mean utilisation of the generated boxes, in percent.
type Efficiency struct {
	VolumePercent float64 `json:"volumePercent"`
	WeightPercent float64 `json:"weightPercent"`
}

// ComparisonRow contrasts historical and generated box counts for one group.
type ComparisonRow struct {
	StoreID         string `json:"storeId"`
	ArmID           string `json:"armId,omitempty"`
	HistoricalBoxes int    `json:"historicalBoxes"`
	GeneratedBoxes  int    `json:"generatedBoxes"`
	Difference      int    `json:"difference"`
}

// Report bundles a selection with its efficiency and optional comparison.
type Report struct {
	Options    Options         `json:"options"`
	Selection  Selection       `json:"selection"`
	Efficiency Efficiency      `json:"efficiency"`
	Comparison []ComparisonRow `json:"comparison,omitempty"`
}

// ComputeEfficiency averages box volume and weight over distinct boxes.
func ComputeEfficiency(result Result, limits Limits) Efficiency {
	seen := make(map[string]struct{})
	var volume, weight float64
	for _, line := range result.Lines {
		if _, ok := seen[line.BoxID]; ok {
			continue
		}
		seen[line.BoxID] = struct{}{}
		volume += line.BoxVolume
		weight += line.BoxWeight
	}
	if len(seen) == 0 || limits.Validate() != nil {
		return Efficiency{}
	}
	n := float64(len(seen))
	return Efficiency{
		VolumePercent: volume / n / limits.VolumeMax * 100,
		WeightPercent: weight / n / limits.WeightMax * 100,
	}
}

// Compare counts distinct historical box ids per group in lines against the
// distinct generated box ids per group in result. Groups present on only one
// side count zero on the other. Lines with a blank historical box id register
// their group without adding a box.
func Compare(lines []OrderLine, result Result, ignoreArm bool) []ComparisonRow {
	historical := make(map[groupKey]map[string]struct{})
	generated := make(map[groupKey]map[string]struct{})

	register := func(counts map[groupKey]map[string]struct{}, key groupKey, box string) {
		set, ok := counts[key]
		if !ok {
			set = make(map[string]struct{})
			counts[key] = set
		}
		if box != "" {
			set[box] = struct{}{}
		}
	}

	for _, line := range lines {
		key := keyFor(strings.TrimSpace(line.StoreID), line.Arm, ignoreArm)
		register(historical, key, strings.TrimSpace(line.HistoricalBoxID))
	}
	for _, line := range result.Lines {
		key := keyFor(line.StoreID, WithArm(line.ArmID), ignoreArm)
		register(generated, key, line.BoxID)
	}

	keys := make([]groupKey, 0, len(historical)+len(generated))
	for key := range historical {
		keys = append(keys, key)
	}
	for key := range generated {
		if _, ok := historical[key]; !ok {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, groupKey.compare)

	rows := make([]ComparisonRow, 0, len(keys))
	for _, key := range keys {
		h, g := len(historical[key]), len(generated[key])
		rows = append(rows, ComparisonRow{
			StoreID:         key.store,
			ArmID:           key.arm.String(),
			HistoricalBoxes: h,
			GeneratedBoxes:  g,
			Difference:      g - h,
		})
	}
	return rows
}

// BuildReport assembles the efficiency figures and, when withHistory is set,
// the comparison against the historical box assignment carried by lines.
func BuildReport(lines []OrderLine, opts Options, selection Selection, withHistory bool) Report {
	report := Report{
		Options:    opts,
		Selection:  selection,
		Efficiency: ComputeEfficiency(selection.Result, opts.Limits),
	}
	if withHistory {
		report.Comparison = Compare(lines, selection.Result, opts.IgnoreArm)
	}
	return report
}
