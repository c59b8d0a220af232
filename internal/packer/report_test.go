package packer

import (
	"math"
	"slices"
	"testing"
)

func TestComputeEfficiency(t *testing.T) {
	t.Parallel()

	result := Result{Lines: []BoxLine{
		{BoxID: "S1_1", ProductID: "A", BoxVolume: 20, BoxWeight: 4},
		{BoxID: "S1_1", ProductID: "B", BoxVolume: 20, BoxWeight: 4},
		{BoxID: "S1_2", ProductID: "C", BoxVolume: 10, BoxWeight: 8},
	}}

	got := ComputeEfficiency(result, Limits{VolumeMax: 20, WeightMax: 8})
	if math.Abs(got.VolumePercent-75) > 1e-9 {
		t.Fatalf("expected 75%% volume, got %v", got.VolumePercent)
	}
	if math.Abs(got.WeightPercent-75) > 1e-9 {
		t.Fatalf("expected 75%% weight, got %v", got.WeightPercent)
	}
}

func TestComputeEfficiencyNoBoxes(t *testing.T) {
	t.Parallel()

	got := ComputeEfficiency(Result{}, Limits{VolumeMax: 20, WeightMax: 8})
	if got != (Efficiency{}) {
		t.Fatalf("expected zero efficiency, got %+v", got)
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	withBox := func(line OrderLine, box string) OrderLine {
		line.HistoricalBoxID = box
		return line
	}
	lines := []OrderLine{
		withBox(orderLine("S1", "A", "P1", 1, 1, 1), "H1"),
		withBox(orderLine("S1", "A", "P2", 1, 1, 1), "H2"),
		withBox(orderLine("S1", "A", "P3", 1, 1, 1), "H2"),
		withBox(orderLine("S2", "A", "P1", 1, 1, 1), ""),
		withBox(orderLine("S3", "B", "P1", 1, 1, 1), "H9"),
	}
	result := Result{Lines: []BoxLine{
		{BoxID: "S1_A_1", StoreID: "S1", ArmID: "A", ProductID: "P1"},
		{BoxID: "S1_A_1", StoreID: "S1", ArmID: "A", ProductID: "P2"},
		{BoxID: "S2_A_2", StoreID: "S2", ArmID: "A", ProductID: "P1"},
		{BoxID: "S4_C_3", StoreID: "S4", ArmID: "C", ProductID: "P5"},
	}}

	got := Compare(lines, result, false)
	want := []ComparisonRow{
		{StoreID: "S1", ArmID: "A", HistoricalBoxes: 2, GeneratedBoxes: 1, Difference: -1},
		{StoreID: "S2", ArmID: "A", HistoricalBoxes: 0, GeneratedBoxes: 1, Difference: 1},
		{StoreID: "S3", ArmID: "B", HistoricalBoxes: 1, GeneratedBoxes: 0, Difference: -1},
		{StoreID: "S4", ArmID: "C", HistoricalBoxes: 0, GeneratedBoxes: 1, Difference: 1},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected comparison:\n got %+v\nwant %+v", got, want)
	}
}

func TestCompareIgnoringArm(t *testing.T) {
	t.Parallel()

	lines := []OrderLine{
		{StoreID: "S1", Arm: WithArm("A"), HistoricalBoxID: "H1"},
		{StoreID: "S1", Arm: WithArm("B"), HistoricalBoxID: "H2"},
	}
	result := Result{Lines: []BoxLine{{BoxID: "S1_1", StoreID: "S1"}}}

	got := Compare(lines, result, true)
	want := []ComparisonRow{{StoreID: "S1", HistoricalBoxes: 2, GeneratedBoxes: 1, Difference: -1}}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected comparison: %+v", got)
	}
}

func TestBuildReport(t *testing.T) {
	t.Parallel()

	lines := []OrderLine{orderLine("S1", "", "P1", 1, 10, 4)}
	lines[0].HistoricalBoxID = "H1"
	opts := Options{Limits: Limits{VolumeMax: 20, WeightMax: 8}}
	sel := Selection{Result: Result{Policy: FirstFit, BoxCount: 1, Lines: []BoxLine{
		{BoxID: "S1_1", StoreID: "S1", ProductID: "P1", Quantity: 1, BoxVolume: 10, BoxWeight: 4},
	}}}

	without := BuildReport(lines, opts, sel, false)
	if without.Comparison != nil {
		t.Fatalf("expected no comparison without history, got %+v", without.Comparison)
	}
	if without.Efficiency.VolumePercent != 50 || without.Efficiency.WeightPercent != 50 {
		t.Fatalf("unexpected efficiency: %+v", without.Efficiency)
	}

	with := BuildReport(lines, opts, sel, true)
	if len(with.Comparison) != 1 || with.Comparison[0].Difference != 0 {
		t.Fatalf("unexpected comparison: %+v", with.Comparison)
	}
}
