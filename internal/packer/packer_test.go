package packer

import (
	"context"
	"errors"
	"testing"
)

func TestPackTieFavoursFirstFit(t *testing.T) {
	t.Parallel()

	sel, err := New().Pack(context.Background(), []OrderLine{
		orderLine("S1", "", "A", 2, 20, 4),
		orderLine("S1", "", "B", 3, 15, 3),
	}, Options{Limits: Limits{VolumeMax: 20, WeightMax: 8}, IgnoreArm: true})
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}

	if sel.FirstFitBoxes != sel.BestFitBoxes {
		t.Fatalf("expected a tie, got FFD %d BFD %d", sel.FirstFitBoxes, sel.BestFitBoxes)
	}
	if sel.Policy != FirstFit {
		t.Fatalf("expected FFD on a tie, got %s", sel.Policy)
	}
	if sel.BoxCount != 2 {
		t.Fatalf("expected 2 boxes, got %d", sel.BoxCount)
	}
}

func TestPackChoosesBestFitWhenStrictlyBetter(t *testing.T) {
	t.Parallel()

	sel, err := New().Pack(context.Background(), selectionFixture(), Options{
		Limits: Limits{VolumeMax: 10, WeightMax: 10},
	})
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}

	if sel.Policy != BestFit {
		t.Fatalf("expected BFD, got %s", sel.Policy)
	}
	if sel.FirstFitBoxes != 3 || sel.BestFitBoxes != 2 || sel.BoxCount != 2 {
		t.Fatalf("unexpected counts: %+v", sel)
	}
}

func TestPackCountsOversizedBoxes(t *testing.T) {
	t.Parallel()

	sel, err := New().Pack(context.Background(), []OrderLine{
		orderLine("S1", "", "huge", 1, 50, 1),
		orderLine("S1", "", "tiny", 1, 1, 1),
	}, Options{Limits: Limits{VolumeMax: 20, WeightMax: 20}})
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if sel.OversizedBoxes != 1 {
		t.Fatalf("expected 1 oversized box, got %d", sel.OversizedBoxes)
	}
	if sel.BoxCount != 2 {
		t.Fatalf("expected 2 boxes, got %d", sel.BoxCount)
	}
}

func TestPackRelabelsPackagesInOutput(t *testing.T) {
	t.Parallel()

	line := orderLine("S1", "", "P1", 2, 24, 12)
	line.UnitOfMeasure = UnitOfMeasurePackage
	line.UnitsRequested = Num(12)

	sel, err := New().Pack(context.Background(), []OrderLine{line}, Options{
		Limits:               Limits{VolumeMax: 100, WeightMax: 100},
		ConvertPackageToUnit: true,
	})
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if len(sel.Lines) != 1 {
		t.Fatalf("expected one line, got %+v", sel.Lines)
	}
	got := sel.Lines[0]
	if got.UnitOfMeasure != UnitOfMeasureSingle || got.Quantity != 12 {
		t.Fatalf("expected 12 single units, got %+v", got)
	}
	if got.Volume != 24 || got.Weight != 12 {
		t.Fatalf("expected totals to be preserved, got volume %v weight %v", got.Volume, got.Weight)
	}
}

func TestPackRejectsInvalidLimits(t *testing.T) {
	t.Parallel()

	_, err := New().Pack(context.Background(), nil, Options{Limits: Limits{VolumeMax: -1, WeightMax: 10}})
	if !errors.Is(err, ErrInvalidLimits) {
		t.Fatalf("expected ErrInvalidLimits, got %v", err)
	}
}

func TestPackRejectsHugeQuantities(t *testing.T) {
	t.Parallel()

	lines := []OrderLine{
		orderLine("S1", "A", "P1", 2, 2, 2),
		{StoreID: "S1", ProductID: "P2", Quantity: "1e30", TotalVolume: "1", TotalWeight: "1"},
	}
	_, err := New().Pack(context.Background(), lines, Options{Limits: Limits{VolumeMax: 37, WeightMax: 20}})
	if !errors.Is(err, ErrQuantityTooLarge) {
		t.Fatalf("expected ErrQuantityTooLarge, got %v", err)
	}

	lines[1].Quantity = Num(MaxLineQuantity)
	if _, err := New().Pack(context.Background(), lines, Options{Limits: Limits{VolumeMax: 37, WeightMax: 20}}); err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
}

func TestPackEmptyInput(t *testing.T) {
	t.Parallel()

	sel, err := New().Pack(context.Background(), nil, Options{Limits: Limits{VolumeMax: 1, WeightMax: 1}})
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if sel.BoxCount != 0 || len(sel.Lines) != 0 || sel.Policy != FirstFit {
		t.Fatalf("unexpected selection for empty input: %+v", sel)
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	ffd := Result{Policy: FirstFit, BoxCount: 4}
	tests := []struct {
		name string
		bfd  int
		want Policy
	}{
		{name: "BestFitFewer", bfd: 3, want: BestFit},
		{name: "Tie", bfd: 4, want: FirstFit},
		{name: "BestFitMore", bfd: 5, want: FirstFit},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Select(ffd, Result{Policy: BestFit, BoxCount: tc.bfd})
			if got.Policy != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Policy)
			}
			if got.FirstFitBoxes != 4 || got.BestFitBoxes != tc.bfd {
				t.Fatalf("candidate counts not carried: %+v", got)
			}
		})
	}
}

func BenchmarkPack(b *testing.B) {
	var lines []OrderLine
	for store := 0; store < 20; store++ {
		for product := 0; product < 50; product++ {
			lines = append(lines, orderLine(
				string(rune('A'+store%26)), string(rune('a'+product%4)), string(rune('0'+product%10))+string(rune('a'+product/10)),
				float64(1+product%7), float64(1+product%11), float64(1+product%5),
			))
		}
	}
	p := New()
	opts := Options{Limits: Limits{VolumeMax: 37, WeightMax: 20}}
	for i := 0; i < b.N; i++ {
		if _, err := p.Pack(context.Background(), lines, opts); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}
