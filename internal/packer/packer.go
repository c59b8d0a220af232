package packer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MaxLineQuantity bounds the units a single order line may request.
const MaxLineQuantity = 1_000_000

type heuristicPacker struct{}

// New creates a Packer that runs First-Fit and Best-Fit and keeps the one with
// fewer boxes, preferring First-Fit on a tie.
func New() Packer {
	return &heuristicPacker{}
}

func (p *heuristicPacker) Pack(ctx context.Context, lines []OrderLine, opts Options) (Selection, error) {
	if err := opts.Limits.Validate(); err != nil {
		return Selection{}, err
	}

	normalized := Normalize(lines, opts.ConvertPackageToUnit)
	if err := checkQuantities(normalized); err != nil {
		return Selection{}, err
	}

	var ffd, bfd Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ffd, err = run(gctx, normalized, opts, FirstFit)
		return err
	})
	g.Go(func() error {
		var err error
		bfd, err = run(gctx, normalized, opts, BestFit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Selection{}, err
	}

	return Select(ffd, bfd), nil
}

func checkQuantities(lines []NormalizedLine) error {
	for i, line := range lines {
		if line.Quantity > MaxLineQuantity {
			return fmt.Errorf("%w: line %d (%s) asks for %g units, limit is %d",
				ErrQuantityTooLarge, i+1, line.ProductID, line.Quantity, MaxLineQuantity)
		}
	}
	return nil
}

// run builds its own demand so the two heuristics never share state.
func run(ctx context.Context, normalized []NormalizedLine, opts Options, policy Policy) (Result, error) {
	engine, err := NewEngine(opts.Limits, policy)
	if err != nil {
		return Result{}, err
	}
	return engine.Pack(ctx, BuildDemand(normalized, opts.IgnoreArm))
}

// Select returns the result with strictly fewer boxes; ties go to First-Fit.
func Select(firstFit, bestFit Result) Selection {
	chosen := firstFit
	if bestFit.BoxCount < firstFit.BoxCount {
		chosen = bestFit
	}
	return Selection{
		Result:         chosen,
		FirstFitBoxes:  firstFit.BoxCount,
		BestFitBoxes:   bestFit.BoxCount,
		OversizedBoxes: countOversized(chosen.Lines),
	}
}

func countOversized(lines []BoxLine) int {
	seen := make(map[string]struct{})
	for _, line := range lines {
		if line.Oversized {
			seen[line.BoxID] = struct{}{}
		}
	}
	return len(seen)
}
