// Package simulation runs packing requests end to end: it resolves limits and
// options, packs, builds the report, stores the run, and records telemetry.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eugenenazirov/box-simulator/internal/metrics"
	"github.com/eugenenazirov/box-simulator/internal/packer"
	"github.com/eugenenazirov/box-simulator/internal/sheet"
	"github.com/eugenenazirov/box-simulator/internal/storage"
)

var (
	// ErrNoLines is returned when a request carries no order lines.
	ErrNoLines = errors.New("at least one order line is required")
	// ErrInvalidLimits is returned when the effective limits are not positive numbers.
	ErrInvalidLimits = errors.New("volume and weight limits must be positive numbers")
	// ErrInvalidLines is returned when order lines cannot be packed as given.
	ErrInvalidLines = errors.New("order lines are invalid")
)

// Request describes one simulation. Nil pointers fall back to the service
// defaults.
type Request struct {
	Lines                []packer.OrderLine
	HasHistory           bool
	VolumeMax            *float64
	WeightMax            *float64
	IgnoreArm            *bool
	ConvertPackageToUnit *bool
	Source               string
}

// Defaults are the options applied when a request leaves them unset.
type Defaults struct {
	IgnoreArm            bool
	ConvertPackageToUnit bool
}

// Service runs and stores simulations.
type Service struct {
	packer   packer.Packer
	store    storage.Storage
	logger   *zap.Logger
	metrics  *metrics.Metrics
	defaults Defaults

	clock func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records every run on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDefaults sets the option defaults.
func WithDefaults(d Defaults) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithIDGenerator overrides run id generation, primarily for tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// New builds a Service. A nil logger discards logs.
func New(p packer.Packer, store storage.Storage, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		packer: p,
		store:  store,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run packs req, stores the outcome, and returns the stored run.
func (s *Service) Run(ctx context.Context, req Request) (storage.Run, error) {
	if len(req.Lines) == 0 {
		return storage.Run{}, ErrNoLines
	}

	opts, err := s.options(req)
	if err != nil {
		return storage.Run{}, err
	}

	start := time.Now()
	selection, err := s.packer.Pack(ctx, req.Lines, opts)
	if err != nil {
		s.recordError(time.Since(start))
		if errors.Is(err, packer.ErrInvalidLimits) {
			return storage.Run{}, ErrInvalidLimits
		}
		if errors.Is(err, packer.ErrQuantityTooLarge) {
			return storage.Run{}, fmt.Errorf("%w: %w", ErrInvalidLines, err)
		}
		s.logger.Warn("simulation failed", zap.Error(err), zap.Int("lines", len(req.Lines)))
		return storage.Run{}, fmt.Errorf("pack: %w", err)
	}
	report := packer.BuildReport(req.Lines, opts, selection, req.HasHistory)
	elapsed := time.Since(start)

	run := storage.Run{
		ID:        s.newID(),
		CreatedAt: s.clock(),
		Source:    req.Source,
		Report:    report,
	}
	if err := s.store.SaveRun(run); err != nil {
		return storage.Run{}, fmt.Errorf("save run: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSimulation(elapsed, string(selection.Policy), len(req.Lines), selection.BoxCount, selection.OversizedBoxes)
	}
	s.logger.Info("simulation completed",
		zap.String("run_id", run.ID),
		zap.String("source", run.Source),
		zap.String("policy", string(selection.Policy)),
		zap.Int("boxes", selection.BoxCount),
		zap.Int("ffd_boxes", selection.FirstFitBoxes),
		zap.Int("bfd_boxes", selection.BestFitBoxes),
		zap.Int("oversized_boxes", selection.OversizedBoxes),
		zap.Int("lines", len(req.Lines)),
		zap.Duration("duration", elapsed),
	)
	if selection.OversizedBoxes > 0 {
		s.logger.Warn("products exceed box limits",
			zap.String("run_id", run.ID),
			zap.Int("oversized_boxes", selection.OversizedBoxes),
		)
	}
	return run, nil
}

func (s *Service) options(req Request) (packer.Options, error) {
	stored, err := s.store.GetLimits()
	if err != nil {
		return packer.Options{}, fmt.Errorf("load default limits: %w", err)
	}
	limits := stored.Limits
	if req.VolumeMax != nil {
		limits.VolumeMax = *req.VolumeMax
	}
	if req.WeightMax != nil {
		limits.WeightMax = *req.WeightMax
	}
	if limits.Validate() != nil {
		return packer.Options{}, ErrInvalidLimits
	}

	opts := packer.Options{
		Limits:               limits,
		IgnoreArm:            s.defaults.IgnoreArm,
		ConvertPackageToUnit: s.defaults.ConvertPackageToUnit,
	}
	if req.IgnoreArm != nil {
		opts.IgnoreArm = *req.IgnoreArm
	}
	if req.ConvertPackageToUnit != nil {
		opts.ConvertPackageToUnit = *req.ConvertPackageToUnit
	}
	return opts, nil
}

func (s *Service) recordError(elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordSimulationError(elapsed)
	}
}

// Get returns a stored run.
func (s *Service) Get(id string) (storage.Run, error) {
	return s.store.GetRun(id)
}

// List returns stored run summaries, newest first.
func (s *Service) List(limit int) ([]storage.RunSummary, error) {
	return s.store.ListRuns(limit)
}

// Limits returns the default limits and when they were last set.
func (s *Service) Limits() (storage.StoredLimits, error) {
	return s.store.GetLimits()
}

// SetLimits replaces the default limits, stamping them with the service clock.
func (s *Service) SetLimits(limits packer.Limits) (storage.StoredLimits, error) {
	stored := storage.StoredLimits{Limits: limits, UpdatedAt: s.clock()}
	if err := s.store.SetLimits(stored.Limits, stored.UpdatedAt); err != nil {
		if errors.Is(err, storage.ErrInvalidLimits) {
			return storage.StoredLimits{}, ErrInvalidLimits
		}
		return storage.StoredLimits{}, err
	}
	s.logger.Info("default limits updated",
		zap.Float64("volume_max", limits.VolumeMax),
		zap.Float64("weight_max", limits.WeightMax),
	)
	return stored, nil
}

// EnsureLimits sets the default limits unless they already hold these values,
// keeping the stored update time of an unchanged configuration.
func (s *Service) EnsureLimits(limits packer.Limits) error {
	current, err := s.store.GetLimits()
	if err != nil {
		return fmt.Errorf("load default limits: %w", err)
	}
	if current.Limits == limits {
		return nil
	}
	_, err = s.SetLimits(limits)
	return err
}

// WriteReport renders the stored run id as an xlsx workbook onto w.
func (s *Service) WriteReport(w io.Writer, id string) error {
	run, err := s.store.GetRun(id)
	if err != nil {
		return err
	}
	return sheet.WriteReport(w, run.Report)
}
