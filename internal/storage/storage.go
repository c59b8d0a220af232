package storage

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/eugenenazirov/box-simulator/internal/packer"
)

const defaultRunRetention = 50

var (
	// ErrInvalidLimits indicates the provided limits violate validation rules.
	ErrInvalidLimits = errors.New("volume and weight limits must be positive numbers")
	// ErrRunNotFound is returned when no run exists for the requested id.
	ErrRunNotFound = errors.New("simulation run not found")
)

var defaultLimits = packer.Limits{VolumeMax: 37.0, WeightMax: 20.0}

// StoredLimits are the default box limits with the time they were last set.
type StoredLimits struct {
	packer.Limits
	UpdatedAt time.Time `json:"updatedAt"`
}

// Run is one stored simulation.
type Run struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	Source    string        `json:"source"`
	Report    packer.Report `json:"report"`
}

// RunSummary is the listing view of a Run.
type RunSummary struct {
	ID        string        `json:"id" db:"id"`
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
	Source    string        `json:"source" db:"source"`
	Policy    packer.Policy `json:"policy" db:"policy"`
	BoxCount  int           `json:"boxCount" db:"box_count"`
}

// Summary returns the listing view of r.
func (r Run) Summary() RunSummary {
	return RunSummary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Source:    r.Source,
		Policy:    r.Report.Selection.Policy,
		BoxCount:  r.Report.Selection.BoxCount,
	}
}

// Storage keeps the default box limits and past simulation runs.
type Storage interface {
	GetLimits() (StoredLimits, error)
	SetLimits(limits packer.Limits, updatedAt time.Time) error
	SaveRun(run Run) error
	GetRun(id string) (Run, error)
	ListRuns(limit int) ([]RunSummary, error)
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() packer.Limits {
	return defaultLimits
}

// MemoryStorage keeps state in-memory and guards access with a RWMutex. Only
// the most recent runs are retained.
type MemoryStorage struct {
	mu        sync.RWMutex
	limits    StoredLimits
	runs      []Run
	retention int
}

// NewMemoryStorage initialises storage with the default limits, stamped with
// the creation time. A retention of zero or less keeps the default number of
// runs.
func NewMemoryStorage(retention int) *MemoryStorage {
	if retention <= 0 {
		retention = defaultRunRetention
	}
	return &MemoryStorage{
		limits:    StoredLimits{Limits: defaultLimits, UpdatedAt: time.Now().UTC()},
		retention: retention,
	}
}

func (s *MemoryStorage) GetLimits() (StoredLimits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.limits, nil
}

// SetLimits validates and stores the default limits.
func (s *MemoryStorage) SetLimits(limits packer.Limits, updatedAt time.Time) error {
	if limits.Validate() != nil {
		return ErrInvalidLimits
	}

	s.mu.Lock()
	s.limits = StoredLimits{Limits: limits, UpdatedAt: updatedAt}
	s.mu.Unlock()

	return nil
}

// SaveRun stores run, evicting the oldest run beyond the retention limit.
func (s *MemoryStorage) SaveRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, run)
	if excess := len(s.runs) - s.retention; excess > 0 {
		s.runs = slices.Delete(s.runs, 0, excess)
	}
	return nil
}

func (s *MemoryStorage) GetRun(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return Run{}, ErrRunNotFound
}

// ListRuns returns up to limit summaries, newest first. A limit of zero or
// less lists every retained run.
func (s *MemoryStorage) ListRuns(limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunSummary, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.runs[i].Summary())
	}
	return out, nil
}
