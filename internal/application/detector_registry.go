package application

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/go-tally/infrastructure/checks"
	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// ErrUnknownDetector indicates a detector kind with no registered factory.
var ErrUnknownDetector = errors.New("unsupported detector kind")

// DetectorFactory builds a detector of one kind. The detector is named
// after its kind.
type DetectorFactory func(name string, cfg RunConfig, registry *domain.PartyRegistry) (ports.Detector, error)

// DetectorRegistry maps detector kinds, as listed in the run config, to
// the factories that build them.
type DetectorRegistry struct {
	// factories maps detector kinds to their factory functions.
	factories map[string]DetectorFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
}

// NewDetectorRegistry creates a registry with the built-in detectors
// registered: consistency and switch.
func NewDetectorRegistry() *DetectorRegistry {
	r := &DetectorRegistry{factories: make(map[string]DetectorFactory)}
	r.registerBuiltinFactories()
	return r
}

func (r *DetectorRegistry) registerBuiltinFactories() {
	r.factories[ConsistencyCheckName] = func(name string, _ RunConfig, _ *domain.PartyRegistry) (ports.Detector, error) {
		return checks.NewConsistencyChecker(name)
	}
	r.factories[SwitchCheckName] = func(name string, cfg RunConfig, registry *domain.PartyRegistry) (ports.Detector, error) {
		return checks.NewSwitchDetector(name, cfg.Switch, registry)
	}
}

// CreateDetector builds the detector registered under kind.
func (r *DetectorRegistry) CreateDetector(kind string, cfg RunConfig, registry *domain.PartyRegistry) (ports.Detector, error) {
	r.mu.RLock()
	factory, exists := r.factories[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDetector, kind)
	}

	d, err := factory(kind, cfg, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s detector: %w", kind, err)
	}
	return d, nil
}

// CreateDetectors builds one detector per kind, in order.
func (r *DetectorRegistry) CreateDetectors(kinds []string, cfg RunConfig, registry *domain.PartyRegistry) ([]ports.Detector, error) {
	out := make([]ports.Detector, 0, len(kinds))
	for _, kind := range kinds {
		d, err := r.CreateDetector(kind, cfg, registry)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// RegisterDetectorFactory adds or replaces the factory for kind.
func (r *DetectorRegistry) RegisterDetectorFactory(kind string, factory DetectorFactory) error {
	if kind == "" {
		return fmt.Errorf("detector kind cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
	return nil
}

// SupportedKinds returns the registered kinds, sorted.
func (r *DetectorRegistry) SupportedKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}
