package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrUnknownSource reports a trigger for a source that is not registered.
	ErrUnknownSource = errors.New("unknown source")
	// ErrCycleRunning reports a trigger for a source already mid-cycle.
	ErrCycleRunning = errors.New("cycle already running")
)

// Manager owns one runner per source and fans shutdown out to all of them.
// Sources run on independent cadences; one source backing off never delays
// another's schedule.
type Manager struct {
	log     *zap.Logger
	mu      sync.RWMutex
	runners map[string]*Runner
	wg      sync.WaitGroup
}

// NewManager creates an empty manager.
func NewManager(log *zap.Logger) *Manager {
	return &Manager{
		log:     log,
		runners: make(map[string]*Runner),
	}
}

// Register adds a runner. Registering after Start is not supported.
func (m *Manager) Register(r *Runner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runners[r.Name()] = r
}

// Start launches every registered runner on its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runners {
		m.wg.Add(1)
		go func(r *Runner) {
			defer m.wg.Done()
			r.Run(ctx)
		}(r)
	}
	m.log.Info("scheduler started", zap.Int("sources", len(m.runners)))
}

// Wait blocks until every runner has observed shutdown and returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Trigger requests an out-of-cadence cycle for one source.
func (m *Manager) Trigger(source string) error {
	m.mu.RLock()
	r, ok := m.runners[source]
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownSource
	}
	if !r.Trigger() {
		return ErrCycleRunning
	}
	return nil
}

// Sources lists registered source names, sorted for stable output.
func (m *Manager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.runners))
	for name := range m.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
