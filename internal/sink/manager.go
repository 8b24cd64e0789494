package sink

import (
	"context"
	"sync"

	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/aaeq-audio/aaeq/internal/errors"
	"github.com/aaeq-audio/aaeq/internal/logging"
)

// ErrNoActiveSink is returned by Write when no sink is currently selected.
var ErrNoActiveSink = errors.New(nil).
	Component("sink").
	Category(errors.CategoryState).
	Build()

// Manager owns a collection of registered sinks and at most one active
// selection. Selection changes follow drain -> close -> open(new, config),
// per §4.3. Writes are forwarded to the active sink; writes with no active
// sink fail with ErrNoActiveSink.
type Manager struct {
	mu     sync.RWMutex
	sinks  map[string]Sink
	active Sink
}

// NewManager creates an empty sink manager.
func NewManager() *Manager {
	return &Manager{sinks: make(map[string]Sink)}
}

// Register adds a sink under its own Name(). Registering a sink with a
// name already in use replaces the previous registration (the previous
// sink is not closed by Register; callers close it themselves first if
// it was active).
func (m *Manager) Register(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks[s.Name()] = s
}

// List returns every registered sink, for GET /v1/outputs.
func (m *Manager) List() []Sink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sink, 0, len(m.sinks))
	for _, s := range m.sinks {
		out = append(out, s)
	}
	return out
}

// Get looks up a registered sink by name.
func (m *Manager) Get(name string) (Sink, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sinks[name]
	return s, ok
}

// Active returns the currently selected sink, if any.
func (m *Manager) Active() (Sink, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, m.active != nil
}

// Select performs drain -> close (on the previous active sink, if any) ->
// open(new, cfg), holding the manager lock for the duration so concurrent
// Write calls observe either the old or the new active sink, never a
// half-transitioned state.
func (m *Manager) Select(ctx context.Context, name string, cfg audio.OutputConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := m.sinks[name]
	if !ok {
		return errors.Newf("sink: no registered sink named %q", name).
			Component("sink").
			Category(errors.CategoryNotFound).
			Build()
	}

	logger := logging.ForService("sink-manager")

	if m.active != nil {
		if err := m.active.Drain(ctx); err != nil && logger != nil {
			logger.Warn("drain failed during sink switch", "sink", m.active.Name(), "error", err)
		}
		if err := m.active.Close(ctx); err != nil && logger != nil {
			logger.Warn("close failed during sink switch", "sink", m.active.Name(), "error", err)
		}
		m.active = nil
	}

	if err := next.Open(ctx, cfg); err != nil {
		return errors.New(err).
			Component("sink").
			Category(errors.CategoryDeviceIO).
			Context("sink", name).
			Build()
	}
	m.active = next
	return nil
}

// Stop drains and closes the active sink, leaving no active selection.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	drainErr := m.active.Drain(ctx)
	closeErr := m.active.Close(ctx)
	m.active = nil
	return errors.Join(drainErr, closeErr)
}

// Write forwards block to the active sink.
func (m *Manager) Write(ctx context.Context, block *audio.Block) error {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()

	if active == nil {
		return ErrNoActiveSink
	}
	return active.Write(ctx, block)
}
