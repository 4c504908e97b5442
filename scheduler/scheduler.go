// Package scheduler implements atlasd's Scheduler Manager (spec.md
// §4.6): an ordered registry of long-lived background workers — the
// System Pressure Monitor (always registered) and the File Watcher (if
// configured) — started in registration order and stopped in reverse.
package scheduler

import "github.com/atlas-daemon/atlasd/logger"

// Scheduler is a long-lived background worker, grounded on the
// teacher's pulse/schedule.Ticker Start/Stop shape (spec.md §4.6).
type Scheduler interface {
	Name() string
	Start() error
	Stop() error
}

// Manager holds the ordered scheduler list for one daemon run (spec.md
// §9: constructed explicitly, not a global singleton).
type Manager struct {
	schedulers []Scheduler
}

// NewManager constructs an empty scheduler registry.
func NewManager() *Manager { return &Manager{} }

// Register appends s to the end of the registration order.
func (m *Manager) Register(s Scheduler) {
	m.schedulers = append(m.schedulers, s)
}

// StartAll starts every scheduler in registration order. A scheduler
// that errors on Start is logged and skipped, not fatal (spec.md §4.6).
func (m *Manager) StartAll() {
	for _, s := range m.schedulers {
		if err := s.Start(); err != nil {
			logger.Errorw("scheduler failed to start", "scheduler", s.Name(), "error", err.Error())
			continue
		}
		logger.Infow("scheduler started", "scheduler", s.Name())
	}
}

// StopAll stops every scheduler in reverse registration order. A
// scheduler that errors on Stop never blocks shutdown of the rest
// (spec.md §4.6).
func (m *Manager) StopAll() {
	for i := len(m.schedulers) - 1; i >= 0; i-- {
		s := m.schedulers[i]
		if err := s.Stop(); err != nil {
			logger.Errorw("scheduler failed to stop cleanly", "scheduler", s.Name(), "error", err.Error())
			continue
		}
		logger.Infow("scheduler stopped", "scheduler", s.Name())
	}
}

// Count reports how many schedulers are registered.
func (m *Manager) Count() int { return len(m.schedulers) }

// Names returns the registered schedulers' names in registration order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.schedulers))
	for i, s := range m.schedulers {
		names[i] = s.Name()
	}
	return names
}
