// Package engine implements the phase state machine: the decision core that
// turns a stream of noisy length samples into idle → waiting → writing
// transitions. The machine owns the Phase value; every mutation goes through
// Observe or Submit, never through direct writes.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/typewatch/typewatch/phase"
)

// EmitFunc receives each phase transition. Called synchronously from
// Observe/Submit; implementations must not block.
type EmitFunc func(kind phase.EventKind, p phase.Phase, length int, at time.Time)

// Config tunes the transition rules.
type Config struct {
	// GrowthThreshold is the noise floor: the current length must exceed
	// the previous by more than this many characters to count as growth.
	// Cosmetic re-renders that jitter by a character stay invisible.
	// Default: 1.
	GrowthThreshold int

	// InactivityThreshold is the minimum elapsed time without growth before
	// writing is declared over. Default: 3s.
	InactivityThreshold time.Duration

	// WaitingTimeout bounds the waiting phase: if no growth arrives within
	// it, the machine falls back to idle without a stop event. Zero
	// disables the timeout (waiting persists until growth).
	WaitingTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.GrowthThreshold <= 0 {
		c.GrowthThreshold = 1
	}
	if c.InactivityThreshold <= 0 {
		c.InactivityThreshold = 3 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Machine is the phase state machine. Safe for the interleaved callback
// sites that drive it (tick loop, submit signal): a mutex serialises
// transitions so no torn update is observable.
type Machine struct {
	mu   sync.Mutex
	cfg  Config
	emit EmitFunc

	current    phase.Phase
	prev       phase.Sample
	hasPrev    bool
	lastGrowth time.Time
	waitSince  time.Time
}

// New creates a Machine in the idle phase.
func New(cfg Config, emit EmitFunc) *Machine {
	cfg.defaults()
	if emit == nil {
		emit = func(phase.EventKind, phase.Phase, int, time.Time) {}
	}
	return &Machine{cfg: cfg, emit: emit, current: phase.Idle}
}

// Phase returns the current phase value.
func (m *Machine) Phase() phase.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Observe evaluates the transition rules against one sample. Called once
// per tick with the latest measurement of the tracked node.
func (m *Machine) Observe(s phase.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	grew := m.hasPrev && s.Length > m.prev.Length+m.cfg.GrowthThreshold

	if grew {
		// Growth always restamps the inactivity clock, regardless of phase.
		m.lastGrowth = s.At
		if m.current != phase.Writing {
			from := m.current
			m.current = phase.Writing
			m.cfg.Logger.Debug("engine: writing started",
				"from", from, "length", s.Length)
			m.emit(phase.KindStart, phase.Writing, s.Length, s.At)
		}
	} else {
		switch m.current {
		case phase.Writing:
			// A shrink is not growth, but it does not end writing either;
			// only the inactivity timer governs writing → idle.
			if !m.lastGrowth.IsZero() && s.At.Sub(m.lastGrowth) > m.cfg.InactivityThreshold {
				m.current = phase.Idle
				m.cfg.Logger.Debug("engine: writing stopped",
					"idle_for", s.At.Sub(m.lastGrowth), "length", s.Length)
				m.emit(phase.KindStop, phase.Idle, s.Length, s.At)
			}
		case phase.Waiting:
			if m.cfg.WaitingTimeout > 0 && !m.waitSince.IsZero() &&
				s.At.Sub(m.waitSince) > m.cfg.WaitingTimeout {
				// Bounded waiting: give up quietly with no stop event. Nothing
				// ever started.
				m.current = phase.Idle
				m.cfg.Logger.Debug("engine: waiting timed out",
					"waited", s.At.Sub(m.waitSince))
			}
		}
	}

	m.prev = s
	m.hasPrev = true
}

// Submit forces an immediate transition to waiting from any phase. The
// waiting event fires once per transition: repeated submit signals while
// already waiting are idempotent.
func (m *Machine) Submit(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == phase.Waiting {
		m.waitSince = now
		return
	}

	m.current = phase.Waiting
	m.waitSince = now
	m.cfg.Logger.Debug("engine: submission detected, waiting for response")
	m.emit(phase.KindWaiting, phase.Waiting, m.prev.Length, now)
}
