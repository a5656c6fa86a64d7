// Package picker implements the manual node-picking session: a hotkey
// toggles picking mode, hover events flow out to the external outline
// renderer, and a click pins the element under the pointer as the tracked
// node. The session holds no resources beyond its flag; toggling off drops
// every piece of transient state, so nothing leaks across toggles.
package picker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/typewatch/typewatch/phase"
)

// PinFunc applies a manual pick to the node tracker.
type PinFunc func(path string, at time.Time) bool

// EmitFunc forwards picker events to the sink layer.
type EmitFunc func(ev phase.PickEvent)

// Picker manages the picking session lifecycle. A session exists only while
// picking is active; it is destroyed on pick or cancel.
type Picker struct {
	mu     sync.Mutex
	active bool
	hover  string // walker path currently under the pointer

	pin    PinFunc
	emit   EmitFunc
	pageID string
	logger *slog.Logger
}

// New creates a Picker in the inactive state.
func New(pageID string, pin PinFunc, emit EmitFunc, logger *slog.Logger) *Picker {
	if logger == nil {
		logger = slog.Default()
	}
	if emit == nil {
		emit = func(phase.PickEvent) {}
	}
	return &Picker{pin: pin, emit: emit, pageID: pageID, logger: logger}
}

// Active reports whether a picking session is in progress.
func (p *Picker) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Toggle flips picking mode. Toggling an active session off is a cancel:
// no selection, hover state dropped, cancel event emitted. Returns the new
// active state.
func (p *Picker) Toggle(at time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		p.teardown(at)
		return false
	}

	p.active = true
	p.hover = ""
	p.logger.Info("picker: picking mode on")
	return true
}

// Hover records the element currently under the pointer and forwards it to
// the outline renderer. Ignored while inactive.
func (p *Picker) Hover(path, tag string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || path == "" || path == p.hover {
		return
	}
	p.hover = path
	p.emit(phase.PickEvent{
		PageID:    p.pageID,
		Kind:      phase.PickHover,
		Path:      path,
		Tag:       tag,
		Timestamp: at.UnixMilli(),
	})
}

// Pick selects the element at the given path: the tracker is overridden,
// a pick event is emitted, and the session ends. Ignored while inactive.
func (p *Picker) Pick(path, tag string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}

	p.active = false
	p.hover = ""

	if p.pin != nil && p.pin(path, at) {
		p.logger.Info("picker: node picked", "path", path, "tag", tag)
		p.emit(phase.PickEvent{
			PageID:    p.pageID,
			Kind:      phase.PickSelect,
			Path:      path,
			Tag:       tag,
			Timestamp: at.UnixMilli(),
		})
		return
	}

	// The picked element vanished between hover and click. Treat as cancel.
	p.logger.Warn("picker: pick failed, element not found", "path", path)
	p.emit(phase.PickEvent{
		PageID:    p.pageID,
		Kind:      phase.PickCancel,
		Timestamp: at.UnixMilli(),
	})
}

// teardown ends the session without selecting. Caller holds the lock.
func (p *Picker) teardown(at time.Time) {
	p.active = false
	p.hover = ""
	p.logger.Info("picker: picking mode off")
	p.emit(phase.PickEvent{
		PageID:    p.pageID,
		Kind:      phase.PickCancel,
		Timestamp: at.UnixMilli(),
	})
}
