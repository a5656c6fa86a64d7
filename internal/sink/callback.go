package sink

import (
	"context"

	"github.com/typewatch/typewatch/phase"
)

// PhaseFunc is called for each phase event (in-process, zero serialisation).
type PhaseFunc func(ctx context.Context, ev phase.Event) error

// PickFunc is called for each picker event.
type PickFunc func(ctx context.Context, ev phase.PickEvent) error

// Callback delivers events via Go function calls. This is the path for
// feedback collaborators living in the same binary: an audio cue generator
// receives transitions as in-memory calls with zero serialisation overhead.
type Callback struct {
	onPhase PhaseFunc
	onPick  PickFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onPhase PhaseFunc, onPick PickFunc) *Callback {
	return &Callback{onPhase: onPhase, onPick: onPick}
}

func (c *Callback) SendPhase(ctx context.Context, ev phase.Event) error {
	if c.onPhase != nil {
		return c.onPhase(ctx, ev)
	}
	return nil
}

func (c *Callback) SendPick(ctx context.Context, ev phase.PickEvent) error {
	if c.onPick != nil {
		return c.onPick(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
