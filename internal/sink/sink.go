// Package sink defines output backends for typewatch phase events. Feedback
// collaborators (audio cue generators, status indicators, outline renderers)
// consume the event stream through one of these.
package sink

import (
	"context"

	"github.com/typewatch/typewatch/phase"
)

// Sink is the output interface. Implementations deliver phase transitions
// and picker events to different backends (stdout, webhook, in-process
// callback).
type Sink interface {
	SendPhase(ctx context.Context, ev phase.Event) error
	SendPick(ctx context.Context, ev phase.PickEvent) error
	Close() error
}
