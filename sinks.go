package typewatch

import (
	"context"
	"io"
	"log/slog"

	"github.com/typewatch/typewatch/internal/sink"
	"github.com/typewatch/typewatch/phase"
)

// Sink is the output interface for phase events.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// PhaseFunc is called for each phase event.
type PhaseFunc = sink.PhaseFunc

// PickFunc is called for each picker event.
type PickFunc = sink.PickFunc

// NewCallbackSink creates an in-process callback sink, the zero
// serialisation path for feedback collaborators living in the same binary
// (audio cue generators, status indicators).
func NewCallbackSink(
	onPhase func(ctx context.Context, ev phase.Event) error,
	onPick func(ctx context.Context, ev phase.PickEvent) error,
) Sink {
	return sink.NewCallback(onPhase, onPick)
}
