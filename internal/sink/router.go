package sink

import (
	"context"
	"log/slog"

	"github.com/typewatch/typewatch/phase"
)

// Router fans out events to all configured sinks. One sink error does not
// block the others; errors are logged and the first encountered is
// returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add registers another sink. Not safe to call once delivery has started.
func (r *Router) Add(s Sink) {
	r.sinks = append(r.sinks, s)
}

func (r *Router) SendPhase(ctx context.Context, ev phase.Event) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendPhase(ctx, ev); err != nil {
			r.logger.Warn("sink: send phase failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendPick(ctx context.Context, ev phase.PickEvent) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendPick(ctx, ev); err != nil {
			r.logger.Warn("sink: send pick failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
