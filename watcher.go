// Package typewatch watches the output region of a chat-style web page and
// infers, purely from observed content growth, when the assistant is
// actively producing text versus idle, and when the user has just submitted
// a request. It emits a phase event stream consumed by feedback
// collaborators (audio cue generators, status indicators).
//
// typewatch observes, it does not interpret: no assistant output is parsed
// semantically, and no detection state survives a page load. Detection is a
// hybrid push/pull design: a fixed-interval tick samples the tracked node's
// normalized text length, and best-effort CDP mutation events trigger
// opportunistic extra ticks. The periodic tick alone is sufficient for
// correct phase detection.
package typewatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/typewatch/typewatch/idgen"
	"github.com/typewatch/typewatch/internal/browser"
	"github.com/typewatch/typewatch/internal/config"
	"github.com/typewatch/typewatch/internal/domtree"
	"github.com/typewatch/typewatch/internal/engine"
	"github.com/typewatch/typewatch/internal/journal"
	"github.com/typewatch/typewatch/internal/picker"
	"github.com/typewatch/typewatch/internal/profile"
	"github.com/typewatch/typewatch/internal/sink"
	"github.com/typewatch/typewatch/internal/status"
	"github.com/typewatch/typewatch/internal/submit"
	"github.com/typewatch/typewatch/internal/tracker"
	"github.com/typewatch/typewatch/phase"
)

// Watcher is the top-level orchestrator: one Watcher = one watched page.
type Watcher struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *profile.Registry
	sinkR    *sink.Router

	machine *engine.Machine
	track   *tracker.Tracker
	pick    *picker.Picker
	sess    *browser.Session

	// lastDoc is the most recent document snapshot, shared with the
	// event-side callbacks (manual pick resolution).
	mu      sync.Mutex
	lastDoc *proto.DOMNode

	events chan phase.Event
	picks  chan phase.PickEvent

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Watcher from configuration.
func New(cfg *config.Config, logger *slog.Logger, sinks ...sink.Sink) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()

	return &Watcher{
		cfg:      cfg,
		logger:   logger,
		registry: profile.NewRegistry(cfg.Profiles...),
		sinkR:    sink.NewRouter(logger, sinks...),
		events:   make(chan phase.Event, 64),
		picks:    make(chan phase.PickEvent, 64),
	}
}

// Start attaches to the page and begins watching. It returns once the
// session is established; detection runs until ctx is cancelled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	var j *journal.Journal
	if w.cfg.JournalPath != "" {
		var err error
		j, err = journal.Open(w.cfg.JournalPath, w.logger)
		if err != nil {
			return fmt.Errorf("typewatch: open journal: %w", err)
		}
		w.sinkR.Add(j)
	}
	if w.cfg.StatusAddr != "" {
		var opts []status.Option
		if j != nil {
			opts = append(opts, status.WithJournal(j))
		}
		st := status.New(w.cfg.StatusAddr, func() status.State {
			return status.State{
				Phase:       w.Phase(),
				TrackedPath: w.TrackedPath(),
				PageURL:     w.cfg.Page.URL,
				PageID:      w.cfg.Page.ID,
			}
		}, w.logger, opts...)
		w.sinkR.Add(st)
		st.Start()
	}

	sess, err := browser.Open(w.ctx, browser.Config{
		RemoteURL:        w.cfg.Browser.Remote,
		Headful:          w.cfg.Browser.Stealth == "headful",
		ResourceBlocking: w.cfg.Browser.ResourceBlocking,
		Logger:           w.logger,
	}, w.cfg.Page.URL, w.cfg.Page.ID)
	if err != nil {
		return fmt.Errorf("typewatch: open page: %w", err)
	}
	w.sess = sess

	// Profile resolution happens once per page load.
	var prof profile.Profile
	if w.cfg.Page.Profile != "" {
		prof = w.registry.ByName(w.cfg.Page.Profile)
	} else {
		prof = w.registry.Resolve(sess.Host())
	}
	w.logger.Info("typewatch: profile resolved",
		"host", sess.Host(), "profile", prof.Name)

	w.track = tracker.New(tracker.Config{
		RefreshInterval: w.cfg.Timing.RefreshInterval,
		PinManualPicks:  *w.cfg.Picker.PinManualPicks,
		Logger:          w.logger,
	}, prof)

	w.machine = engine.New(engine.Config{
		GrowthThreshold:     w.cfg.Timing.GrowthThreshold,
		InactivityThreshold: w.cfg.Timing.InactivityThreshold,
		WaitingTimeout:      w.cfg.Timing.WaitingTimeout,
		Logger:              w.logger,
	}, w.emitPhase)

	w.pick = picker.New(w.cfg.Page.ID, w.pinNode, w.emitPick, w.logger)

	agentEvents, err := sess.InjectAgent(w.ctx, w.cfg.Picker.Hotkey)
	if err != nil {
		// The agent carries submission detection and the manual picker;
		// growth detection still works without it.
		w.logger.Warn("typewatch: agent unavailable, input detection disabled", "error", err)
	}

	nudge := sess.MutationNudges(w.ctx)
	replaced := sess.DocumentReplaced(w.ctx)

	go w.dispatch()
	go w.handleAgentEvents(agentEvents)
	go w.loop(nudge, replaced)

	w.logger.Info("typewatch: watching page",
		"url", w.cfg.Page.URL, "id", w.cfg.Page.ID,
		"tick", w.cfg.Timing.TickInterval)
	return nil
}

// Stop tears down the session and sinks.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.sess != nil {
		w.sess.Close()
	}
	w.sinkR.Close()
}

// Phase returns the current phase value (read-only view for indicators).
func (w *Watcher) Phase() phase.Phase {
	if w.machine == nil {
		return phase.Idle
	}
	return w.machine.Phase()
}

// TrackedPath returns the walker path of the currently tracked node, or "".
func (w *Watcher) TrackedPath() string {
	if w.track == nil {
		return ""
	}
	return w.track.Path()
}

// PinPath manually overrides the tracked node (MCP / API surface; the
// in-page picker uses the same route).
func (w *Watcher) PinPath(path string) bool {
	return w.pinNode(path, time.Now())
}

// UnpinPath releases a manual pick.
func (w *Watcher) UnpinPath() {
	if w.track != nil {
		w.track.Unpin()
	}
}

// loop is the tick loop: the only place that reads samples and advances the
// phase state machine on a schedule.
func (w *Watcher) loop(nudge, replaced <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.Timing.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.tick()
		case <-nudge:
			// Opportunistic extra tick; mutation bursts are coalesced by
			// the nudge channel.
			w.tick()
		case <-replaced:
			// Whole-document replacement: the agent's listeners are gone
			// and the tracked node with them. Detection state does not
			// survive a page load.
			w.logger.Info("typewatch: document replaced, re-arming")
			w.track.Unpin()
			w.sess.ReinjectAgent(w.cfg.Picker.Hotkey)
			w.tick()
		}
	}
}

// tick samples the tracked node once. Every failure mode degrades to a
// zero-length sample. No per-tick error may kill the loop.
func (w *Watcher) tick() {
	now := time.Now()

	doc, err := w.sess.Document(w.ctx)
	if err != nil {
		if w.ctx.Err() != nil {
			return
		}
		w.logger.Debug("typewatch: snapshot failed", "error", err)
		w.machine.Observe(phase.Sample{Length: 0, At: now})
		return
	}

	w.mu.Lock()
	w.lastDoc = doc
	w.mu.Unlock()

	node := w.track.Node(doc, now)
	w.machine.Observe(phase.Sample{Length: domtree.Measure(node), At: now})
}

// handleAgentEvents processes input events from the page agent. These
// interleave between ticks; phase mutation stays confined to the machine,
// tracked-node mutation to the tracker.
func (w *Watcher) handleAgentEvents(events <-chan browser.AgentEvent) {
	if events == nil {
		return
	}
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev := <-events:
			w.handleAgentEvent(ev)
		}
	}
}

func (w *Watcher) handleAgentEvent(ev browser.AgentEvent) {
	now := time.Now()

	switch ev.Kind {
	case "hotkey":
		w.pick.Toggle(now)

	case "hover":
		w.pick.Hover(ev.Path, ev.Tag, now)

	case "pick":
		w.pick.Pick(ev.Path, ev.Tag, now)

	case submit.KindKey, submit.KindClick:
		if w.pick.Active() {
			return
		}
		if submit.Detect(submit.InputEvent{
			Kind:       ev.Kind,
			Key:        ev.Key,
			Alt:        ev.Alt,
			Ctrl:       ev.Ctrl,
			Shift:      ev.Shift,
			Meta:       ev.Meta,
			Tag:        ev.Tag,
			Type:       ev.Type,
			Role:       ev.Role,
			Editable:   ev.Editable,
			ValueEmpty: ev.ValueEmpty,
			Label:      ev.Label,
		}) {
			w.machine.Submit(now)
		}
	}
}

// pinNode applies a manual pick against the latest document snapshot.
func (w *Watcher) pinNode(path string, at time.Time) bool {
	w.mu.Lock()
	doc := w.lastDoc
	w.mu.Unlock()
	if doc == nil || w.track == nil {
		return false
	}
	return w.track.Pin(doc, path, at)
}

// emitPhase is the machine's emit callback. It runs under the machine's
// lock, so delivery is deferred to the dispatch goroutine.
func (w *Watcher) emitPhase(kind phase.EventKind, p phase.Phase, length int, at time.Time) {
	ev := phase.Event{
		ID:        idgen.New(),
		PageURL:   w.cfg.Page.URL,
		PageID:    w.cfg.Page.ID,
		Kind:      kind,
		Phase:     p,
		Length:    length,
		Timestamp: at.UnixMilli(),
	}
	select {
	case w.events <- ev:
	default:
		w.logger.Warn("typewatch: phase event dropped", "kind", kind)
	}
}

// emitPick forwards picker events to the dispatch goroutine.
func (w *Watcher) emitPick(ev phase.PickEvent) {
	ev.ID = idgen.New()
	select {
	case w.picks <- ev:
	default:
		w.logger.Warn("typewatch: pick event dropped", "kind", ev.Kind)
	}
}

// dispatch delivers queued events to the sink router, keeping slow sinks
// off the detection path.
func (w *Watcher) dispatch() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev := <-w.events:
			if err := w.sinkR.SendPhase(w.ctx, ev); err != nil {
				w.logger.Error("typewatch: send phase failed", "error", err)
			}
		case ev := <-w.picks:
			if err := w.sinkR.SendPick(w.ctx, ev); err != nil {
				w.logger.Error("typewatch: send pick failed", "error", err)
			}
		}
	}
}
