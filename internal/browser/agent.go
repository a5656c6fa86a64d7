package browser

import (
	_ "embed"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod/lib/proto"
)

//go:embed agent.js
var agentJS string

const bindingName = "__typewatch_binding"

// AgentEvent is one record reported by the injected page agent through the
// Runtime binding: raw input events, the picker hotkey, and picker
// hover/pick while picking mode is on.
type AgentEvent struct {
	Kind string `json:"kind"` // key | click | hotkey | hover | pick

	// Key fields.
	Key   string `json:"key,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Meta  bool   `json:"meta,omitempty"`

	// Target description.
	Tag        string `json:"tag,omitempty"`
	Type       string `json:"type,omitempty"`
	Role       string `json:"role,omitempty"`
	Editable   bool   `json:"editable,omitempty"`
	ValueEmpty bool   `json:"value_empty,omitempty"`
	Label      string `json:"label,omitempty"`

	// Picker fields.
	Path string `json:"path,omitempty"`
}

// InjectAgent registers the binding and injects the page agent with the
// given hotkey. Events are decoded and delivered on the returned channel
// until ctx is cancelled. The agent uses capture-phase listeners so page
// handlers cannot suppress the events it reports.
func (s *Session) InjectAgent(ctx context.Context, hotkey string) (<-chan AgentEvent, error) {
	if err := (proto.RuntimeAddBinding{Name: bindingName}.Call(s.Page)); err != nil {
		s.logger.Warn("browser: add binding failed (may already exist)", "error", err)
	}

	ch := make(chan AgentEvent, 256)
	go s.listenBinding(ctx, ch)

	setup := fmt.Sprintf("window.__typewatch_hotkey = %q;", hotkey)
	if _, err := s.Page.Eval(setup); err != nil {
		s.logger.Warn("browser: set hotkey failed", "error", err)
	}

	if _, err := s.Page.Eval(agentJS); err != nil {
		return nil, fmt.Errorf("browser: inject agent: %w", err)
	}

	s.logger.Debug("browser: agent injected", "url", s.PageURL, "hotkey", hotkey)
	return ch, nil
}

// listenBinding receives calls from the page agent via Runtime.bindingCalled.
func (s *Session) listenBinding(ctx context.Context, ch chan<- AgentEvent) {
	s.Page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}

		var ev AgentEvent
		if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
			s.logger.Warn("browser: parse agent payload", "error", err)
			return
		}

		select {
		case ch <- ev:
		default:
			// A full channel means the consumer stalled; dropping input
			// events is better than blocking the CDP event loop.
			s.logger.Warn("browser: agent event dropped", "kind", ev.Kind)
		}
	})()
}

// MutationNudges subscribes to CDP DOM mutation events and coalesces them
// into a nudge channel used for opportunistic extra ticks. Best-effort:
// mutations inside fragments that CDP does not surface are simply missed
// here. The periodic tick alone is sufficient for correct detection.
func (s *Session) MutationNudges(ctx context.Context) <-chan struct{} {
	nudge := make(chan struct{}, 1)

	if err := (proto.DOMEnable{}.Call(s.Page)); err != nil {
		s.logger.Warn("browser: DOM events unavailable, polling only", "error", err)
		return nudge
	}

	poke := func() {
		select {
		case nudge <- struct{}{}:
		default:
		}
	}

	go s.Page.Context(ctx).EachEvent(
		func(e *proto.DOMChildNodeInserted) { poke() },
		func(e *proto.DOMChildNodeRemoved) { poke() },
		func(e *proto.DOMCharacterDataModified) { poke() },
		func(e *proto.DOMChildNodeCountUpdated) { poke() },
	)()

	return nudge
}

// DocumentReplaced signals whole-document replacements (SPA navigation,
// document.open). The consumer must re-inject the agent: the binding
// survives a replacement, the page-side listeners do not.
func (s *Session) DocumentReplaced(ctx context.Context) <-chan struct{} {
	replaced := make(chan struct{}, 1)

	go s.Page.Context(ctx).EachEvent(func(e *proto.DOMDocumentUpdated) {
		select {
		case replaced <- struct{}{}:
		default:
		}
	})()

	return replaced
}

// ReinjectAgent re-installs the agent after a document replacement
// (navigation or document.open). The binding survives, the listeners do not.
func (s *Session) ReinjectAgent(hotkey string) {
	setup := fmt.Sprintf("window.__typewatch_hotkey = %q;", hotkey)
	if _, err := s.Page.Eval(setup); err != nil {
		s.logger.Warn("browser: set hotkey failed", "error", err)
	}
	if _, err := s.Page.Eval(agentJS); err != nil {
		s.logger.Warn("browser: re-inject agent failed", "error", err)
	}
}
