package picker

import (
	"testing"
	"time"

	"github.com/typewatch/typewatch/phase"
)

var t0 = time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

type capture struct {
	events []phase.PickEvent
	pinOK  bool
	pinned []string
}

func (c *capture) pin(path string, _ time.Time) bool {
	c.pinned = append(c.pinned, path)
	return c.pinOK
}

func (c *capture) emit(ev phase.PickEvent) {
	c.events = append(c.events, ev)
}

func newPicker(pinOK bool) (*Picker, *capture) {
	c := &capture{pinOK: pinOK}
	return New("p1", c.pin, c.emit, nil), c
}

func TestToggleOnOff(t *testing.T) {
	p, c := newPicker(true)

	if !p.Toggle(t0) {
		t.Fatal("toggle on returned false")
	}
	if !p.Active() {
		t.Fatal("not active after toggle on")
	}

	if p.Toggle(t0.Add(time.Second)) {
		t.Fatal("toggle off returned true")
	}
	if p.Active() {
		t.Fatal("active after toggle off")
	}

	// Toggling off an active session is a cancel.
	if len(c.events) != 1 || c.events[0].Kind != phase.PickCancel {
		t.Fatalf("events: %+v", c.events)
	}
}

func TestHoverEmitsAndDedupes(t *testing.T) {
	p, c := newPicker(true)
	p.Toggle(t0)

	p.Hover("/html/body/div", "div", t0)
	p.Hover("/html/body/div", "div", t0.Add(50*time.Millisecond))
	p.Hover("/html/body/main", "main", t0.Add(100*time.Millisecond))

	if len(c.events) != 2 {
		t.Fatalf("hover events: got %d, want 2: %+v", len(c.events), c.events)
	}
	if c.events[0].Path != "/html/body/div" || c.events[1].Path != "/html/body/main" {
		t.Errorf("hover paths: %+v", c.events)
	}
	if c.events[0].Kind != phase.PickHover {
		t.Errorf("kind: %s", c.events[0].Kind)
	}
}

func TestHoverIgnoredWhileInactive(t *testing.T) {
	p, c := newPicker(true)
	p.Hover("/html/body/div", "div", t0)
	if len(c.events) != 0 {
		t.Fatalf("inactive hover emitted: %+v", c.events)
	}
}

func TestPickPinsAndEndsSession(t *testing.T) {
	p, c := newPicker(true)
	p.Toggle(t0)

	p.Pick("/html/body/main", "main", t0.Add(time.Second))

	if p.Active() {
		t.Error("still active after pick")
	}
	if len(c.pinned) != 1 || c.pinned[0] != "/html/body/main" {
		t.Errorf("pinned: %v", c.pinned)
	}
	if len(c.events) != 1 || c.events[0].Kind != phase.PickSelect {
		t.Fatalf("events: %+v", c.events)
	}
	if c.events[0].Path != "/html/body/main" || c.events[0].PageID != "p1" {
		t.Errorf("event: %+v", c.events[0])
	}
}

func TestPickFailureEmitsCancel(t *testing.T) {
	p, c := newPicker(false)
	p.Toggle(t0)

	p.Pick("/html/body/gone", "div", t0.Add(time.Second))

	if p.Active() {
		t.Error("still active after failed pick")
	}
	if len(c.events) != 1 || c.events[0].Kind != phase.PickCancel {
		t.Fatalf("events: %+v", c.events)
	}
}

func TestPickIgnoredWhileInactive(t *testing.T) {
	p, c := newPicker(true)
	p.Pick("/html/body/main", "main", t0)
	if len(c.pinned) != 0 || len(c.events) != 0 {
		t.Fatalf("inactive pick acted: pinned=%v events=%+v", c.pinned, c.events)
	}
}

func TestNoStateLeaksAcrossSessions(t *testing.T) {
	p, c := newPicker(true)

	p.Toggle(t0)
	p.Hover("/html/body/div", "div", t0)
	p.Toggle(t0) // cancel

	p.Toggle(t0.Add(time.Second))
	// The previous session's hover must not suppress this one.
	p.Hover("/html/body/div", "div", t0.Add(2*time.Second))

	var hovers int
	for _, ev := range c.events {
		if ev.Kind == phase.PickHover {
			hovers++
		}
	}
	if hovers != 2 {
		t.Errorf("hovers across sessions: got %d, want 2", hovers)
	}
}
