// Package phase defines the structured types emitted by typewatch.
// These are the public API contract: any consumer (audio cue generators,
// status indicators, custom pipelines) imports this package to receive
// and process phase observations.
package phase

import "time"

// Phase is the current activity state of the watched output region.
// Exactly one Phase value is active at any instant; it is mutated only
// by the engine.
type Phase string

const (
	// Idle: no growth observed and no pending request.
	Idle Phase = "idle"
	// Waiting: the user just submitted a request; no growth seen yet.
	Waiting Phase = "waiting"
	// Writing: the assistant is actively producing text.
	Writing Phase = "writing"
)

// EventKind is the type of phase transition observed.
type EventKind string

const (
	KindStart   EventKind = "start"   // idle/waiting → writing
	KindStop    EventKind = "stop"    // writing → idle
	KindWaiting EventKind = "waiting" // any → waiting (submit signal)
)

// Sample is one measurement of the tracked node. Ephemeral: only the
// current and previous samples matter, plus the timestamp of the last
// observed growth.
type Sample struct {
	// Length is the normalized text length: concatenated visible text,
	// whitespace runs collapsed to single spaces, trimmed.
	Length int
	// At is when the measurement was taken.
	At time.Time
}

// Event is a single phase transition. One event = one boundary crossing;
// continuous writing does not re-emit start.
type Event struct {
	ID        string    `json:"id"` // UUIDv7
	PageURL   string    `json:"page_url"`
	PageID    string    `json:"page_id"`
	Kind      EventKind `json:"kind"`
	Phase     Phase     `json:"phase"`     // phase after the transition
	Length    int       `json:"length"`    // sample length at the transition
	Timestamp int64     `json:"timestamp"` // epoch milliseconds
}

// PickKind is the type of manual picker event.
type PickKind string

const (
	PickHover  PickKind = "hover"  // pointer moved over a candidate element
	PickSelect PickKind = "pick"   // element selected as the tracked node
	PickCancel PickKind = "cancel" // picking cancelled without selection
)

// PickEvent is emitted while the manual picker is active. The hover/pick
// pair drives the external outline renderer.
type PickEvent struct {
	ID        string   `json:"id"`
	PageID    string   `json:"page_id"`
	Kind      PickKind `json:"kind"`
	Path      string   `json:"path,omitempty"` // walker node path of the target
	Tag       string   `json:"tag,omitempty"`
	Timestamp int64    `json:"timestamp"`
}
