// Package submit infers "the user just submitted a request" from raw input
// events captured in the page (capture phase, so page handlers cannot
// suppress them). Two independent triggers produce the same signal: a commit
// key press inside a text-entry surface, and a pointer activation on a
// button whose label suggests sending. Both are heuristics, not contracts.
package submit

import "strings"

// Event kinds reported by the injected agent.
const (
	KindKey   = "key"
	KindClick = "click"
)

// InputEvent is a raw keyboard or pointer event as described by the agent.
type InputEvent struct {
	Kind string `json:"kind"` // key | click

	// Key fields.
	Key   string `json:"key,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Meta  bool   `json:"meta,omitempty"`

	// Target description.
	Tag        string `json:"tag,omitempty"`
	Type       string `json:"type,omitempty"` // input type attribute
	Role       string `json:"role,omitempty"`
	Editable   bool   `json:"editable,omitempty"`   // contentEditable
	ValueEmpty bool   `json:"value_empty,omitempty"` // trimmed value/text empty
	Label      string `json:"label,omitempty"`       // visible text / aria-label / title
}

// sendVocabulary is the small fixed vocabulary a button-like element's
// accessible label is matched against. Keyword match, best effort.
var sendVocabulary = []string{"send", "submit", "ask", "run", "go", "enter"}

// Detect reports whether a raw input event counts as a submission.
func Detect(ev InputEvent) bool {
	switch ev.Kind {
	case KindKey:
		return detectKey(ev)
	case KindClick:
		return detectClick(ev)
	default:
		return false
	}
}

// detectKey: an unmodified Enter (Ctrl+Enter also commits on several chat
// pages, Shift+Enter and Alt+Enter insert newlines) while focus is on a
// text-entry surface holding non-empty text.
func detectKey(ev InputEvent) bool {
	if ev.Key != "Enter" {
		return false
	}
	if ev.Shift || ev.Alt {
		return false
	}
	if !isTextEntry(ev) {
		return false
	}
	return !ev.ValueEmpty
}

// isTextEntry recognises multi-line fields, single-line text fields,
// accessibility text boxes, and elements editable in place.
func isTextEntry(ev InputEvent) bool {
	tag := strings.ToLower(ev.Tag)
	switch {
	case tag == "textarea":
		return true
	case tag == "input":
		t := strings.ToLower(ev.Type)
		return t == "" || t == "text" || t == "search"
	case strings.EqualFold(ev.Role, "textbox"):
		return true
	case ev.Editable:
		return true
	}
	return false
}

// detectClick: a pointer activation on a button-like element whose label
// matches the send vocabulary.
func detectClick(ev InputEvent) bool {
	if !isButtonLike(ev) {
		return false
	}
	label := strings.ToLower(ev.Label)
	if label == "" {
		return false
	}
	for _, word := range sendVocabulary {
		if containsWord(label, word) {
			return true
		}
	}
	return false
}

func isButtonLike(ev InputEvent) bool {
	tag := strings.ToLower(ev.Tag)
	switch {
	case tag == "button":
		return true
	case tag == "input":
		t := strings.ToLower(ev.Type)
		return t == "submit" || t == "button" || t == "image"
	case tag == "a":
		return true
	case strings.EqualFold(ev.Role, "button"):
		return true
	}
	return false
}

// containsWord matches a vocabulary word on word boundaries so "go" does
// not fire on "google" or "logout".
func containsWord(label, word string) bool {
	idx := 0
	for {
		i := strings.Index(label[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(label[start-1])
		afterOK := end == len(label) || !isWordByte(label[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
