package typewatch

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/typewatch/typewatch/phase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAppliesDefaults(t *testing.T) {
	cfg := &Config{Page: PageConfig{ID: "p1", URL: "https://claude.ai/chat/x"}}
	New(cfg, testLogger())

	if cfg.Timing.TickInterval != 250*time.Millisecond {
		t.Errorf("tick interval default: %v", cfg.Timing.TickInterval)
	}
	if cfg.Picker.Hotkey != "alt+p" {
		t.Errorf("hotkey default: %q", cfg.Picker.Hotkey)
	}
}

func TestWatcherBeforeStart(t *testing.T) {
	w := New(&Config{Page: PageConfig{ID: "p1"}}, testLogger())

	if got := w.Phase(); got != phase.Idle {
		t.Errorf("phase before start: %q", got)
	}
	if got := w.TrackedPath(); got != "" {
		t.Errorf("tracked path before start: %q", got)
	}
	if w.PinPath("/html/body/main") {
		t.Error("pin succeeded with no document snapshot")
	}
	// Unpin before start must not panic.
	w.UnpinPath()
}
