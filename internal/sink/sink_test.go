package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/typewatch/typewatch/internal/safeurl"
	"github.com/typewatch/typewatch/phase"
)

func phaseEvent() phase.Event {
	return phase.Event{
		ID:        "0198f4a0-0000-7000-8000-000000000001",
		PageURL:   "https://claude.ai/chat/abc",
		PageID:    "p1",
		Kind:      phase.KindStart,
		Phase:     phase.Writing,
		Length:    42,
		Timestamp: 1787000000000,
	}
}

func pickEvent() phase.PickEvent {
	return phase.PickEvent{
		ID:        "0198f4a0-0000-7000-8000-000000000002",
		PageID:    "p1",
		Kind:      phase.PickSelect,
		Path:      "/html/body/main",
		Tag:       "main",
		Timestamp: 1787000000000,
	}
}

func TestStdoutWritesEnvelopeLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)

	if err := s.SendPhase(context.Background(), phaseEvent()); err != nil {
		t.Fatal(err)
	}
	if err := s.SendPick(context.Background(), pickEvent()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(lines))
	}

	var env struct {
		Type string      `json:"type"`
		Data phase.Event `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &env); err != nil {
		t.Fatalf("first line not JSON: %v", err)
	}
	if env.Type != "phase" || env.Data.Kind != phase.KindStart || env.Data.Length != 42 {
		t.Errorf("phase envelope: %+v", env)
	}

	var pick struct {
		Type string          `json:"type"`
		Data phase.PickEvent `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &pick); err != nil {
		t.Fatalf("second line not JSON: %v", err)
	}
	if pick.Type != "pick" || pick.Data.Path != "/html/body/main" {
		t.Errorf("pick envelope: %+v", pick)
	}
}

// failSink always errors, for router isolation tests.
type failSink struct{ closed bool }

func (f *failSink) SendPhase(context.Context, phase.Event) error    { return errors.New("boom") }
func (f *failSink) SendPick(context.Context, phase.PickEvent) error { return errors.New("boom") }
func (f *failSink) Close() error                                    { f.closed = true; return nil }

// countSink records deliveries.
type countSink struct{ phases, picks int }

func (c *countSink) SendPhase(context.Context, phase.Event) error    { c.phases++; return nil }
func (c *countSink) SendPick(context.Context, phase.PickEvent) error { c.picks++; return nil }
func (c *countSink) Close() error                                    { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouterFansOut(t *testing.T) {
	a, b := &countSink{}, &countSink{}
	r := NewRouter(quietLogger(), a, b)

	if err := r.SendPhase(context.Background(), phaseEvent()); err != nil {
		t.Fatal(err)
	}
	if err := r.SendPick(context.Background(), pickEvent()); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*countSink{a, b} {
		if c.phases != 1 || c.picks != 1 {
			t.Errorf("sink deliveries: phases=%d picks=%d", c.phases, c.picks)
		}
	}
}

func TestRouterIsolatesFailures(t *testing.T) {
	bad := &failSink{}
	good := &countSink{}
	r := NewRouter(quietLogger(), bad, good)

	err := r.SendPhase(context.Background(), phaseEvent())
	if err == nil {
		t.Fatal("failing sink error not surfaced")
	}
	if good.phases != 1 {
		t.Error("failure in one sink blocked delivery to the next")
	}
}

func TestRouterAdd(t *testing.T) {
	r := NewRouter(quietLogger())
	c := &countSink{}
	r.Add(c)

	if err := r.SendPhase(context.Background(), phaseEvent()); err != nil {
		t.Fatal(err)
	}
	if c.phases != 1 {
		t.Error("added sink did not receive event")
	}
}

func TestRouterCloseClosesAll(t *testing.T) {
	bad := &failSink{}
	r := NewRouter(quietLogger(), bad)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !bad.closed {
		t.Error("sink not closed")
	}
}

func TestCallbackSink(t *testing.T) {
	var gotPhase phase.Event
	var gotPick phase.PickEvent
	c := NewCallback(
		func(_ context.Context, ev phase.Event) error { gotPhase = ev; return nil },
		func(_ context.Context, ev phase.PickEvent) error { gotPick = ev; return nil },
	)

	if err := c.SendPhase(context.Background(), phaseEvent()); err != nil {
		t.Fatal(err)
	}
	if err := c.SendPick(context.Background(), pickEvent()); err != nil {
		t.Fatal(err)
	}
	if gotPhase.Kind != phase.KindStart || gotPick.Path != "/html/body/main" {
		t.Errorf("callback delivery: phase=%+v pick=%+v", gotPhase, gotPick)
	}
}

func TestCallbackNilHandlers(t *testing.T) {
	c := NewCallback(nil, nil)
	if err := c.SendPhase(context.Background(), phaseEvent()); err != nil {
		t.Errorf("nil phase handler: %v", err)
	}
	if err := c.SendPick(context.Background(), pickEvent()); err != nil {
		t.Errorf("nil pick handler: %v", err)
	}
}

func TestWebhookPosts(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.Store(string(body))
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: %q", ct)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// The test server listens on loopback; the default validator must
	// accept it, since real consumers are local processes too.
	wh := NewWebhook(srv.URL, WithWebhookLogger(quietLogger()))
	if err := wh.SendPhase(context.Background(), phaseEvent()); err != nil {
		t.Fatal(err)
	}

	body, _ := got.Load().(string)
	if !strings.Contains(body, `"type":"phase"`) || !strings.Contains(body, `"kind":"start"`) {
		t.Errorf("posted body: %s", body)
	}
}

func TestWebhookRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL,
		WithWebhookRetries(2),
		WithWebhookLogger(quietLogger()),
	)
	if err := wh.SendPhase(context.Background(), phaseEvent()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls: got %d, want 2", calls.Load())
	}
}

func TestWebhookExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL,
		WithWebhookRetries(0),
		WithWebhookLogger(quietLogger()),
	)
	err := wh.SendPhase(context.Background(), phaseEvent())
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Errorf("error: %v", err)
	}
}

func TestWebhookRejectsBadScheme(t *testing.T) {
	wh := NewWebhook("ftp://example.com/hook", WithWebhookLogger(quietLogger()))
	err := wh.SendPhase(context.Background(), phaseEvent())
	if err == nil {
		t.Fatal("non-HTTP scheme accepted")
	}
	if !strings.Contains(err.Error(), "url rejected") {
		t.Errorf("error: %v", err)
	}
}

func TestWebhookStrictValidatorRejectsLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server despite rejection")
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL,
		WithWebhookLogger(quietLogger()),
		WithWebhookValidator(safeurl.Validate),
	)
	err := wh.SendPhase(context.Background(), phaseEvent())
	if err == nil {
		t.Fatal("strict validator accepted a loopback URL")
	}
	if !strings.Contains(err.Error(), "url rejected") {
		t.Errorf("error: %v", err)
	}
}
