package status

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/typewatch/typewatch/dbopen"
	"github.com/typewatch/typewatch/internal/journal"
	"github.com/typewatch/typewatch/phase"
)

func testServer(opts ...Option) *Server {
	return New("127.0.0.1:0", func() State {
		return State{
			Phase:       phase.Writing,
			TrackedPath: "/html/body/main",
			PageURL:     "https://claude.ai/chat/1",
			PageID:      "p1",
		}
	}, nil, opts...)
}

func TestHandlePhase(t *testing.T) {
	s := testServer()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/phase", nil)
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status: got %d", rec.Code)
	}
	var st State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Phase != phase.Writing {
		t.Errorf("phase: got %q", st.Phase)
	}
	if st.TrackedPath != "/html/body/main" {
		t.Errorf("tracked path: got %q", st.TrackedPath)
	}
}

func TestHandleHealthz(t *testing.T) {
	s := testServer()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body: got %q", rec.Body.String())
	}
}

func testJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.OpenDB(dbopen.OpenMemory(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	return j
}

func TestHandleJournalEvents(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	j.SendPhase(ctx, phase.Event{ID: "e1", PageID: "p1", Kind: phase.KindStart, Phase: phase.Writing, Length: 10, Timestamp: 1})
	j.SendPhase(ctx, phase.Event{ID: "e2", PageID: "p1", Kind: phase.KindStop, Phase: phase.Idle, Length: 90, Timestamp: 2})
	j.Flush()

	s := testServer(WithJournal(j))

	// No ?page= falls back to the watched page's ID.
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/journal/events", nil))

	if rec.Code != 200 {
		t.Fatalf("status: got %d", rec.Code)
	}
	var events []phase.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].ID != "e2" {
		t.Errorf("events: %+v", events)
	}
}

func TestHandleJournalStats(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	j.SendPhase(ctx, phase.Event{ID: "e1", PageID: "p1", Kind: phase.KindStart, Phase: phase.Writing, Length: 10, Timestamp: 1})
	j.Flush()

	s := testServer(WithJournal(j))

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/journal/stats?page=p1", nil))

	if rec.Code != 200 {
		t.Fatalf("status: got %d", rec.Code)
	}
	var stats journal.SessionStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Starts != 1 || stats.PageID != "p1" {
		t.Errorf("stats: %+v", stats)
	}
}

func TestJournalEndpointsWithoutJournal(t *testing.T) {
	s := testServer()

	for _, path := range []string{"/journal/events", "/journal/stats"} {
		rec := httptest.NewRecorder()
		s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != 404 {
			t.Errorf("%s without journal: got %d, want 404", path, rec.Code)
		}
	}
}

func TestBroadcastFansOut(t *testing.T) {
	s := testServer()

	a := make(chan []byte, 1)
	b := make(chan []byte, 1)
	s.mu.Lock()
	s.subs[a] = struct{}{}
	s.subs[b] = struct{}{}
	s.mu.Unlock()

	ev := phase.Event{ID: "e1", Kind: phase.KindStart, Phase: phase.Writing, Length: 12}
	if err := s.SendPhase(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	for name, ch := range map[string]chan []byte{"a": a, "b": b} {
		select {
		case frame := <-ch:
			got := string(frame)
			if !strings.HasPrefix(got, "event: phase\n") {
				t.Errorf("%s: frame prefix: got %q", name, got)
			}
			if !strings.Contains(got, `"kind":"start"`) {
				t.Errorf("%s: frame payload: got %q", name, got)
			}
		default:
			t.Errorf("%s: no frame delivered", name)
		}
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	s := testServer()

	full := make(chan []byte) // unbuffered, no reader
	s.mu.Lock()
	s.subs[full] = struct{}{}
	s.mu.Unlock()

	// Must not block.
	if err := s.SendPick(context.Background(), phase.PickEvent{ID: "p1", Kind: phase.PickHover}); err != nil {
		t.Fatal(err)
	}
}
