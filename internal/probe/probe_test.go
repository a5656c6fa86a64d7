package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Chat Sample</title></head>
<body>
  <nav class="topnav"><a href="/">Home</a> <a href="/about">About</a> <a href="/docs">Docs</a></nav>
  <main>
    <div id="conversation">
      <p>The assistant reply lives here. It is a long paragraph of prose with enough
      characters to clear the minimum text threshold and to dominate the density
      scoring, because real answers tend to be paragraphs rather than labels.</p>
      <p>A second paragraph extends the container further, reinforcing that this
      subtree is the output region rather than navigation or chrome.</p>
    </div>
    <div class="cookie-banner">We use cookies to improve your experience on this site.</div>
  </main>
  <footer><a href="/terms">Terms</a> <a href="/privacy">Privacy</a></footer>
</body>
</html>`

func TestAnalyzeRanksContentFirst(t *testing.T) {
	report, err := Analyze([]byte(samplePage), "https://example.com/chat")
	if err != nil {
		t.Fatal(err)
	}

	if report.Title != "Chat Sample" {
		t.Errorf("title: got %q", report.Title)
	}
	if len(report.Candidates) == 0 {
		t.Fatal("no candidates")
	}

	best := report.Candidates[0]
	if best.Selector != "#conversation" && best.Selector != "main" {
		t.Errorf("best selector: got %q, want #conversation or main", best.Selector)
	}
	if best.TextLen < 100 {
		t.Errorf("best text length: got %d", best.TextLen)
	}
	if !strings.Contains(best.Snippet, "assistant reply") {
		t.Errorf("snippet: got %q", best.Snippet)
	}
}

func TestAnalyzeSkipsChrome(t *testing.T) {
	report, err := Analyze([]byte(samplePage), "https://example.com/chat")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range report.Candidates {
		if strings.Contains(c.Selector, "cookie") || strings.Contains(c.Selector, "topnav") {
			t.Errorf("chrome candidate leaked: %q", c.Selector)
		}
		if strings.Contains(c.Snippet, "We use cookies") {
			t.Errorf("cookie banner text leaked into %q", c.Selector)
		}
	}
}

func TestAnalyzeMarkdown(t *testing.T) {
	report, err := Analyze([]byte(samplePage), "https://example.com/chat")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report.Markdown, "assistant reply") {
		t.Errorf("markdown rendition: got %q", report.Markdown)
	}
}

func TestSelectorFor(t *testing.T) {
	report, err := Analyze([]byte(`<html><body>
		<div class="chat-output extra">`+strings.Repeat("words and more words ", 20)+`</div>
	</body></html>`), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Candidates) == 0 {
		t.Fatal("no candidates")
	}
	if got := report.Candidates[0].Selector; got != "div.chat-output" {
		t.Errorf("selector: got %q, want div.chat-output", got)
	}
}

func TestRunFetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	report, err := Run(context.Background(), srv.URL, Config{
		Validator: func(string) error { return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Title != "Chat Sample" {
		t.Errorf("title: got %q", report.Title)
	}
}

func TestRunRejectsPrivateURL(t *testing.T) {
	_, err := Run(context.Background(), "http://127.0.0.1:9/x", Config{})
	if err == nil {
		t.Fatal("expected SSRF rejection")
	}
}
