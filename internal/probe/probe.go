// Package probe inspects a page's static HTML and proposes selector
// candidates for a site profile. It is an authoring aid: the report ranks
// likely output containers by text density so a profile can be written
// without opening devtools. The probe sees server-rendered markup only;
// selectors for heavily client-rendered pages still need the in-page picker.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/typewatch/typewatch/internal/safeurl"
)

// Candidate is one proposed output container.
type Candidate struct {
	// Selector is the suggested profile selector for this node.
	Selector string `json:"selector"`
	Tag      string `json:"tag"`
	TextLen  int    `json:"text_len"`
	// Density is the text-to-markup ratio; higher means less chrome.
	Density float64 `json:"density"`
	// LinkDensity is the fraction of text inside links; high values
	// indicate navigation, not content.
	LinkDensity float64 `json:"link_density"`
	// Snippet is a sanitized plain-text preview of the node's content.
	Snippet string `json:"snippet"`
}

// Report is the probe output for one URL.
type Report struct {
	URL        string      `json:"url"`
	Title      string      `json:"title"`
	Candidates []Candidate `json:"candidates"`
	// Markdown is a readable rendition of the best candidate's content.
	Markdown string `json:"markdown,omitempty"`
}

// Config controls the probe fetch.
type Config struct {
	Timeout   time.Duration // default 30s
	MaxBytes  int64         // default safeurl.MaxResponseBody
	UserAgent string
	// Validator rejects URLs before fetching. Default: safeurl.Validate.
	Validator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = safeurl.MaxResponseBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "typewatch-probe/1.0"
	}
	if c.Validator == nil {
		c.Validator = safeurl.Validate
	}
}

const (
	maxCandidates = 8
	snippetLen    = 200
	minTextLen    = 50
)

// Run fetches url and analyses its HTML for output-container candidates.
func Run(ctx context.Context, url string, cfg Config) (*Report, error) {
	cfg.defaults()

	if err := cfg.Validator(url); err != nil {
		return nil, fmt.Errorf("probe: url rejected: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("probe: new request failed: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	validate := cfg.Validator
	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			return validate(req.URL.String())
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe: fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("probe: http %d", resp.StatusCode)
	}

	body, err := safeurl.LimitedReadAll(resp.Body, cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("probe: read body failed: %w", err)
	}

	return Analyze(body, url)
}

// Analyze scores an HTML document and builds the candidate report.
func Analyze(rawHTML []byte, url string) (*Report, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("probe: parse html failed: %w", err)
	}

	report := &Report{
		URL:   url,
		Title: findTitle(doc),
	}

	scores := scoreCandidates(doc)
	strip := bluemonday.StrictPolicy()

	for i, sc := range scores {
		if i >= maxCandidates {
			break
		}
		snippet := strip.Sanitize(collapseSpace(sc.text))
		if len(snippet) > snippetLen {
			snippet = snippet[:snippetLen]
		}
		report.Candidates = append(report.Candidates, Candidate{
			Selector:    selectorFor(sc.node),
			Tag:         sc.node.Data,
			TextLen:     sc.textLen,
			Density:     sc.density,
			LinkDensity: sc.linkDensity,
			Snippet:     snippet,
		})
	}

	if len(scores) > 0 {
		report.Markdown = renderMarkdown(scores[0].node, url)
	}
	return report, nil
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// renderMarkdown converts the candidate subtree to markdown, or "" when
// conversion fails or produces nothing readable.
func renderMarkdown(n *html.Node, url string) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	md, err := mdConverter.ConvertString(buf.String(), converter.WithDomain(url))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
