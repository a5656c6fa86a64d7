package probe

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// candidateScore holds density analysis for one subtree.
type candidateScore struct {
	node        *html.Node
	text        string
	textLen     int
	density     float64
	linkDensity float64
}

// scoreCandidates walks the document and ranks content containers by a
// composite of density, length, and link density. Boilerplate regions
// (nav, footer, cookie banners) are skipped entirely.
func scoreCandidates(doc *html.Node) []candidateScore {
	body := findBody(doc)
	if body == nil {
		body = doc
	}

	var out []candidateScore
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isBoilerplate(n) {
			return
		}
		if n.Type == html.ElementNode && isContainerTag(n.DataAtom) {
			text := collectText(n)
			if len(text) >= minTextLen {
				markupLen := renderedLen(n)
				if markupLen == 0 {
					markupLen = 1
				}
				linkLen := len(collectLinkText(n))
				out = append(out, candidateScore{
					node:        n,
					text:        text,
					textLen:     len(text),
					density:     float64(len(text)) / float64(markupLen),
					linkDensity: float64(linkLen) / float64(len(text)),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)

	sort.SliceStable(out, func(i, j int) bool {
		return composite(out[i]) > composite(out[j])
	})
	return out
}

// composite favours dense, long, link-poor subtrees. Mostly-link nodes
// (navigation) are pushed to the bottom regardless of density.
func composite(c candidateScore) float64 {
	if c.linkDensity > 0.5 {
		return 0
	}
	return c.density * lengthScale(c.textLen) * (1 - c.linkDensity)
}

// lengthScale grows logarithmically with text length so a long article
// outranks a dense one-liner without dominating on size alone.
func lengthScale(n int) float64 {
	scale := 1.0
	for n > 100 {
		scale++
		n /= 2
	}
	return scale
}

// selectorFor builds the most specific stable selector available for a
// node: #id, then tag.class, then a bare tag.
func selectorFor(n *html.Node) string {
	if id := attr(n, "id"); id != "" && !strings.ContainsAny(id, " :") {
		return "#" + id
	}
	if class := attr(n, "class"); class != "" {
		if first := strings.Fields(class); len(first) > 0 && !strings.ContainsAny(first[0], ":[") {
			return n.Data + "." + first[0]
		}
	}
	return n.Data
}

func isContainerTag(a atom.Atom) bool {
	switch a {
	case atom.Main, atom.Article, atom.Section, atom.Div, atom.P,
		atom.Pre, atom.Ul, atom.Ol, atom.Li, atom.Td, atom.Blockquote:
		return true
	}
	return false
}

// isBoilerplate reports whether a node is page chrome rather than content.
func isBoilerplate(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Nav, atom.Footer, atom.Header, atom.Aside:
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "class" || a.Key == "id" {
			lower := strings.ToLower(a.Val)
			for _, pattern := range chromePatterns {
				if strings.Contains(lower, pattern) {
					return true
				}
			}
		}
		if a.Key == "role" {
			switch a.Val {
			case "navigation", "banner", "contentinfo", "complementary":
				return true
			}
		}
	}
	return false
}

var chromePatterns = []string{
	"sidebar", "footer", "nav", "menu", "breadcrumb",
	"cookie", "banner", "advert", "social", "share",
	"popup", "modal",
}

func findBody(doc *html.Node) *html.Node {
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return body
}

func findTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// collectText extracts visible text, skipping script/style subtrees and
// nested boilerplate (a cookie banner inside <main> must not count as
// content text).
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
			if isBoilerplate(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collectLinkText extracts text found inside <a> subtrees only.
func collectLinkText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inLink bool) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			inLink = true
		}
		if n.Type == html.TextNode && inLink {
			sb.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inLink)
		}
	}
	walk(n, false)
	return sb.String()
}

func renderedLen(n *html.Node) int {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return 0
	}
	return buf.Len()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
