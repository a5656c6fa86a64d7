package domtree

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// Selector subset supported by DeepQueryAll:
//   - tag: "article", "main", "div"
//   - .class: ".markdown", ".message-content"
//   - #id: "#chat-output"
//   - compound: "div.response#last[data-author=assistant]"
//   - tag[attr]: "div[data-message-id]"
//   - tag[attr=val]: "div[data-author=assistant]"
//   - descendant combinator: parts separated by whitespace
//   - alternatives separated by commas
//
// This mirrors the subset the static extraction path supports, so selector
// lists in site profiles behave identically in both paths.

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
}

// compiled is one comma-alternative: a chain of simple selectors joined by
// the descendant combinator, last part being the subject.
type compiled struct {
	chain []simpleSelector
}

// compileSelector parses a selector string. Malformed input yields an error;
// callers decide whether to swallow it.
func compileSelector(sel string) ([]compiled, error) {
	var out []compiled
	for _, alt := range strings.Split(sel, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return nil, fmt.Errorf("domtree: empty selector alternative in %q", sel)
		}
		var c compiled
		for _, part := range strings.Fields(alt) {
			s, err := parseSimple(part)
			if err != nil {
				return nil, err
			}
			c.chain = append(c.chain, s)
		}
		out = append(out, c)
	}
	return out, nil
}

// parseSimple parses one compound part: tag, #id, .class, [attr], [attr=val].
func parseSimple(part string) (simpleSelector, error) {
	var s simpleSelector
	rest := part

	if idx := strings.IndexByte(rest, '['); idx >= 0 {
		if !strings.HasSuffix(rest, "]") {
			return s, fmt.Errorf("domtree: unterminated attribute selector %q", part)
		}
		attr := rest[idx+1 : len(rest)-1]
		rest = rest[:idx]
		if attr == "" {
			return s, fmt.Errorf("domtree: empty attribute selector %q", part)
		}
		if eq := strings.IndexByte(attr, '='); eq >= 0 {
			s.attrKey = attr[:eq]
			s.attrVal = strings.Trim(attr[eq+1:], `"'`)
		} else {
			s.attrKey = attr
		}
		if s.attrKey == "" {
			return s, fmt.Errorf("domtree: missing attribute name in %q", part)
		}
	}

	if idx := strings.IndexByte(rest, '#'); idx >= 0 {
		s.id = rest[idx+1:]
		rest = rest[:idx]
		if s.id == "" {
			return s, fmt.Errorf("domtree: empty id selector %q", part)
		}
	}

	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		s.class = rest[idx+1:]
		rest = rest[:idx]
		if s.class == "" {
			return s, fmt.Errorf("domtree: empty class selector %q", part)
		}
	}

	if strings.ContainsAny(rest, "[]>~+:*") {
		return s, fmt.Errorf("domtree: unsupported selector syntax %q", part)
	}

	s.tag = strings.ToLower(rest)
	if s.tag == "" && s.id == "" && s.class == "" && s.attrKey == "" {
		return s, fmt.Errorf("domtree: empty selector part %q", part)
	}
	return s, nil
}

// matches checks one element against one simple selector.
func (s simpleSelector) matches(n *proto.DOMNode) bool {
	if n == nil || n.NodeType != nodeTypeElement {
		return false
	}
	if s.tag != "" && strings.ToLower(n.NodeName) != s.tag {
		return false
	}
	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}
	if s.class != "" {
		ok := false
		for _, c := range strings.Fields(Attr(n, "class")) {
			if c == s.class {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if s.attrKey != "" {
		if s.attrVal != "" {
			if Attr(n, s.attrKey) != s.attrVal {
				return false
			}
		} else if !HasAttr(n, s.attrKey) {
			return false
		}
	}
	return true
}

// Found is one DeepQueryAll match.
type Found struct {
	Node *proto.DOMNode
	Path string
}

// DeepQueryAll returns all elements anywhere in the reachable structure
// (including open shadow roots and iframe documents) matching the selector,
// in document order as encountered by the walk. Matches are deduped by
// backend node ID. Malformed selectors are swallowed: the result is nil,
// never an error; a failure to match in one profile entry must not abort
// resolution.
func DeepQueryAll(root *proto.DOMNode, selector string) []Found {
	alts, err := compileSelector(selector)
	if err != nil {
		return nil
	}

	var out []Found
	seen := map[proto.DOMBackendNodeID]bool{}

	// Ancestor stack supports the descendant combinator: the subject must
	// match the last part and earlier parts must match ancestors in order.
	var stack []*proto.DOMNode
	var depths []int

	Walk(root, func(n *proto.DOMNode, path string) bool {
		// Maintain the ancestor stack by path depth.
		d := strings.Count(path, "/")
		for len(depths) > 0 && depths[len(depths)-1] >= d {
			stack = stack[:len(stack)-1]
			depths = depths[:len(depths)-1]
		}

		if n.NodeType == nodeTypeElement {
			for _, alt := range alts {
				if matchChain(alt.chain, n, stack) {
					if !seen[n.BackendNodeID] {
						seen[n.BackendNodeID] = true
						out = append(out, Found{Node: n, Path: path})
					}
					break
				}
			}
			stack = append(stack, n)
			depths = append(depths, d)
		}
		return true
	})

	return out
}

// matchChain checks the subject against the last part of the chain and the
// remaining parts against the ancestor stack, innermost last.
func matchChain(chain []simpleSelector, n *proto.DOMNode, ancestors []*proto.DOMNode) bool {
	if len(chain) == 0 {
		return false
	}
	if !chain[len(chain)-1].matches(n) {
		return false
	}

	// Remaining parts must match some ancestors, preserving order.
	need := chain[:len(chain)-1]
	ai := len(ancestors) - 1
	for i := len(need) - 1; i >= 0; i-- {
		matched := false
		for ai >= 0 {
			if need[i].matches(ancestors[ai]) {
				matched = true
				ai--
				break
			}
			ai--
		}
		if !matched {
			return false
		}
	}
	return true
}
