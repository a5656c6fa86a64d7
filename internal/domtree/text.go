package domtree

import (
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// Tags whose character data is never visible text.
var invisibleTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Measure computes the normalized text length of a node: the concatenated
// character data of its subtree (including open shadow roots and iframe
// documents), every whitespace run collapsed to a single space, trimmed.
// A nil or unreachable node measures 0. Measure never panics: any node
// shape degrades to 0.
func Measure(n *proto.DOMNode) int {
	return len(NormalizedText(n))
}

// NormalizedText returns the whitespace-normalized visible text of a subtree.
func NormalizedText(n *proto.DOMNode) string {
	if n == nil {
		return ""
	}

	var sb strings.Builder
	collectText(n, &sb)

	// Collapse any whitespace run to a single space and trim.
	return strings.Join(strings.Fields(sb.String()), " ")
}

func collectText(n *proto.DOMNode, sb *strings.Builder) {
	if n == nil {
		return
	}
	if n.NodeType == nodeTypeElement && invisibleTags[strings.ToLower(n.NodeName)] {
		return
	}
	if n.NodeType == nodeTypeText {
		sb.WriteString(n.NodeValue)
		sb.WriteByte(' ')
		return
	}

	for _, c := range n.Children {
		collectText(c, sb)
	}
	for _, sr := range n.ShadowRoots {
		if sr.ShadowRootType != proto.DOMShadowRootTypeOpen {
			continue
		}
		collectText(sr, sb)
	}
	if n.ContentDocument != nil {
		collectText(n.ContentDocument, sb)
	}
}
