// Package domtree implements traversal and measurement over pierced CDP
// document trees (DOM.getDocument with depth=-1, pierce=true). Operating on
// *proto.DOMNode snapshots keeps the walker pure: no live browser is needed
// to resolve selectors or measure text, and every tick works against one
// consistent view of the page.
package domtree

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// Node types per the DOM spec.
const (
	nodeTypeElement  = 1
	nodeTypeText     = 3
	nodeTypeDocument = 9
	nodeTypeFragment = 11
)

// VisitFunc receives each node with its computed path. Return false to stop
// the traversal early.
type VisitFunc func(n *proto.DOMNode, path string) bool

// Walk performs a pre-order depth-first traversal of the reachable structure:
// regular children, open shadow roots, and iframe content documents. Closed
// and user-agent shadow roots are silently skipped; they are not reachable,
// which is not an error. The sequence is finite and self-inclusive; callers
// re-invoke Walk for a fresh traversal.
func Walk(root *proto.DOMNode, visit VisitFunc) {
	if root == nil {
		return
	}
	walk(root, segment(root, "", 1, 1), visit)
}

// walk visits a node whose path is already computed, then descends.
// Returns false when the traversal was stopped by the visitor.
func walk(n *proto.DOMNode, path string, visit VisitFunc) bool {
	if !visit(n, path) {
		return false
	}

	// Sibling tag totals drive the [idx] disambiguation in paths.
	tagSeen := map[string]int{}
	tagTotal := map[string]int{}
	for _, c := range n.Children {
		tagTotal[strings.ToLower(c.NodeName)]++
	}

	for _, c := range n.Children {
		name := strings.ToLower(c.NodeName)
		tagSeen[name]++
		if !walk(c, segment(c, path, tagSeen[name], tagTotal[name]), visit) {
			return false
		}
	}

	// Open shadow roots attached to this element. Closed roots are skipped.
	for _, sr := range n.ShadowRoots {
		if sr.ShadowRootType != proto.DOMShadowRootTypeOpen {
			continue
		}
		if !walk(sr, path+"/shadow-root", visit) {
			return false
		}
	}

	// Iframe content document: the document node itself is transparent,
	// its subtree keeps the iframe element's path as prefix.
	if n.ContentDocument != nil {
		if !walk(n.ContentDocument, path, visit) {
			return false
		}
	}

	return true
}

// segment computes one path segment in an XPath-like convention: lowercase
// tag, 1-based index when the tag repeats among siblings, text()/comment()
// for character data, documents and fragments are transparent.
func segment(n *proto.DOMNode, parentPath string, idx, total int) string {
	name := strings.ToLower(n.NodeName)

	switch n.NodeType {
	case nodeTypeDocument, nodeTypeFragment:
		return parentPath
	case nodeTypeText:
		return parentPath + "/text()"
	case nodeTypeElement:
		if total > 1 {
			return fmt.Sprintf("%s/%s[%d]", parentPath, name, idx)
		}
		return parentPath + "/" + name
	default:
		return parentPath + "/" + name
	}
}

// Elements walks the tree and returns all element nodes in document order.
func Elements(root *proto.DOMNode) []*proto.DOMNode {
	var out []*proto.DOMNode
	Walk(root, func(n *proto.DOMNode, _ string) bool {
		if n.NodeType == nodeTypeElement {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindByPath locates the element with the given walker path, or nil.
func FindByPath(root *proto.DOMNode, path string) *proto.DOMNode {
	if path == "" {
		return nil
	}
	var found *proto.DOMNode
	Walk(root, func(n *proto.DOMNode, p string) bool {
		if p == path && n.NodeType == nodeTypeElement {
			found = n
			return false
		}
		return true
	})
	return found
}

// PathOf returns the walker path of the node with the given backend node ID,
// or "".
func PathOf(root *proto.DOMNode, id proto.DOMBackendNodeID) string {
	var path string
	Walk(root, func(n *proto.DOMNode, p string) bool {
		if n.BackendNodeID == id {
			path = p
			return false
		}
		return true
	})
	return path
}

// FindByBackendID locates a node by its backend node ID, which is stable
// across snapshots of the same document. Returns nil when the node is no
// longer reachable (removed, or its subtree was rearranged out of the
// document).
func FindByBackendID(root *proto.DOMNode, id proto.DOMBackendNodeID) *proto.DOMNode {
	if id == 0 {
		return nil
	}
	var found *proto.DOMNode
	Walk(root, func(n *proto.DOMNode, _ string) bool {
		if n.BackendNodeID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Attr returns the value of an attribute on an element node. CDP serialises
// attributes as a flat [name, value, name, value, ...] list.
func Attr(n *proto.DOMNode, key string) string {
	if n == nil {
		return ""
	}
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		if strings.EqualFold(n.Attributes[i], key) {
			return n.Attributes[i+1]
		}
	}
	return ""
}

// HasAttr reports whether an element node carries an attribute.
func HasAttr(n *proto.DOMNode, key string) bool {
	if n == nil {
		return false
	}
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		if strings.EqualFold(n.Attributes[i], key) {
			return true
		}
	}
	return false
}
