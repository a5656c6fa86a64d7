package domtree

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

var idCounter proto.DOMBackendNodeID

func nextID() proto.DOMBackendNodeID {
	idCounter++
	return idCounter
}

func elem(name string, attrs []string, children ...*proto.DOMNode) *proto.DOMNode {
	return &proto.DOMNode{
		NodeType:      nodeTypeElement,
		NodeName:      name,
		BackendNodeID: nextID(),
		Attributes:    attrs,
		Children:      children,
	}
}

func textNode(s string) *proto.DOMNode {
	return &proto.DOMNode{
		NodeType:      nodeTypeText,
		NodeName:      "#text",
		NodeValue:     s,
		BackendNodeID: nextID(),
	}
}

func document(children ...*proto.DOMNode) *proto.DOMNode {
	return &proto.DOMNode{
		NodeType:      nodeTypeDocument,
		NodeName:      "#document",
		BackendNodeID: nextID(),
		Children:      children,
	}
}

func shadowRoot(typ proto.DOMShadowRootType, children ...*proto.DOMNode) *proto.DOMNode {
	return &proto.DOMNode{
		NodeType:       nodeTypeFragment,
		NodeName:       "#document-fragment",
		BackendNodeID:  nextID(),
		ShadowRootType: typ,
		Children:       children,
	}
}

// page builds a small document:
//
//	html > body > [ div#a, div.msg(p("hello"), p("world")), main(article) ]
func page() *proto.DOMNode {
	return document(
		elem("HTML", nil,
			elem("BODY", nil,
				elem("DIV", []string{"id", "a"}),
				elem("DIV", []string{"class", "msg wide"},
					elem("P", nil, textNode("hello")),
					elem("P", nil, textNode("world")),
				),
				elem("MAIN", nil,
					elem("ARTICLE", []string{"data-author", "assistant"}, textNode("reply")),
				),
			),
		),
	)
}

func collectPaths(root *proto.DOMNode) map[string]string {
	out := map[string]string{}
	Walk(root, func(n *proto.DOMNode, path string) bool {
		out[path] = n.NodeName
		return true
	})
	return out
}

func TestWalkPaths(t *testing.T) {
	paths := collectPaths(page())

	for _, want := range []string{
		"/html",
		"/html/body",
		"/html/body/div[1]",
		"/html/body/div[2]",
		"/html/body/div[2]/p[1]",
		"/html/body/div[2]/p[2]/text()",
		"/html/body/main",
		"/html/body/main/article",
	} {
		if _, ok := paths[want]; !ok {
			t.Errorf("missing path %q; got %v", want, paths)
		}
	}

	// Singleton tags carry no index.
	if _, ok := paths["/html/body/main[1]"]; ok {
		t.Error("singleton main should not be indexed")
	}
}

func TestWalkShadowRoots(t *testing.T) {
	host := elem("DIV", []string{"id", "host"})
	host.ShadowRoots = []*proto.DOMNode{
		shadowRoot(proto.DOMShadowRootTypeOpen,
			elem("SPAN", nil, textNode("inside open")),
		),
		shadowRoot(proto.DOMShadowRootTypeClosed,
			elem("SPAN", nil, textNode("inside closed")),
		),
	}
	root := document(elem("HTML", nil, elem("BODY", nil, host)))

	paths := collectPaths(root)
	if _, ok := paths["/html/body/div/shadow-root/span"]; !ok {
		t.Errorf("open shadow content missing; got %v", paths)
	}
	for p, name := range paths {
		if name == "SPAN" && p != "/html/body/div/shadow-root/span" {
			t.Errorf("closed shadow content leaked at %q", p)
		}
	}
}

func TestWalkIframeTransparent(t *testing.T) {
	iframe := elem("IFRAME", nil)
	iframe.ContentDocument = document(
		elem("HTML", nil, elem("BODY", nil, elem("P", nil, textNode("framed")))),
	)
	root := document(elem("HTML", nil, elem("BODY", nil, iframe)))

	paths := collectPaths(root)
	// The content document node is transparent: its subtree keeps the
	// iframe element's path as prefix.
	if _, ok := paths["/html/body/iframe/html/body/p"]; !ok {
		t.Errorf("iframe content missing; got %v", paths)
	}
}

func TestFindByPathAndPathOf(t *testing.T) {
	root := page()

	n := FindByPath(root, "/html/body/div[2]/p[2]")
	if n == nil || n.NodeName != "P" {
		t.Fatalf("FindByPath: got %v", n)
	}
	if got := PathOf(root, n.BackendNodeID); got != "/html/body/div[2]/p[2]" {
		t.Errorf("PathOf: got %q", got)
	}

	if FindByPath(root, "/html/body/section") != nil {
		t.Error("FindByPath: nonexistent path matched")
	}
	if FindByPath(root, "") != nil {
		t.Error("FindByPath: empty path matched")
	}
}

func TestFindByBackendID(t *testing.T) {
	root := page()
	target := FindByPath(root, "/html/body/main/article")

	if got := FindByBackendID(root, target.BackendNodeID); got != target {
		t.Errorf("FindByBackendID: got %v", got)
	}
	if FindByBackendID(root, 999999) != nil {
		t.Error("FindByBackendID: unknown id matched")
	}
	if FindByBackendID(root, 0) != nil {
		t.Error("FindByBackendID: zero id matched")
	}
}

func TestDeepQueryAll(t *testing.T) {
	root := page()

	cases := []struct {
		selector string
		want     []string // expected paths in order
	}{
		{"p", []string{"/html/body/div[2]/p[1]", "/html/body/div[2]/p[2]"}},
		{".msg", []string{"/html/body/div[2]"}},
		{"#a", []string{"/html/body/div[1]"}},
		{"div.msg p", []string{"/html/body/div[2]/p[1]", "/html/body/div[2]/p[2]"}},
		{"[data-author=assistant]", []string{"/html/body/main/article"}},
		{"article[data-author]", []string{"/html/body/main/article"}},
		{"main article", []string{"/html/body/main/article"}},
		{"#a, main article", []string{"/html/body/div[1]", "/html/body/main/article"}},
		{"section", nil},
		{"div p[", nil}, // malformed: swallowed
		{"", nil},
	}

	for _, c := range cases {
		got := DeepQueryAll(root, c.selector)
		if len(got) != len(c.want) {
			t.Errorf("%q: got %d matches, want %d", c.selector, len(got), len(c.want))
			continue
		}
		for i := range c.want {
			if got[i].Path != c.want[i] {
				t.Errorf("%q: match[%d] = %q, want %q", c.selector, i, got[i].Path, c.want[i])
			}
		}
	}
}

func TestDeepQueryAllPiercesShadow(t *testing.T) {
	host := elem("DIV", []string{"id", "host"})
	host.ShadowRoots = []*proto.DOMNode{
		shadowRoot(proto.DOMShadowRootTypeOpen,
			elem("SPAN", []string{"class", "deep"}, textNode("x")),
		),
	}
	root := document(elem("HTML", nil, elem("BODY", nil, host)))

	got := DeepQueryAll(root, ".deep")
	if len(got) != 1 || got[0].Path != "/html/body/div/shadow-root/span" {
		t.Errorf("shadow pierce: got %v", got)
	}
}

func TestMeasure(t *testing.T) {
	div := elem("DIV", nil,
		textNode("  hello \n\t "),
		elem("SCRIPT", nil, textNode("var x = 1;")),
		elem("P", nil, textNode("world  again")),
	)

	if got := NormalizedText(div); got != "hello world again" {
		t.Errorf("NormalizedText: got %q", got)
	}
	if got := Measure(div); got != len("hello world again") {
		t.Errorf("Measure: got %d", got)
	}
	if Measure(nil) != 0 {
		t.Error("Measure(nil) != 0")
	}
}

func TestMeasureIncludesShadowAndIframe(t *testing.T) {
	host := elem("DIV", nil, textNode("light"))
	host.ShadowRoots = []*proto.DOMNode{
		shadowRoot(proto.DOMShadowRootTypeOpen, textNode("shadow")),
		shadowRoot(proto.DOMShadowRootTypeClosed, textNode("hidden")),
	}
	iframe := elem("IFRAME", nil)
	iframe.ContentDocument = document(elem("P", nil, textNode("framed")))
	wrapper := elem("DIV", nil, host, iframe)

	got := NormalizedText(wrapper)
	if got != "light shadow framed" {
		t.Errorf("NormalizedText: got %q", got)
	}
}
