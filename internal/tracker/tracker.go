// Package tracker owns the tracked output node: the content region whose
// text growth drives phase detection. It re-resolves the node through the
// site profile's selector strategies on a slow cadence, falls back to a
// density scan when no selector matches, and accepts manual picks.
package tracker

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/typewatch/typewatch/internal/domtree"
	"github.com/typewatch/typewatch/internal/profile"
)

// Container tags considered by the generic density fallback. Broad on
// purpose: an unprofiled page's output region can be almost anything.
var containerTags = map[string]bool{
	"div": true, "main": true, "article": true, "section": true,
	"p": true, "pre": true, "li": true, "td": true, "span": true,
}

// Config tunes the tracker.
type Config struct {
	// RefreshInterval is how long a successful resolution stays valid
	// before the selectors are re-run. Default: 1500ms.
	RefreshInterval time.Duration

	// PinManualPicks keeps a manually picked node against automatic
	// refresh for as long as it remains reachable. Default behaviour is
	// set by the caller (config default: true).
	PinManualPicks bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 1500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Tracker maintains the currently tracked node. All mutation of the tracked
// node happens here; the sampler only reads what Node returns.
type Tracker struct {
	mu   sync.Mutex
	cfg  Config
	prof profile.Profile

	backendID   proto.DOMBackendNodeID
	path        string
	pinned      bool
	lastResolve time.Time
}

// New creates a Tracker resolving against the given profile.
func New(cfg Config, prof profile.Profile) *Tracker {
	cfg.defaults()
	return &Tracker{cfg: cfg, prof: prof}
}

// Node returns the tracked node located in this tick's document snapshot,
// re-resolving first when nothing is tracked, the refresh interval elapsed,
// or the tracked node is no longer reachable. Returns nil when resolution
// finds nothing, a non-fatal condition that measures as zero length.
func (t *Tracker) Node(doc *proto.DOMNode, now time.Time) *proto.DOMNode {
	t.mu.Lock()
	defer t.mu.Unlock()

	if doc == nil {
		return nil
	}

	// Pinned nodes are held for as long as they stay reachable.
	if t.pinned {
		if n := t.locate(doc); n != nil {
			return n
		}
		t.cfg.Logger.Info("tracker: pinned node no longer reachable, resuming automatic resolution",
			"path", t.path)
		t.pinned = false
		t.backendID = 0
		t.path = ""
	}

	fresh := !t.lastResolve.IsZero() && now.Sub(t.lastResolve) <= t.cfg.RefreshInterval
	if t.backendID != 0 && fresh {
		if n := t.locate(doc); n != nil {
			return n
		}
		// Stale: the node left the document between refreshes.
		t.cfg.Logger.Debug("tracker: tracked node stale, re-resolving", "path", t.path)
	}

	t.resolve(doc, now)
	return t.locate(doc)
}

// Pin manually overrides the tracked node with the element at the given
// walker path. The refresh timer resets so an automatic cycle does not race
// the pick.
func (t *Tracker) Pin(doc *proto.DOMNode, path string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := domtree.FindByPath(doc, path)
	if n == nil {
		t.cfg.Logger.Warn("tracker: manual pick path not found", "path", path)
		return false
	}

	t.backendID = n.BackendNodeID
	t.path = path
	t.pinned = t.cfg.PinManualPicks
	t.lastResolve = now
	t.cfg.Logger.Info("tracker: node pinned manually",
		"path", path, "tag", strings.ToLower(n.NodeName), "pinned", t.pinned)
	return true
}

// Unpin releases a manual pick; automatic resolution resumes on the next
// refresh cycle.
func (t *Tracker) Unpin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pinned = false
	t.lastResolve = time.Time{}
}

// Path returns the walker path of the tracked node, or "".
func (t *Tracker) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

// locate finds the tracked node in the given snapshot. Backend node IDs are
// stable across snapshots of the same document, so this is the identity
// check; the path is refreshed as a side effect so staleness reporting and
// status output stay current.
func (t *Tracker) locate(doc *proto.DOMNode) *proto.DOMNode {
	if t.backendID == 0 {
		return nil
	}
	n := domtree.FindByBackendID(doc, t.backendID)
	if n == nil {
		return nil
	}
	if p := domtree.PathOf(doc, t.backendID); p != "" {
		t.path = p
	}
	return n
}

// resolve runs the selector strategies in profile order, then the density
// fallback. A candidate that differs from the current node replaces it.
func (t *Tracker) resolve(doc *proto.DOMNode, now time.Time) {
	var candidate *proto.DOMNode
	var path string

	for _, sel := range t.prof.OutputSelectors {
		found := domtree.DeepQueryAll(doc, sel)
		if len(found) == 0 {
			continue
		}
		// Last match in document order: the most recently appended node,
		// typically the newest message.
		last := found[len(found)-1]
		candidate, path = last.Node, last.Path
		break
	}

	if candidate == nil {
		candidate, path = densest(doc)
	}

	if candidate == nil {
		// Resolution failure: non-fatal, the sampler sees zero length.
		t.cfg.Logger.Debug("tracker: no candidate node found")
		t.backendID = 0
		t.path = ""
		t.lastResolve = now
		return
	}

	if candidate.BackendNodeID != t.backendID {
		t.cfg.Logger.Info("tracker: tracked node replaced",
			"path", path, "tag", strings.ToLower(candidate.NodeName))
	}
	t.backendID = candidate.BackendNodeID
	t.path = path
	t.lastResolve = now
}

// densest scans generic container elements across the whole reachable
// structure and picks the one with the greatest normalized text length.
// Ties resolve to the first encountered in traversal order.
func densest(doc *proto.DOMNode) (*proto.DOMNode, string) {
	var best *proto.DOMNode
	var bestPath string
	bestLen := 0

	domtree.Walk(doc, func(n *proto.DOMNode, p string) bool {
		if n.NodeType != 1 || !containerTags[strings.ToLower(n.NodeName)] {
			return true
		}
		if l := domtree.Measure(n); l > bestLen {
			best, bestPath, bestLen = n, p, l
		}
		return true
	})

	return best, bestPath
}
