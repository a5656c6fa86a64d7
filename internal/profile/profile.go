// Package profile maps a page's origin host to the selector strategies used
// to locate the assistant output and user input regions. Profiles are a
// configuration table, not site-specific branching: resolution walks an
// ordered list and falls back to a generic heuristic profile, so unprofiled
// sites degrade to best effort instead of failing.
package profile

import (
	"path"
	"strings"
)

// Profile is a named set of heuristics for one class of page. Immutable
// after resolution; resolved once per page attach.
type Profile struct {
	Name string `yaml:"name" json:"name"`
	// Hosts are case-insensitive host patterns ("claude.ai", "*.openai.com").
	Hosts []string `yaml:"hosts" json:"hosts"`
	// OutputSelectors locate the assistant output region, tried in order.
	OutputSelectors []string `yaml:"output_selectors" json:"output_selectors"`
	// InputSelectors locate the user input region, tried in order.
	InputSelectors []string `yaml:"input_selectors" json:"input_selectors"`
}

// Generic is the fallback profile for unprofiled hosts: broad landmark
// selectors tried in order, with the density scan taking over when none of
// them match.
var Generic = Profile{
	Name: "generic",
	OutputSelectors: []string{
		"main article",
		"[role=log]",
		"main",
	},
	InputSelectors: []string{
		"textarea",
		"[contenteditable=true]",
		"[role=textbox]",
	},
}

// builtin profiles for common assistant pages. Custom profiles from config
// are consulted first, so these can be overridden without a rebuild.
var builtin = []Profile{
	{
		Name:  "chatgpt",
		Hosts: []string{"chatgpt.com", "chat.openai.com"},
		OutputSelectors: []string{
			"[data-message-author-role=assistant]",
			"div.markdown",
		},
		InputSelectors: []string{"#prompt-textarea", "textarea"},
	},
	{
		Name:  "claude",
		Hosts: []string{"claude.ai"},
		OutputSelectors: []string{
			"[data-testid=assistant-message]",
			"div.font-claude-message",
		},
		InputSelectors: []string{"[contenteditable=true]", "textarea"},
	},
	{
		Name:  "gemini",
		Hosts: []string{"gemini.google.com"},
		OutputSelectors: []string{
			"message-content",
			"model-response",
		},
		InputSelectors: []string{"[contenteditable=true]", "textarea"},
	},
	{
		Name:  "deepseek",
		Hosts: []string{"chat.deepseek.com"},
		OutputSelectors: []string{
			"div.ds-markdown",
		},
		InputSelectors: []string{"textarea"},
	},
	{
		Name:  "perplexity",
		Hosts: []string{"perplexity.ai", "www.perplexity.ai"},
		OutputSelectors: []string{
			"div.prose",
		},
		InputSelectors: []string{"textarea", "[contenteditable=true]"},
	},
}

// Registry resolves profiles by origin host.
type Registry struct {
	profiles []Profile
}

// NewRegistry creates a Registry. Custom profiles take priority over the
// built-in table.
func NewRegistry(custom ...Profile) *Registry {
	r := &Registry{}
	r.profiles = append(r.profiles, custom...)
	r.profiles = append(r.profiles, builtin...)
	return r
}

// Resolve deterministically returns the first profile whose host pattern
// accepts the host, or the generic fallback when none match.
func (r *Registry) Resolve(host string) Profile {
	h := strings.ToLower(strings.TrimSpace(host))
	for _, p := range r.profiles {
		for _, pat := range p.Hosts {
			if matchHost(pat, h) {
				return p
			}
		}
	}
	return Generic
}

// All returns every registered profile in resolution order.
func (r *Registry) All() []Profile {
	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// ByName returns a profile by its name, or the generic fallback.
func (r *Registry) ByName(name string) Profile {
	for _, p := range r.profiles {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return Generic
}

// matchHost matches a case-insensitive host pattern. Patterns support glob
// syntax ("*.openai.com"); a bare host also matches its "www." variant.
func matchHost(pattern, host string) bool {
	pat := strings.ToLower(strings.TrimSpace(pattern))
	if pat == "" {
		return false
	}
	if pat == host {
		return true
	}
	if ok, err := path.Match(pat, host); err == nil && ok {
		return true
	}
	// Bare pattern matches one-level subdomains (www.claude.ai for claude.ai).
	if !strings.ContainsAny(pat, "*?[") && strings.HasSuffix(host, "."+pat) {
		return true
	}
	return false
}
