package typewatch

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/typewatch/typewatch/kit"
)

// RegisterMCP registers typewatch tools on an MCP server, exposing phase
// status and tracked-node control to agent callers.
func (w *Watcher) RegisterMCP(srv *mcp.Server) {
	w.registerStatusTool(srv)
	w.registerPickTool(srv)
	w.registerUnpinTool(srv)
	w.registerProfilesTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- status ---

type statusResponse struct {
	Phase       string `json:"phase"`
	TrackedPath string `json:"tracked_path"`
	PageURL     string `json:"page_url"`
	PageID      string `json:"page_id"`
}

func (w *Watcher) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "typewatch_status",
		Description: "Get the current detection state: phase (idle/waiting/writing), tracked node path, and watched page identity.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return &statusResponse{
			Phase:       string(w.Phase()),
			TrackedPath: w.TrackedPath(),
			PageURL:     w.cfg.Page.URL,
			PageID:      w.cfg.Page.ID,
		}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- pick ---

type pickRequest struct {
	Path string `json:"path"`
}

func (w *Watcher) registerPickTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "typewatch_pick",
		Description: "Pin the tracked node to a specific walker path. Overrides selector and density resolution until unpinned or the node disappears.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Walker path of the node to track (e.g. /html/body/main/div[2])"},
		}, []string{"path"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*pickRequest)
		if !w.PinPath(r.Path) {
			return map[string]string{"status": "not_found", "path": r.Path}, nil
		}
		return map[string]string{"status": "pinned", "path": r.Path}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r pickRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- unpin ---

func (w *Watcher) registerUnpinTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "typewatch_unpin",
		Description: "Release a manual pick and return to automatic node resolution.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		w.UnpinPath()
		return map[string]string{"status": "unpinned"}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- profiles ---

func (w *Watcher) registerProfilesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "typewatch_profiles",
		Description: "List the site profiles known to this watcher, custom profiles first.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return w.registry.All(), nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
