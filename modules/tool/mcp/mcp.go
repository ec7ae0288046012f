// Package mcp exposes the memory service as MCP tools over stdio. The
// surrounding agent runtime connects as an MCP client and gets four
// tools: memory_add, memory_search, memory_pin, memory_forget.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/beaconlabs/hivemind/internal/core"
	"github.com/beaconlabs/hivemind/internal/memory"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
)

// serverVersion is reported to MCP clients during initialization. It is
// overridden by the CLI with the build version.
var serverVersion = "dev"

// SetVersion sets the version reported to MCP clients. Call before Serve.
func SetVersion(v string) {
	if v != "" {
		serverVersion = v
	}
}

// Module is the MCP stdio tool surface. It is a leaf module driven by the
// mcp CLI subcommand rather than the app's Start loop.
type Module struct {
	config   Config
	logger   *slog.Logger
	memories *memory.Service
	server   *server.MCPServer
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tool.mcp",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mcp: decode config: %w", err)
	}
	m.config.defaults()
	return m.config.validate()
}

// Provision implements core.Provisioner. It resolves the memory service
// and builds the MCP server with the tool set attached.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger.With("module", "tool.mcp")

	svc, ok := ctx.Service("memory.service")
	if !ok {
		return errors.New("mcp: memory.service not registered")
	}
	mem, ok := svc.(*memory.Service)
	if !ok {
		return errors.New("mcp: memory.service has unexpected type")
	}
	m.memories = mem

	m.server = server.NewMCPServer(
		m.config.ServerName,
		serverVersion,
		server.WithToolCapabilities(false),
	)
	m.server.AddTool(addTool(), m.handleAdd)
	m.server.AddTool(searchTool(), m.handleSearch)
	m.server.AddTool(pinTool(), m.handlePin)
	m.server.AddTool(forgetTool(), m.handleForget)

	return nil
}

// Serve runs the stdio transport until the client disconnects. It blocks.
func (m *Module) Serve() error {
	if m.server == nil {
		return errors.New("mcp: not provisioned")
	}
	m.logger.Info("mcp server ready", "name", m.config.ServerName)
	return server.ServeStdio(m.server)
}

func addTool() mcp.Tool {
	return mcp.NewTool(
		"memory_add",
		mcp.WithDescription("Stores a memory for a user and returns the record as JSON."),
		mcp.WithString("content",
			mcp.Description("Text to remember"),
			mcp.Required(),
		),
		mcp.WithString("tenant_id",
			mcp.Description("Tenant to store under; defaults to the configured tenant"),
		),
		mcp.WithString("user_id",
			mcp.Description("User the memory belongs to; defaults to the configured user"),
		),
		mcp.WithString("memory_type",
			mcp.Description("Memory type"),
			mcp.Enum("short_term", "long_term"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithNumber("importance",
			mcp.Description("Importance 0-10; higher ranks earlier in searches"),
		),
	)
}

func searchTool() mcp.Tool {
	return mcp.NewTool(
		"memory_search",
		mcp.WithDescription("Ranked keyword search over stored memories. Returns a JSON array of records, pinned first."),
		mcp.WithString("q",
			mcp.Description("Query text; tokens are matched case-insensitively"),
			mcp.Required(),
		),
		mcp.WithString("tenant_id",
			mcp.Description("Tenant to search; defaults to the configured tenant"),
		),
		mcp.WithString("memory_type",
			mcp.Description("Restrict results to one memory type"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags; results must carry all of them"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results, default 50"),
		),
	)
}

func pinTool() mcp.Tool {
	return mcp.NewTool(
		"memory_pin",
		mcp.WithDescription("Pins a memory so it is never evicted and always ranks first. Set unpin to release it."),
		mcp.WithString("id",
			mcp.Description("Record ID"),
			mcp.Required(),
		),
		mcp.WithString("tenant_id",
			mcp.Description("Owning tenant; defaults to the configured tenant"),
		),
		mcp.WithBoolean("unpin",
			mcp.Description("Clear the pin instead of setting it"),
		),
	)
}

func forgetTool() mcp.Tool {
	return mcp.NewTool(
		"memory_forget",
		mcp.WithDescription("Deletes a memory permanently."),
		mcp.WithString("id",
			mcp.Description("Record ID"),
			mcp.Required(),
		),
		mcp.WithString("tenant_id",
			mcp.Description("Owning tenant; defaults to the configured tenant"),
		),
	)
}

func (m *Module) handleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tenantID := req.GetString("tenant_id", m.config.DefaultTenant)
	if tenantID == "" {
		return mcp.NewToolResultError("tenant_id is required"), nil
	}

	rec, err := m.memories.Add(ctx, memory.AddParams{
		TenantID:   tenantID,
		UserID:     req.GetString("user_id", m.config.DefaultUser),
		Content:    content,
		Type:       memory.MemoryType(req.GetString("memory_type", "")),
		Tags:       splitTags(req.GetString("tags", "")),
		Importance: req.GetInt("importance", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

func (m *Module) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("q")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tenantID := req.GetString("tenant_id", m.config.DefaultTenant)
	if tenantID == "" {
		return mcp.NewToolResultError("tenant_id is required"), nil
	}

	recs, err := m.memories.Search(ctx, memory.SearchParams{
		TenantID: tenantID,
		Query:    query,
		Type:     memory.MemoryType(req.GetString("memory_type", "")),
		Tags:     splitTags(req.GetString("tags", "")),
		Limit:    req.GetInt("limit", memory.DefaultSearchLimit),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(recs)
}

func (m *Module) handlePin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tenantID := req.GetString("tenant_id", m.config.DefaultTenant)
	if tenantID == "" {
		return mcp.NewToolResultError("tenant_id is required"), nil
	}

	var rec memory.Record
	if req.GetBool("unpin", false) {
		rec, err = m.memories.Unpin(ctx, tenantID, id)
	} else {
		rec, err = m.memories.Pin(ctx, tenantID, id)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

func (m *Module) handleForget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tenantID := req.GetString("tenant_id", m.config.DefaultTenant)
	if tenantID == "" {
		return mcp.NewToolResultError("tenant_id is required"), nil
	}

	if err := m.memories.Delete(ctx, tenantID, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("forgotten"), nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
