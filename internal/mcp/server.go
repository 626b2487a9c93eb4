// Package mcp exposes the change store to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/usecase"
)

// Server wraps the MCP server with read-only change store tools.
type Server struct {
	server *mcp.Server
	dbCtx  *database.Context
}

// NewServer creates a server over an open change store. The caller keeps ownership
// of dbCtx.
func NewServer(dbCtx *database.Context, version string) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "wdrc",
		Version: version,
	}, nil)

	s := &Server{
		server: mcpServer,
		dbCtx:  dbCtx,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "wdrc_item_changes",
		Description: "List recorded label, description, alias, sitelink and statement changes of an item, newest first",
	}, s.handleItemChanges)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "wdrc_status",
		Description: "Show sync watermarks and table row counts",
	}, s.handleStatus)
}

type ItemChangesInput struct {
	Item  string `json:"item" jsonschema:"item identifier such as Q42"`
	Limit *int   `json:"limit,omitempty" jsonschema:"maximum rows per change table (default 50)"`
}

type ItemChangesOutput struct {
	Item       string            `json:"item"`
	Labels     []LabelChange     `json:"labels"`
	Statements []StatementChange `json:"statements"`
}

type LabelChange struct {
	Revision  uint64 `json:"revision"`
	Subject   string `json:"subject"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	Timestamp string `json:"timestamp"`
}

type StatementChange struct {
	Revision  uint64 `json:"revision"`
	Property  string `json:"property"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type StatusInput struct{}

type StatusOutput struct {
	Watermarks map[string]string `json:"watermarks"`
	Rows       map[string]int64  `json:"rows"`
}

func (s *Server) handleItemChanges(ctx context.Context, req *mcp.CallToolRequest, input ItemChangesInput) (*mcp.CallToolResult, ItemChangesOutput, error) {
	limit := 0
	if input.Limit != nil {
		limit = *input.Limit
	}

	result, err := usecase.NewQuery(s.dbCtx).ItemChanges(ctx, input.Item, limit)
	if err != nil {
		return nil, ItemChangesOutput{}, fmt.Errorf("failed to list changes of %s: %w", input.Item, err)
	}

	out := ItemChangesOutput{
		Item:       fmt.Sprintf("Q%d", result.Item),
		Labels:     make([]LabelChange, 0, len(result.Labels)),
		Statements: make([]StatementChange, 0, len(result.Statements)),
	}
	for _, l := range result.Labels {
		out.Labels = append(out.Labels, LabelChange{
			Revision:  l.Revision,
			Subject:   l.Subject.String(),
			Type:      l.ChangeType.String(),
			Key:       l.Key,
			Timestamp: l.Timestamp,
		})
	}
	for _, st := range result.Statements {
		out.Statements = append(out.Statements, StatementChange{
			Revision:  st.Revision,
			Property:  fmt.Sprintf("P%d", st.Property),
			Type:      st.ChangeType.String(),
			Timestamp: st.Timestamp,
		})
	}
	return nil, out, nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := usecase.NewQuery(s.dbCtx).Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("failed to read status: %w", err)
	}

	out := StatusOutput{
		Watermarks: make(map[string]string, len(status.Streams)),
		Rows:       make(map[string]int64, len(status.Tables)),
	}
	for _, st := range status.Streams {
		out.Watermarks[string(st.Stream)] = st.Watermark
	}
	for _, tc := range status.Tables {
		out.Rows[tc.Table] = tc.Rows
	}
	return nil, out, nil
}
