package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pingcap/gotidb/internal/mcp/server/metrics"
	"github.com/pingcap/gotidb/pkg/tidb"
)

type ShowTablesInput struct {
	// Database scopes the listing; empty means the session's default
	// database.
	Database string `json:"database,omitempty"`
}

type ShowTablesOutput struct {
	Database string   `json:"database,omitempty"`
	Tables   []string `json:"tables"`
}

func RegisterShowTablesTool(log *slog.Logger, server *mcp.Server, client tidb.Client) error {
	req, err := jsonschema.For[ShowTablesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create show-tables input schema: %w", err)
	}

	res, err := jsonschema.For[ShowTablesOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create show-tables output schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:         "show-tables",
		Description:  `List all tables in the current database, or in the named database without switching to it. Use "describe-table" to inspect the columns of a table before querying it.`,
		InputSchema:  req,
		OutputSchema: res,
	}

	handler := func(ctx context.Context, _ *mcp.CallToolRequest, req ShowTablesInput) (*mcp.CallToolResult, ShowTablesOutput, error) {
		startTime := time.Now()
		toolName := "show-tables"

		log.Debug("mcp/tool: handling show-tables", "database", req.Database)

		res, err := handleShowTables(ctx, client, req)
		duration := time.Since(startTime).Seconds()
		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, ShowTablesOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, res, nil
	}

	mcp.AddTool(server, tool, handler)
	return nil
}

func handleShowTables(ctx context.Context, client tidb.Client, req ShowTablesInput) (ShowTablesOutput, error) {
	if req.Database != "" {
		tables, err := client.Database(req.Database).TableNames(ctx)
		if err != nil {
			return ShowTablesOutput{}, err
		}
		return ShowTablesOutput{Database: req.Database, Tables: tables}, nil
	}

	tables, err := client.TableNames(ctx)
	if err != nil {
		return ShowTablesOutput{}, err
	}
	return ShowTablesOutput{Tables: tables}, nil
}
