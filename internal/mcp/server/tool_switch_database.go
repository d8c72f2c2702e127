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

type SwitchDatabaseInput struct {
	Database string `json:"database"`
}

type SwitchDatabaseOutput struct {
	Database string `json:"database"`
}

func RegisterSwitchDatabaseTool(log *slog.Logger, server *mcp.Server, client tidb.Client) error {
	req, err := jsonschema.For[SwitchDatabaseInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create switch-database input schema: %w", err)
	}

	res, err := jsonschema.For[SwitchDatabaseOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create switch-database output schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: "switch-database",
		Description: `
			Switch the session's default database.

			Note:
			- The server is already connected to a configured database, so switching is only needed on explicit instruction.
			- Tables in other databases can be referenced without switching via the <database>.<table> syntax.
		`,
		InputSchema:  req,
		OutputSchema: res,
	}

	handler := func(ctx context.Context, _ *mcp.CallToolRequest, req SwitchDatabaseInput) (*mcp.CallToolResult, SwitchDatabaseOutput, error) {
		startTime := time.Now()
		toolName := "switch-database"

		log.Debug("mcp/tool: handling switch-database", "database", req.Database)

		res, err := handleSwitchDatabase(ctx, client, req)
		duration := time.Since(startTime).Seconds()
		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, SwitchDatabaseOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, res, nil
	}

	mcp.AddTool(server, tool, handler)
	return nil
}

func handleSwitchDatabase(ctx context.Context, client tidb.Client, req SwitchDatabaseInput) (SwitchDatabaseOutput, error) {
	if req.Database == "" {
		return SwitchDatabaseOutput{}, fmt.Errorf("database name is required")
	}
	if err := client.UseDatabase(ctx, req.Database); err != nil {
		return SwitchDatabaseOutput{}, fmt.Errorf("failed to switch to database %q: %w", req.Database, err)
	}
	return SwitchDatabaseOutput{Database: req.Database}, nil
}
