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

type ShowDatabasesInput struct{}

type ShowDatabasesOutput struct {
	Databases []string `json:"databases"`
}

func RegisterShowDatabasesTool(log *slog.Logger, server *mcp.Server, client tidb.Client) error {
	req, err := jsonschema.For[ShowDatabasesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create show-databases input schema: %w", err)
	}

	res, err := jsonschema.For[ShowDatabasesOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create show-databases output schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:         "show-databases",
		Description:  `List all databases in the TiDB cluster. Use this to discover database names before switching with "switch-database", or reference tables in other databases directly via the <database>.<table> syntax.`,
		InputSchema:  req,
		OutputSchema: res,
	}

	handler := func(ctx context.Context, _ *mcp.CallToolRequest, req ShowDatabasesInput) (*mcp.CallToolResult, ShowDatabasesOutput, error) {
		startTime := time.Now()
		toolName := "show-databases"

		log.Debug("mcp/tool: handling show-databases")

		names, err := client.DatabaseNames(ctx)
		duration := time.Since(startTime).Seconds()
		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, ShowDatabasesOutput{}, fmt.Errorf("failed to list databases: %w", err)
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, ShowDatabasesOutput{
			Databases: names,
		}, nil
	}

	mcp.AddTool(server, tool, handler)
	return nil
}
