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

type DescribeTableInput struct {
	Table string `json:"table"`
	// Database scopes the lookup; empty means the session's default
	// database.
	Database string `json:"database,omitempty"`
}

type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type DescribeTableOutput struct {
	Table   string       `json:"table"`
	Columns []ColumnInfo `json:"columns"`
}

func RegisterDescribeTableTool(log *slog.Logger, server *mcp.Server, client tidb.Client) error {
	req, err := jsonschema.For[DescribeTableInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create describe-table input schema: %w", err)
	}

	res, err := jsonschema.For[DescribeTableOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create describe-table output schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:         "describe-table",
		Description:  `Describe the columns of a table: name, engine type, and nullability. Consult this before writing SQL against a table instead of guessing column names.`,
		InputSchema:  req,
		OutputSchema: res,
	}

	handler := func(ctx context.Context, _ *mcp.CallToolRequest, req DescribeTableInput) (*mcp.CallToolResult, DescribeTableOutput, error) {
		startTime := time.Now()
		toolName := "describe-table"

		log.Debug("mcp/tool: handling describe-table", "table", req.Table, "database", req.Database)

		res, err := handleDescribeTable(ctx, client, req)
		duration := time.Since(startTime).Seconds()
		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, DescribeTableOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, res, nil
	}

	mcp.AddTool(server, tool, handler)
	return nil
}

func handleDescribeTable(ctx context.Context, client tidb.Client, req DescribeTableInput) (DescribeTableOutput, error) {
	if req.Table == "" {
		return DescribeTableOutput{}, fmt.Errorf("table name is required")
	}

	var table *tidb.Table
	if req.Database != "" {
		table = client.Database(req.Database).Table(req.Table)
	} else {
		table = client.Table(req.Table)
	}

	columns, err := table.Columns(ctx)
	if err != nil {
		return DescribeTableOutput{}, err
	}

	infos := make([]ColumnInfo, len(columns))
	for i, col := range columns {
		infos[i] = ColumnInfo{
			Name:     col.Name,
			Type:     col.Type,
			Nullable: col.Nullable,
		}
	}
	return DescribeTableOutput{Table: req.Table, Columns: infos}, nil
}
