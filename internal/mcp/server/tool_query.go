package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pingcap/gotidb/internal/mcp/server/metrics"
	"github.com/pingcap/gotidb/pkg/tidb"
)

type QueryInput struct {
	SQL string `json:"sql"`
}

type QueryOutput struct {
	Columns []string   `json:"columns"`
	Rows    []QueryRow `json:"rows"`
	Count   int        `json:"count"`
	// Truncated is set when the result was cut off at the server's row
	// cap; narrow the query or add a LIMIT to see the rest.
	Truncated bool `json:"truncated,omitempty"`
}

type QueryRow map[string]any

func RegisterDBQueryTool(log *slog.Logger, server *mcp.Server, client tidb.Client, maxRows int) error {
	req, err := jsonschema.For[QueryInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create db-query input schema: %w", err)
	}

	res, err := jsonschema.For[QueryOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create db-query output schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: "db-query",
		Description: `
			Query data from the TiDB database via SQL. Best practices:
			- use TiDB (MySQL-compatible) syntax
			- add LIMIT to SELECT statements to avoid large result sets
			- only read-only statements are accepted: SELECT / SHOW / DESCRIBE / EXPLAIN; use "db-execute" for writes
		`,
		InputSchema:  req,
		OutputSchema: res,
	}

	handler := func(ctx context.Context, _ *mcp.CallToolRequest, req QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
		startTime := time.Now()
		toolName := "db-query"

		log.Debug("mcp/tool: handling db-query", "sql", req.SQL)

		res, err := handleDBQuery(ctx, client, req, maxRows)
		duration := time.Since(startTime).Seconds()
		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, QueryOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, res, nil
	}

	mcp.AddTool(server, tool, handler)
	return nil
}

func handleDBQuery(ctx context.Context, client tidb.Client, req QueryInput, maxRows int) (QueryOutput, error) {
	stmt := strings.TrimSpace(req.SQL)
	if stmt == "" {
		return QueryOutput{}, fmt.Errorf("sql statement is required")
	}
	if !tidb.IsReadOnlyStatement(stmt) {
		return QueryOutput{}, fmt.Errorf("statement is not read-only, use the db-execute tool for writes")
	}

	res, err := client.Query(ctx, stmt)
	if err != nil {
		return QueryOutput{}, fmt.Errorf("failed to execute query: %w", err)
	}

	maps := res.Maps()
	truncated := false
	if maxRows > 0 && len(maps) > maxRows {
		maps = maps[:maxRows]
		truncated = true
	}

	rows := make([]QueryRow, len(maps))
	for i, m := range maps {
		rows[i] = QueryRow(m)
	}

	return QueryOutput{
		Columns:   res.Columns(),
		Rows:      rows,
		Count:     len(rows),
		Truncated: truncated,
	}, nil
}
