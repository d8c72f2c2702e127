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

type ExecuteInput struct {
	// SQL is a single statement; Statements is a batch. Both may be set,
	// in which case SQL runs first.
	SQL        string   `json:"sql,omitempty"`
	Statements []string `json:"statements,omitempty"`
}

type StatementResult struct {
	RowsAffected int64 `json:"rows_affected"`
	LastInsertID int64 `json:"last_insert_id,omitempty"`
}

type ExecuteOutput struct {
	Results []StatementResult `json:"results"`
}

func RegisterDBExecuteTool(log *slog.Logger, server *mcp.Server, client tidb.Client) error {
	req, err := jsonschema.For[ExecuteInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create db-execute input schema: %w", err)
	}

	res, err := jsonschema.For[ExecuteOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create db-execute output schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: "db-execute",
		Description: `
			Execute operations on the TiDB database via SQL. Best practices:
			- pass one statement as "sql" or a batch as "statements"
			- use db-execute for INSERT / UPDATE / DELETE / CREATE / DROP ... statements
			- the statements run in a single session, so a failing batch rolls back its earlier DML
		`,
		InputSchema:  req,
		OutputSchema: res,
	}

	handler := func(ctx context.Context, _ *mcp.CallToolRequest, req ExecuteInput) (*mcp.CallToolResult, ExecuteOutput, error) {
		startTime := time.Now()
		toolName := "db-execute"

		log.Debug("mcp/tool: handling db-execute", "sql", req.SQL, "statements", len(req.Statements))

		res, err := handleDBExecute(ctx, client, req)
		duration := time.Since(startTime).Seconds()
		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, ExecuteOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, res, nil
	}

	mcp.AddTool(server, tool, handler)
	return nil
}

func handleDBExecute(ctx context.Context, client tidb.Client, req ExecuteInput) (ExecuteOutput, error) {
	stmts := make([]string, 0, len(req.Statements)+1)
	if strings.TrimSpace(req.SQL) != "" {
		stmts = append(stmts, req.SQL)
	}
	stmts = append(stmts, req.Statements...)
	if len(stmts) == 0 {
		return ExecuteOutput{}, fmt.Errorf("either sql or statements is required")
	}

	results := make([]StatementResult, 0, len(stmts))
	err := client.WithSession(ctx, func(sess *tidb.Session) error {
		for _, stmt := range stmts {
			res, err := sess.Execute(ctx, stmt)
			if err != nil {
				return err
			}
			results = append(results, StatementResult{
				RowsAffected: res.RowsAffected,
				LastInsertID: res.LastInsertID,
			})
		}
		return nil
	})
	if err != nil {
		return ExecuteOutput{}, fmt.Errorf("failed to execute statements: %w", err)
	}

	return ExecuteOutput{Results: results}, nil
}
