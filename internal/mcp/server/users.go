package server

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pingcap/gotidb/internal/mcp/server/metrics"
	"github.com/pingcap/gotidb/pkg/tidb"
)

// Serverless clusters name accounts <cluster prefix>.<user>. A name that
// already carries a dot is taken as fully qualified; bare names get the
// prefix of the connected user.
var qualifiedUsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+$`)

type CreateUserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateUserOutput struct {
	// Username is the created account name, including the cluster prefix
	// on serverless.
	Username string `json:"username"`
}

type RemoveUserInput struct {
	Username string `json:"username"`
}

type RemoveUserOutput struct {
	Username string `json:"username"`
}

func RegisterCreateUserTool(log *slog.Logger, server *mcp.Server, client tidb.Client, serverless bool) error {
	req, err := jsonschema.For[CreateUserInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create db-create-user input schema: %w", err)
	}

	res, err := jsonschema.For[CreateUserOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create db-create-user output schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:         "db-create-user",
		Description:  `Create a new database user. On TiDB serverless the username is returned with the cluster prefix applied.`,
		InputSchema:  req,
		OutputSchema: res,
	}

	handler := func(ctx context.Context, _ *mcp.CallToolRequest, req CreateUserInput) (*mcp.CallToolResult, CreateUserOutput, error) {
		startTime := time.Now()
		toolName := "db-create-user"

		log.Debug("mcp/tool: handling db-create-user", "username", req.Username)

		name, err := createUser(ctx, client, serverless, req.Username, req.Password)
		duration := time.Since(startTime).Seconds()
		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, CreateUserOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, CreateUserOutput{
			Username: name,
		}, nil
	}

	mcp.AddTool(server, tool, handler)
	return nil
}

func RegisterRemoveUserTool(log *slog.Logger, server *mcp.Server, client tidb.Client, serverless bool) error {
	req, err := jsonschema.For[RemoveUserInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create db-remove-user input schema: %w", err)
	}

	res, err := jsonschema.For[RemoveUserOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create db-remove-user output schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:         "db-remove-user",
		Description:  `Remove a database user from the TiDB cluster. On TiDB serverless a bare username gets the cluster prefix applied first.`,
		InputSchema:  req,
		OutputSchema: res,
	}

	handler := func(ctx context.Context, _ *mcp.CallToolRequest, req RemoveUserInput) (*mcp.CallToolResult, RemoveUserOutput, error) {
		startTime := time.Now()
		toolName := "db-remove-user"

		log.Debug("mcp/tool: handling db-remove-user", "username", req.Username)

		name, err := removeUser(ctx, client, serverless, req.Username)
		duration := time.Since(startTime).Seconds()
		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, RemoveUserOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, RemoveUserOutput{
			Username: name,
		}, nil
	}

	mcp.AddTool(server, tool, handler)
	return nil
}

func createUser(ctx context.Context, client tidb.Client, serverless bool, username, password string) (string, error) {
	// An empty name would create the anonymous account.
	if username == "" {
		return "", fmt.Errorf("username is required")
	}

	name, err := qualifyUsername(ctx, client, serverless, username)
	if err != nil {
		return "", err
	}

	// CREATE USER is DDL and takes no placeholders, so the literals are
	// quoted by hand.
	stmt := fmt.Sprintf("CREATE USER %s IDENTIFIED BY %s", quoteLiteral(name), quoteLiteral(password))
	if _, err := client.Execute(ctx, stmt); err != nil {
		return "", fmt.Errorf("failed to create user %q: %w", name, err)
	}
	return name, nil
}

func removeUser(ctx context.Context, client tidb.Client, serverless bool, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username is required")
	}

	name, err := qualifyUsername(ctx, client, serverless, username)
	if err != nil {
		return "", err
	}

	if _, err := client.Execute(ctx, "DROP USER "+quoteLiteral(name)); err != nil {
		return "", fmt.Errorf("failed to remove user %q: %w", name, err)
	}
	return name, nil
}

func qualifyUsername(ctx context.Context, client tidb.Client, serverless bool, username string) (string, error) {
	if !serverless || qualifiedUsernamePattern.MatchString(username) {
		return username, nil
	}

	current, err := client.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve current user: %w", err)
	}
	// CURRENT_USER() reports user@host; the prefix lives in the user part.
	if at := strings.IndexByte(current, '@'); at >= 0 {
		current = current[:at]
	}
	prefix, _, found := strings.Cut(current, ".")
	if !found {
		return username, nil
	}
	return prefix + "." + username, nil
}

func quoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return "'" + s + "'"
}
