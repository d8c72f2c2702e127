package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pingcap/gotidb/pkg/tidb"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
	defaultMaxRows           = 500
)

type Config struct {
	Logger *slog.Logger

	Client tidb.Client

	// Serverless switches on cluster-prefix handling for the user
	// management tools.
	Serverless bool

	Version           string
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedTokens     []string // Bearer tokens allowed for MCP endpoint authentication
	MaxRows           int      // row cap for db-query results
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.MaxRows == 0 {
		c.MaxRows = defaultMaxRows
	}
	return nil
}
