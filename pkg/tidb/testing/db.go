// Package tidbtesting provides TiDB fixtures for tests: a client backed
// by the cluster from the environment or a throwaway container, and the
// skip switch for environments without Docker or a reachable cluster.
package tidbtesting

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/docker/go-connections/nat"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tctidb "github.com/testcontainers/testcontainers-go/modules/tidb"

	"github.com/pingcap/gotidb/pkg/tidb"
)

// SkipEnvVar disables cluster-backed tests when set to a truthy value
// ("1", "true" or "yes", case-insensitive).
const SkipEnvVar = "PYTIDB_SKIP_TIDB_TESTS"

const (
	defaultContainerImage = "pingcap/tidb:v8.5.1"
	containerPort         = "4000/tcp"
)

// SkipRequested reports whether SkipEnvVar asks for cluster-backed
// tests to be skipped.
func SkipRequested() bool {
	switch strings.ToLower(os.Getenv(SkipEnvVar)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// SkipReason names the switch behind a skip, so a skipped run points
// back at the variable that caused it.
func SkipReason() string {
	return fmt.Sprintf("TiDB tests are disabled by %s=%s", SkipEnvVar, os.Getenv(SkipEnvVar))
}

// NewUnavailable returns the client stand-in for a switched-off cluster.
// Every operation on it fails with tidb.ErrUnavailable carrying
// SkipReason.
func NewUnavailable() tidb.Client {
	return tidb.NewUnavailableClient(SkipReason())
}

type Config struct {
	ContainerImage string
}

func (cfg *Config) Validate() error {
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = defaultContainerImage
	}
	return nil
}

func NewDefaultClient(t testing.TB) tidb.Client {
	return NewClient(t, nil)
}

// NewClient returns a client connected to a TiDB reachable from the
// test: the cluster named by TIDB_HOST when set, a throwaway container
// otherwise. When SkipEnvVar asks for it the test is skipped instead.
// Disconnection is registered with t.Cleanup.
func NewClient(t testing.TB, cfg *Config) tidb.Client {
	ctx := t.Context()

	if SkipRequested() {
		t.Skip(SkipReason())
	}

	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("failed to validate config: %v", err)
	}

	clientCfg := tidb.NewConfigFromEnv()
	if clientCfg.Host == "" {
		clientCfg = containerConfig(t, cfg)
	}
	clientCfg.EnsureDatabase = true

	log := slog.Default()
	// Retry the connection for a moment; the engine inside a fresh
	// container accepts TCP before it is ready to serve queries.
	client, err := backoff.Retry(ctx, func() (tidb.Client, error) {
		return tidb.Connect(ctx, log, clientCfg)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(30*time.Second))
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := client.Disconnect(); err != nil {
			t.Logf("failed to disconnect client: %v", err)
		}
	})

	return client
}

// containerConfig starts a throwaway TiDB container and renders its
// connection parameters.
func containerConfig(t testing.TB, cfg *Config) *tidb.Config {
	ctx := t.Context()

	// Retry container start a few times for retryable errors.
	var container *tctidb.Container
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var err error
		container, err = tctidb.Run(ctx, cfg.ContainerImage)
		if err != nil {
			lastErr = err
			if isRetryableContainerStartErr(err) && attempt < 3 {
				time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
				continue
			}
			require.NoError(t, err)
		}
		break
	}
	if container == nil {
		t.Fatalf("failed to start TiDB container after retries: %v", lastErr)
	}
	testcontainers.CleanupContainer(t, container)

	// Credentials come from the module's DSN, the address from the
	// docker port mapping.
	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(connStr)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, nat.Port(containerPort))
	require.NoError(t, err)

	return &tidb.Config{
		Host:     host,
		Port:     mappedPort.Port(),
		Username: parsed.User,
		Password: parsed.Passwd,
		Database: parsed.DBName,
	}
}

func isRetryableContainerStartErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded") ||
		strings.Contains(s, "connection refused")
}

// TempDatabaseName returns a unique database name with the given
// prefix.
func TempDatabaseName(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%s", prefix, suffix)
}

// NewTempDatabase creates a uniquely named database and registers its
// drop with t.Cleanup.
func NewTempDatabase(t testing.TB, client tidb.Client, prefix string) string {
	name := TempDatabaseName(prefix)
	require.NoError(t, client.CreateDatabase(t.Context(), name, false))
	t.Cleanup(func() {
		if err := client.DropDatabase(context.Background(), name, true); err != nil {
			t.Logf("failed to drop database %s: %v", name, err)
		}
	})
	return name
}
