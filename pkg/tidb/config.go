package tidb

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	defaultHost     = "localhost"
	defaultPort     = "4000"
	defaultUsername = "root"
	defaultDatabase = "test"

	defaultConnectTimeout = 10 * time.Second

	// Serverless gateways drop idle connections aggressively, so pool
	// connections are recycled well before the gateway's cutoff.
	serverlessConnMaxLifetime = 5 * time.Minute
)

// serverlessHostPattern matches TiDB Cloud Serverless gateway hostnames.
var serverlessHostPattern = regexp.MustCompile(`^gateway\d{2}\.(.+)\.(prod|dev|staging)\.(aws|alicloud)\.tidbcloud\.com`)

// Config holds the connection parameters for a TiDB cluster.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string

	// EnableSSL forces TLS on or off. When nil, TLS is enabled
	// automatically for TiDB Cloud Serverless gateway hosts and left off
	// otherwise.
	EnableSSL *bool

	// EnsureDatabase creates Database on connect when it does not exist
	// yet.
	EnsureDatabase bool

	ConnectTimeout time.Duration
}

// NewConfigFromEnv builds a Config from the TIDB_HOST, TIDB_PORT,
// TIDB_USERNAME, TIDB_PASSWORD, TIDB_DATABASE and TIDB_ENABLE_SSL
// environment variables. Unset variables fall back to the defaults applied
// by Validate.
func NewConfigFromEnv() *Config {
	cfg := &Config{
		Host:     os.Getenv("TIDB_HOST"),
		Port:     os.Getenv("TIDB_PORT"),
		Username: os.Getenv("TIDB_USERNAME"),
		Password: os.Getenv("TIDB_PASSWORD"),
		Database: os.Getenv("TIDB_DATABASE"),
	}
	if v := os.Getenv("TIDB_ENABLE_SSL"); v != "" {
		enabled := isTruthy(v)
		cfg.EnableSSL = &enabled
	}
	return cfg
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Validate fills defaults and rejects values the driver cannot use.
func (c *Config) Validate() error {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == "" {
		c.Port = defaultPort
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Port, err)
	}
	if c.Username == "" {
		c.Username = defaultUsername
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return nil
}

// IsServerless reports whether Host is a TiDB Cloud Serverless gateway.
func (c *Config) IsServerless() bool {
	return serverlessHostPattern.MatchString(c.Host)
}

// sslEnabled resolves the effective TLS setting, either the explicit value
// or serverless auto-detection.
func (c *Config) sslEnabled() bool {
	if c.EnableSSL != nil {
		return *c.EnableSSL
	}
	return c.IsServerless()
}

// DSN renders the go-sql-driver DSN for this config. TLS uses full server
// certificate verification, matching what the serverless gateways require.
func (c *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, c.Port)
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Timeout = c.ConnectTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}
	if c.sslEnabled() {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN()
}

// RedactedAddr returns a loggable endpoint description without the
// password.
func (c *Config) RedactedAddr() string {
	return fmt.Sprintf("%s@%s/%s", c.Username, net.JoinHostPort(c.Host, c.Port), c.Database)
}
