package tidb

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// Error kinds surfaced by the client. Operations wrap these so callers can
// match with errors.Is instead of inspecting driver error numbers.
var (
	// ErrConnection indicates the engine could not be reached or rejected
	// the credentials while establishing a connection.
	ErrConnection = errors.New("connection failed")

	// ErrNotConnected indicates the client was disconnected before the call.
	ErrNotConnected = errors.New("client is not connected")

	// ErrAlreadyExists indicates a database, table, index or row with the
	// same identity is already present.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound indicates the named database, table or index is absent.
	ErrNotFound = errors.New("not found")

	// ErrResultShape indicates a result set with the wrong number of rows
	// or columns for the requested extraction.
	ErrResultShape = errors.New("unexpected result shape")

	// ErrSchemaViolation indicates a record that does not match the table
	// schema declared in the engine.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrUnavailable is returned by every operation of an unavailable
	// client, typically the stand-in used when no live TiDB is configured.
	ErrUnavailable = errors.New("client unavailable")
)

// Server error numbers the client classifies. TiDB keeps MySQL's numbering
// for all of these.
const (
	errDBCreateExists    = 1007
	errDBDropNotExists   = 1008
	errBadNull           = 1048
	errBadDB             = 1049
	errTableExists       = 1050
	errBadTable          = 1051
	errBadField          = 1054
	errDupKeyName        = 1061
	errDupEntry          = 1062
	errCantDropKeyed     = 1091
	errWrongValueCount   = 1136
	errNoSuchTable       = 1146
	errTruncatedWrongVal = 1366
	errCheckViolated     = 3819
)

// classifyEngineError maps engine errors onto the client's error kinds.
// Errors with no matching kind pass through unchanged.
func classifyEngineError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case errDBCreateExists, errTableExists, errDupKeyName, errDupEntry:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, myErr.Message)
	case errDBDropNotExists, errBadDB, errBadTable, errCantDropKeyed, errNoSuchTable:
		return fmt.Errorf("%w: %s", ErrNotFound, myErr.Message)
	case errBadNull, errBadField, errWrongValueCount, errTruncatedWrongVal, errCheckViolated:
		return fmt.Errorf("%w: %s", ErrSchemaViolation, myErr.Message)
	}
	return err
}
