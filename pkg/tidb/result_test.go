package tidb

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeSQLResult struct {
	lastID int64
	rows   int64
	err    error
}

func (r fakeSQLResult) LastInsertId() (int64, error) { return r.lastID, r.err }
func (r fakeSQLResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestNewExecResult(t *testing.T) {
	t.Parallel()

	t.Run("carries counters", func(t *testing.T) {
		t.Parallel()

		res := newExecResult(fakeSQLResult{lastID: 7, rows: 3})
		require.Equal(t, int64(3), res.RowsAffected)
		require.Equal(t, int64(7), res.LastInsertID)
	})

	t.Run("zeroes counters the engine does not report", func(t *testing.T) {
		t.Parallel()

		res := newExecResult(fakeSQLResult{lastID: 7, rows: 3, err: errors.New("not supported")})
		require.Zero(t, res.RowsAffected)
		require.Zero(t, res.LastInsertID)
	})
}

func TestResult_Scalar(t *testing.T) {
	t.Parallel()

	t.Run("single value", func(t *testing.T) {
		t.Parallel()

		res := NewResult([]string{"count"}, [][]any{{int64(42)}})
		val, err := res.Scalar()
		require.NoError(t, err)
		require.Equal(t, int64(42), val)
	})

	t.Run("empty result yields nil", func(t *testing.T) {
		t.Parallel()

		res := NewResult([]string{"count"}, nil)
		val, err := res.Scalar()
		require.NoError(t, err)
		require.Nil(t, val)
	})

	t.Run("multiple columns rejected", func(t *testing.T) {
		t.Parallel()

		res := NewResult([]string{"a", "b"}, [][]any{{1, 2}})
		_, err := res.Scalar()
		require.ErrorIs(t, err, ErrResultShape)
		require.Contains(t, err.Error(), "expected one column")
	})

	t.Run("multiple rows rejected", func(t *testing.T) {
		t.Parallel()

		res := NewResult([]string{"a"}, [][]any{{1}, {2}})
		_, err := res.Scalar()
		require.ErrorIs(t, err, ErrResultShape)
		require.Contains(t, err.Error(), "expected at most one row")
	})
}

func TestResult_One(t *testing.T) {
	t.Parallel()

	t.Run("single row", func(t *testing.T) {
		t.Parallel()

		res := NewResult([]string{"id", "name"}, [][]any{{int64(1), "ada"}})
		row, err := res.One()
		require.NoError(t, err)
		require.Equal(t, []any{int64(1), "ada"}, row)
	})

	t.Run("empty result rejected", func(t *testing.T) {
		t.Parallel()

		res := NewResult([]string{"id"}, nil)
		_, err := res.One()
		require.ErrorIs(t, err, ErrResultShape)
	})

	t.Run("multiple rows rejected", func(t *testing.T) {
		t.Parallel()

		res := NewResult([]string{"id"}, [][]any{{1}, {2}})
		_, err := res.One()
		require.ErrorIs(t, err, ErrResultShape)
		require.Contains(t, err.Error(), "expected exactly one row")
	})
}

func TestResult_Maps(t *testing.T) {
	t.Parallel()

	res := NewResult([]string{"id", "name"}, [][]any{
		{int64(1), "ada"},
		{int64(2), nil},
	})
	want := []map[string]any{
		{"id": int64(1), "name": "ada"},
		{"id": int64(2), "name": nil},
	}
	if diff := cmp.Diff(want, res.Maps()); diff != "" {
		t.Errorf("Maps mismatch (-want +got): %s\n", diff)
	}
	require.Equal(t, 2, res.Count())
	require.Equal(t, []string{"id", "name"}, res.Columns())
}

func TestResult_Unmarshal(t *testing.T) {
	t.Parallel()

	type userRow struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	res := NewResult([]string{"id", "name"}, [][]any{
		{int64(1), "ada"},
		{int64(2), "grace"},
	})
	var users []userRow
	require.NoError(t, res.Unmarshal(&users))
	require.Equal(t, []userRow{{1, "ada"}, {2, "grace"}}, users)
}

func TestResult_RenderTable(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	res := NewResult([]string{"id", "name", "created_at"}, [][]any{
		{int64(1), "ada", created},
		{int64(2), nil, created},
	})

	var sb strings.Builder
	res.RenderTable(&sb)
	out := sb.String()
	require.Contains(t, out, "id")
	require.Contains(t, out, "name")
	require.Contains(t, out, "ada")
	require.Contains(t, out, "NULL")
	require.Contains(t, out, "2024-06-01T12:00:00Z")
	require.Equal(t, out, res.String())
}

func TestAsInt64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   any
		want    int64
		wantErr bool
	}{
		{"int64", int64(42), 42, false},
		{"int", 7, 7, false},
		{"uint64", uint64(9), 9, false},
		{"decimal string", "42", 42, false},
		{"byte slice", []byte("17"), 17, false},
		{"non-numeric string", "x", 0, true},
		{"unsupported type", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := asInt64(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
