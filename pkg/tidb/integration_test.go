package tidb_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pingcap/gotidb/pkg/tidb"
	tidbtesting "github.com/pingcap/gotidb/pkg/tidb/testing"
)

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestClient_DatabaseLifecycle(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)
	ctx := t.Context()

	name := tidbtesting.TempDatabaseName("gotidb_lifecycle")
	require.NoError(t, client.CreateDatabase(ctx, name, false))
	t.Cleanup(func() {
		_ = client.DropDatabase(context.Background(), name, true)
	})

	exists, err := client.HasDatabase(ctx, name)
	require.NoError(t, err)
	require.True(t, exists)

	names, err := client.DatabaseNames(ctx)
	require.NoError(t, err)
	require.Contains(t, names, name)

	err = client.CreateDatabase(ctx, name, false)
	require.ErrorIs(t, err, tidb.ErrAlreadyExists)
	require.NoError(t, client.CreateDatabase(ctx, name, true))

	require.NoError(t, client.DropDatabase(ctx, name, false))

	exists, err = client.HasDatabase(ctx, name)
	require.NoError(t, err)
	require.False(t, exists)

	err = client.DropDatabase(ctx, name, false)
	require.ErrorIs(t, err, tidb.ErrNotFound)
	require.NoError(t, client.DropDatabase(ctx, name, true))
}

func TestClient_UseDatabaseSwitchesScope(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)
	ctx := t.Context()

	name := tidbtesting.NewTempDatabase(t, client, "gotidb_use")
	require.NoError(t, client.UseDatabase(ctx, name))

	res, err := client.Query(ctx, "SELECT DATABASE()")
	require.NoError(t, err)
	current, err := res.Scalar()
	require.NoError(t, err)
	require.Equal(t, name, current)

	got, err := client.CurrentDatabase(ctx)
	require.NoError(t, err)
	require.Equal(t, name, got)

	err = client.UseDatabase(ctx, "gotidb_definitely_missing")
	require.ErrorIs(t, err, tidb.ErrNotFound)
}

func TestClient_CurrentUser(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)

	user, err := client.CurrentUser(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, user)
	require.Contains(t, user, "@")
}

func TestClient_TableLifecycle(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)
	ctx := t.Context()

	name := tidbtesting.NewTempDatabase(t, client, "gotidb_tables")
	require.NoError(t, client.UseDatabase(ctx, name))

	_, err := client.Execute(ctx, "CREATE TABLE items (id BIGINT PRIMARY KEY AUTO_INCREMENT, name VARCHAR(64) NOT NULL, qty INT, created_at DATETIME)")
	require.NoError(t, err)

	exists, err := client.HasTable(ctx, "items")
	require.NoError(t, err)
	require.True(t, exists)

	tables, err := client.TableNames(ctx)
	require.NoError(t, err)
	require.Contains(t, tables, "items")

	require.NoError(t, client.DropTable(ctx, "items", false))

	exists, err = client.HasTable(ctx, "items")
	require.NoError(t, err)
	require.False(t, exists)

	err = client.DropTable(ctx, "items", false)
	require.ErrorIs(t, err, tidb.ErrNotFound)
	require.NoError(t, client.DropTable(ctx, "items", true))
}

func TestTable_CRUD(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)
	ctx := t.Context()

	name := tidbtesting.NewTempDatabase(t, client, "gotidb_crud")
	require.NoError(t, client.UseDatabase(ctx, name))

	_, err := client.Execute(ctx, "CREATE TABLE items (id BIGINT PRIMARY KEY AUTO_INCREMENT, name VARCHAR(64) NOT NULL, qty INT, created_at DATETIME)")
	require.NoError(t, err)

	items := client.Table("items")

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	res, err := items.Insert(ctx, map[string]any{"name": "bolt", "qty": 10, "created_at": created})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)
	require.NotZero(t, res.LastInsertID)

	_, err = items.BulkInsert(ctx, []map[string]any{
		{"name": "nut", "qty": 4, "created_at": created},
		{"name": "washer", "qty": 0, "created_at": created},
	})
	require.NoError(t, err)

	count, err := items.Count(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	count, err = items.Count(ctx, tidb.Filters{"qty": map[string]any{"$gt": 0}})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	rows, err := items.Select(ctx, tidb.Filters{"name": "bolt"}, tidb.WithColumns("name", "qty", "created_at"))
	require.NoError(t, err)
	row, err := rows.One()
	require.NoError(t, err)
	require.Equal(t, "bolt", row[0])
	require.IsType(t, time.Time{}, row[2])

	_, err = items.Update(ctx, map[string]any{"qty": 7}, tidb.Filters{"name": "nut"})
	require.NoError(t, err)

	qty, err := client.Query(ctx, "SELECT qty FROM items WHERE name = ?", "nut")
	require.NoError(t, err)
	val, err := qty.Scalar()
	require.NoError(t, err)
	n, ok := val.(int64)
	require.True(t, ok)
	require.Equal(t, int64(7), n)

	del, err := items.Delete(ctx, tidb.Filters{"qty": map[string]any{"$lte": 0}})
	require.NoError(t, err)
	require.Equal(t, int64(1), del.RowsAffected)

	require.NoError(t, items.Truncate(ctx))
	count, err = items.Count(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestTable_SchemaViolations(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)
	ctx := t.Context()

	name := tidbtesting.NewTempDatabase(t, client, "gotidb_schema")
	require.NoError(t, client.UseDatabase(ctx, name))

	_, err := client.Execute(ctx, "CREATE TABLE items (id BIGINT PRIMARY KEY, name VARCHAR(64) NOT NULL)")
	require.NoError(t, err)

	items := client.Table("items")

	_, err = items.Insert(ctx, map[string]any{"id": 1, "nope": "x"})
	require.ErrorIs(t, err, tidb.ErrSchemaViolation)

	_, err = items.Insert(ctx, map[string]any{"id": 2, "name": nil})
	require.ErrorIs(t, err, tidb.ErrSchemaViolation)

	_, err = items.Insert(ctx, map[string]any{"id": 3, "name": "ok"})
	require.NoError(t, err)
	_, err = items.Insert(ctx, map[string]any{"id": 3, "name": "dup"})
	require.ErrorIs(t, err, tidb.ErrAlreadyExists)
}

func TestTable_ColumnsAndIndexes(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)
	ctx := t.Context()

	name := tidbtesting.NewTempDatabase(t, client, "gotidb_meta")
	require.NoError(t, client.UseDatabase(ctx, name))

	_, err := client.Execute(ctx, "CREATE TABLE items (id BIGINT PRIMARY KEY, name VARCHAR(64) NOT NULL, qty INT)")
	require.NoError(t, err)

	items := client.Table("items")

	cols, err := items.Columns(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	require.Equal(t, "id", cols[0].Name)
	require.False(t, cols[0].Nullable)
	require.Equal(t, "qty", cols[2].Name)
	require.True(t, cols[2].Nullable)

	_, err = client.Table("missing").Columns(ctx)
	require.ErrorIs(t, err, tidb.ErrNotFound)

	require.NoError(t, items.CreateIndex(ctx, "idx_name", "name"))
	err = items.CreateIndex(ctx, "idx_name", "name")
	require.ErrorIs(t, err, tidb.ErrAlreadyExists)

	require.NoError(t, items.DropIndex(ctx, "idx_name"))
	err = items.DropIndex(ctx, "idx_name")
	require.ErrorIs(t, err, tidb.ErrNotFound)
}

func TestDatabase_ScopedReads(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)
	ctx := t.Context()

	name := tidbtesting.NewTempDatabase(t, client, "gotidb_scoped")
	db := client.Database(name)

	exists, err := db.Exists(ctx)
	require.NoError(t, err)
	require.True(t, exists)

	_, err = db.Table("events").Insert(ctx, map[string]any{"id": 1})
	require.ErrorIs(t, err, tidb.ErrNotFound)

	before, err := client.CurrentDatabase(ctx)
	require.NoError(t, err)

	_, err = client.Execute(ctx, "CREATE TABLE "+name+".events (id BIGINT PRIMARY KEY)")
	require.NoError(t, err)

	tables, err := db.TableNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"events"}, tables)

	has, err := db.HasTable(ctx, "events")
	require.NoError(t, err)
	require.True(t, has)

	// Scoped reads must not move the session's default database.
	after, err := client.CurrentDatabase(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)

	exists, err = db.Table("events").Exists(ctx)
	require.NoError(t, err)
	require.True(t, exists)

	_, err = db.Table("events").Insert(ctx, map[string]any{"id": 1})
	require.NoError(t, err)
}

func TestClient_WithSession(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)
	ctx := t.Context()

	name := tidbtesting.NewTempDatabase(t, client, "gotidb_session")
	require.NoError(t, client.UseDatabase(ctx, name))

	_, err := client.Execute(ctx, "CREATE TABLE items (id BIGINT PRIMARY KEY)")
	require.NoError(t, err)

	err = client.WithSession(ctx, func(s *tidb.Session) error {
		if _, err := s.Execute(ctx, "INSERT INTO items VALUES (1)"); err != nil {
			return err
		}
		_, err := s.Execute(ctx, "INSERT INTO items VALUES (2)")
		return err
	})
	require.NoError(t, err)

	count, err := client.Table("items").Count(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	boom := errors.New("boom")
	err = client.WithSession(ctx, func(s *tidb.Session) error {
		if _, err := s.Execute(ctx, "INSERT INTO items VALUES (3)"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err = client.Table("items").Count(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestClient_Disconnect(t *testing.T) {
	client := tidbtesting.NewDefaultClient(t)
	ctx := t.Context()

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.Disconnect())

	require.ErrorIs(t, client.Ping(ctx), tidb.ErrNotConnected)
	_, err := client.Query(ctx, "SELECT 1")
	require.ErrorIs(t, err, tidb.ErrNotConnected)
	_, err = client.Table("items").Count(ctx, nil)
	require.ErrorIs(t, err, tidb.ErrNotConnected)
	require.ErrorIs(t, client.UseDatabase(ctx, "test"), tidb.ErrNotConnected)

	// A second disconnect is a no-op.
	require.NoError(t, client.Disconnect())
}

func TestConnect_BadEndpoint(t *testing.T) {
	if tidbtesting.SkipRequested() {
		t.Skip(tidbtesting.SkipReason())
	}

	cfg := &tidb.Config{Host: "127.0.0.1", Port: "1", ConnectTimeout: 2 * time.Second}
	_, err := tidb.Connect(t.Context(), testLogger(t), cfg)
	require.ErrorIs(t, err, tidb.ErrConnection)
}
