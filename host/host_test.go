package host

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/rdsdataapi/service"
	"github.com/tomyedwab/rdsdataapi/types"
)

const (
	testResource = "arn:aws:rds:us-east-1:123456789012:cluster:local"
	testSecret   = "arn:aws:secretsmanager:us-east-1:123456789012:secret:local"
)

// newTestHost returns a host over a file-backed SQLite database, so
// uncommitted writes stay private to their transaction's connection.
func newTestHost(t *testing.T, opts ...Option) (*Host, *sqlx.DB) {
	t.Helper()
	db, err := Open(BackendSQLite3, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h, err := New(db, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h, db
}

func execute(t *testing.T, h *Host, txID, sql string, params ...types.SqlParameter) *types.ExecuteStatementResponse {
	t.Helper()
	resp, err := h.ExecuteStatement(context.Background(), &types.ExecuteStatementRequest{
		ResourceArn:   testResource,
		SecretArn:     testSecret,
		Sql:           sql,
		Parameters:    params,
		TransactionID: txID,
	})
	require.NoError(t, err)
	return resp
}

func param(name string, value types.Field) types.SqlParameter {
	return types.SqlParameter{Name: name, Value: value}
}

func countItems(t *testing.T, h *Host, txID string) int64 {
	t.Helper()
	resp := execute(t, h, txID, "SELECT COUNT(*) AS n FROM items")
	require.Len(t, resp.Records, 1)
	n, ok := resp.Records[0][0].Value().(int64)
	require.True(t, ok)
	return n
}

func createItems(t *testing.T, h *Host) {
	t.Helper()
	execute(t, h, "", "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, price REAL, data BLOB, note TEXT)")
}

func begin(t *testing.T, h *Host) string {
	t.Helper()
	resp, err := h.BeginTransaction(context.Background(), &types.BeginTransactionRequest{
		ResourceArn: testResource,
		SecretArn:   testSecret,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.TransactionID)
	return resp.TransactionID
}

func commit(h *Host, txID string) (*types.CommitTransactionResponse, error) {
	return h.CommitTransaction(context.Background(), &types.CommitTransactionRequest{
		ResourceArn:   testResource,
		SecretArn:     testSecret,
		TransactionID: txID,
	})
}

func rollback(h *Host, txID string) (*types.RollbackTransactionResponse, error) {
	return h.RollbackTransaction(context.Background(), &types.RollbackTransactionRequest{
		ResourceArn:   testResource,
		SecretArn:     testSecret,
		TransactionID: txID,
	})
}

func TestHost_ExecuteAndQuery(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	resp := execute(t, h, "", "INSERT INTO items (name, price, data) VALUES (:name, :price, :data)",
		param("name", types.StringField("widget")),
		param("price", types.DoubleField(2.5)),
		param("data", types.BlobField([]byte{0x00, 0x01})),
	)
	assert.False(t, resp.HasResult())
	assert.Equal(t, int64(1), resp.NumberOfRecordsUpdated)
	assert.Equal(t, []types.Field{types.LongField(1)}, resp.GeneratedFields)

	resp = execute(t, h, "", "SELECT id, name, price, data, note FROM items WHERE id = :id",
		param("id", types.LongField(1)))
	require.True(t, resp.HasResult())
	assert.Equal(t, [][]types.Field{{
		types.LongField(1),
		types.StringField("widget"),
		types.DoubleField(2.5),
		types.BlobField([]byte{0x00, 0x01}),
		types.NullField(),
	}}, resp.Records)

	names := make([]string, len(resp.ColumnMetadata))
	typeNames := make([]string, len(resp.ColumnMetadata))
	for i, col := range resp.ColumnMetadata {
		names[i] = col.Name
		typeNames[i] = col.TypeName
	}
	assert.Equal(t, []string{"id", "name", "price", "data", "note"}, names)
	assert.Equal(t, []string{"integer", "text", "real", "blob", "text"}, typeNames)
}

func TestHost_QueryWithoutRows(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	resp := execute(t, h, "", "SELECT id FROM items")
	assert.True(t, resp.HasResult())
	assert.Empty(t, resp.Records)
	require.Len(t, resp.ColumnMetadata, 1)
}

func TestHost_ReturningOnItsOwnLine(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	resp := execute(t, h, "", "INSERT INTO items (name)\nVALUES (:name)\nRETURNING id, name",
		param("name", types.StringField("gadget")))
	require.True(t, resp.HasResult())
	assert.Equal(t, [][]types.Field{{types.LongField(1), types.StringField("gadget")}}, resp.Records)
	require.Len(t, resp.ColumnMetadata, 2)
	assert.Equal(t, "id", resp.ColumnMetadata[0].Name)
	assert.Equal(t, int64(1), countItems(t, h, ""))
}

func TestHost_StatementWithoutColumns(t *testing.T) {
	h, _ := newTestHost(t)

	resp := execute(t, h, "", "PRAGMA foreign_keys = ON")
	assert.False(t, resp.HasResult())
	assert.Nil(t, resp.ColumnMetadata)
	assert.Nil(t, resp.Records)
}

func TestHost_InfersExpressionTypes(t *testing.T) {
	h, _ := newTestHost(t)

	resp := execute(t, h, "", "SELECT 1 + 1 AS two, 'x' AS letter, NULL AS nothing")
	require.Len(t, resp.ColumnMetadata, 3)
	assert.Equal(t, "bigint", resp.ColumnMetadata[0].TypeName)
	assert.Equal(t, "varchar", resp.ColumnMetadata[1].TypeName)
	assert.Equal(t, "", resp.ColumnMetadata[2].TypeName)
	assert.Equal(t, []types.Field{types.LongField(2), types.StringField("x"), types.NullField()}, resp.Records[0])
}

func TestHost_StatementErrors(t *testing.T) {
	h, _ := newTestHost(t)

	_, err := h.ExecuteStatement(context.Background(), &types.ExecuteStatementRequest{Sql: "SELEC 1"})
	require.Error(t, err)
	assert.True(t, service.IsBadRequestError(err))

	_, err = h.ExecuteStatement(context.Background(), &types.ExecuteStatementRequest{
		Sql:        "SELECT :missing",
		Parameters: []types.SqlParameter{param("other", types.LongField(1))},
	})
	require.Error(t, err)
	assert.True(t, service.IsBadRequestError(err))
}

func TestHost_TransactionVisibility(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	txID := begin(t, h)
	assert.Equal(t, 1, h.OpenTransactions())
	execute(t, h, txID, "INSERT INTO items (name) VALUES (:name)", param("name", types.StringField("a")))

	assert.Equal(t, int64(1), countItems(t, h, txID))
	assert.Equal(t, int64(0), countItems(t, h, ""))

	resp, err := commit(h, txID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCommitted, resp.TransactionStatus)
	assert.Equal(t, 0, h.OpenTransactions())
	assert.Equal(t, int64(1), countItems(t, h, ""))

	_, err = commit(h, txID)
	assert.True(t, service.IsNotFoundError(err))
}

func TestHost_Rollback(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	txID := begin(t, h)
	execute(t, h, txID, "INSERT INTO items (name) VALUES (:name)", param("name", types.StringField("a")))

	resp, err := rollback(h, txID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRollbackComplete, resp.TransactionStatus)
	assert.Equal(t, int64(0), countItems(t, h, ""))

	_, err = rollback(h, txID)
	assert.True(t, service.IsNotFoundError(err))
}

func TestHost_UnknownTransaction(t *testing.T) {
	h, _ := newTestHost(t)

	_, err := h.ExecuteStatement(context.Background(), &types.ExecuteStatementRequest{
		Sql:           "SELECT 1",
		TransactionID: "no-such-tx",
	})
	assert.True(t, service.IsNotFoundError(err))

	_, err = commit(h, "no-such-tx")
	assert.True(t, service.IsNotFoundError(err))
}

func TestHost_TransactionOutlivesRequestContext(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := h.BeginTransaction(ctx, &types.BeginTransactionRequest{})
	require.NoError(t, err)
	cancel()

	execute(t, h, resp.TransactionID, "INSERT INTO items (name) VALUES ('a')")
	_, err = commit(h, resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countItems(t, h, ""))
}

func TestHost_CloseRollsBackOpenTransactions(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	txID := begin(t, h)
	execute(t, h, txID, "INSERT INTO items (name) VALUES ('a')")

	require.NoError(t, h.Close())
	assert.Equal(t, 0, h.OpenTransactions())
	assert.Equal(t, int64(0), countItems(t, h, ""))
}

func TestHost_Batch(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	resp, err := h.BatchExecuteStatement(context.Background(), &types.BatchExecuteStatementRequest{
		Sql: "INSERT INTO items (name) VALUES (:name)",
		ParameterSets: [][]types.SqlParameter{
			{param("name", types.StringField("a"))},
			{param("name", types.StringField("b"))},
			{param("name", types.StringField("c"))},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.UpdateResult{
		{GeneratedFields: []types.Field{types.LongField(1)}},
		{GeneratedFields: []types.Field{types.LongField(2)}},
		{GeneratedFields: []types.Field{types.LongField(3)}},
	}, resp.UpdateResults)
	assert.Equal(t, int64(3), countItems(t, h, ""))
}

func TestHost_BatchFailureIsAtomic(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	_, err := h.BatchExecuteStatement(context.Background(), &types.BatchExecuteStatementRequest{
		Sql: "INSERT INTO items (id, name) VALUES (:id, 'x')",
		ParameterSets: [][]types.SqlParameter{
			{param("id", types.LongField(1))},
			{param("id", types.LongField(1))},
		},
	})
	require.Error(t, err)
	assert.True(t, service.IsBadRequestError(err))
	assert.Contains(t, err.Error(), "parameter set 1")
	assert.Equal(t, int64(0), countItems(t, h, ""))
}

func TestHost_BatchInTransaction(t *testing.T) {
	h, _ := newTestHost(t)
	createItems(t, h)

	txID := begin(t, h)
	_, err := h.BatchExecuteStatement(context.Background(), &types.BatchExecuteStatementRequest{
		Sql:           "INSERT INTO items (name) VALUES (:name)",
		ParameterSets: [][]types.SqlParameter{{param("name", types.StringField("a"))}, {param("name", types.StringField("b"))}},
		TransactionID: txID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), countItems(t, h, ""))

	_, err = commit(h, txID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), countItems(t, h, ""))
}

func TestHost_Identity(t *testing.T) {
	h, _ := newTestHost(t, WithIdentity(testResource, testSecret, "app"))
	ctx := context.Background()

	_, err := h.ExecuteStatement(ctx, &types.ExecuteStatementRequest{ResourceArn: "other", SecretArn: testSecret, Sql: "SELECT 1"})
	assert.True(t, service.IsForbiddenError(err))

	_, err = h.ExecuteStatement(ctx, &types.ExecuteStatementRequest{ResourceArn: testResource, SecretArn: "other", Sql: "SELECT 1"})
	assert.True(t, service.IsForbiddenError(err))

	_, err = h.ExecuteStatement(ctx, &types.ExecuteStatementRequest{ResourceArn: testResource, SecretArn: testSecret, Database: "other", Sql: "SELECT 1"})
	assert.True(t, service.IsForbiddenError(err))

	_, err = h.BeginTransaction(ctx, &types.BeginTransactionRequest{ResourceArn: "other", SecretArn: testSecret})
	assert.True(t, service.IsForbiddenError(err))
	assert.Equal(t, 0, h.OpenTransactions())

	execute(t, h, "", "SELECT 1")
	_, err = h.ExecuteStatement(ctx, &types.ExecuteStatementRequest{ResourceArn: testResource, SecretArn: testSecret, Database: "app", Sql: "SELECT 1"})
	assert.NoError(t, err)
}

func TestHost_PureGoSQLiteBackend(t *testing.T) {
	db, err := Open(BackendSQLite, filepath.Join(t.TempDir(), "modernc.db"))
	require.NoError(t, err)
	defer db.Close()

	h, err := New(db)
	require.NoError(t, err)
	defer h.Close()

	createItems(t, h)
	resp := execute(t, h, "", "INSERT INTO items (name, price) VALUES (:name, :price)",
		param("name", types.StringField("gadget")), param("price", types.DoubleField(4)))
	assert.Equal(t, int64(1), resp.NumberOfRecordsUpdated)

	resp = execute(t, h, "", "SELECT name, price FROM items WHERE name = :name", param("name", types.StringField("gadget")))
	assert.Equal(t, [][]types.Field{{types.StringField("gadget"), types.DoubleField(4)}}, resp.Records)
}

func TestOpen_RejectsUnknownBackend(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.ErrorContains(t, err, "unsupported backend")
}
