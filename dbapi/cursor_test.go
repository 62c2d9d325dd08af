package dbapi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/rdsdataapi/codec"
	"github.com/tomyedwab/rdsdataapi/service"
	"github.com/tomyedwab/rdsdataapi/types"
)

func rowsResponse(columns []string, records ...[]types.Field) *types.ExecuteStatementResponse {
	resp := &types.ExecuteStatementResponse{Records: [][]types.Field{}}
	for _, name := range columns {
		resp.ColumnMetadata = append(resp.ColumnMetadata, types.ColumnMetadata{Name: name, TypeName: "int4"})
	}
	resp.Records = append(resp.Records, records...)
	return resp
}

func longRow(values ...int64) []types.Field {
	row := make([]types.Field, 0, len(values))
	for _, v := range values {
		row = append(row, types.LongField(v))
	}
	return row
}

func TestCursor_SelectScenario(t *testing.T) {
	conn, svc := newTestConnection(t)
	svc.QueueExecuteResponses(rowsResponse([]string{"x"}, longRow(1)))
	cur := conn.Cursor()

	require.NoError(t, cur.Execute(context.Background(), "SELECT 1 AS x", nil))
	assert.Equal(t, []Column{{Name: "x", TypeCode: "int4"}}, cur.Description())
	assert.Equal(t, int64(1), cur.RowCount())

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(1)}}, rows)

	rows, err = cur.FetchAll()
	require.NoError(t, err)
	assert.Empty(t, rows)

	reqs := executeRequests(svc)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].IncludeResultMetadata)
	assert.Equal(t, "arn:cluster", reqs[0].ResourceArn)
	assert.Equal(t, "arn:secret", reqs[0].SecretArn)
	assert.Equal(t, "app", reqs[0].Database)
}

func TestCursor_FetchSemantics(t *testing.T) {
	conn, svc := newTestConnection(t)
	ctx := context.Background()
	cur := conn.Cursor()

	svc.QueueExecuteResponses(rowsResponse([]string{"n"}))
	require.NoError(t, cur.Execute(ctx, "SELECT n FROM empty", nil))
	row, err := cur.FetchOne()
	require.NoError(t, err)
	assert.Nil(t, row)

	svc.QueueExecuteResponses(rowsResponse([]string{"n"}, longRow(1), longRow(2)))
	require.NoError(t, cur.Execute(ctx, "SELECT n FROM two", nil))
	rows, err := cur.FetchMany(3)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(1)}, {int64(2)}}, rows)
	rows, err = cur.FetchMany(3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	svc.QueueExecuteResponses(rowsResponse([]string{"n"}, longRow(1), longRow(2), longRow(3)))
	require.NoError(t, cur.Execute(ctx, "SELECT n FROM three", nil))
	row, err = cur.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, Row{int64(1)}, row)

	rows, err = cur.FetchMany(0)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(2)}}, rows)

	cur.SetArraySize(5)
	rows, err = cur.FetchMany(-1)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(3)}}, rows)
	assert.Equal(t, int64(3), cur.RowCount())
}

func TestCursor_DecodesEveryColumn(t *testing.T) {
	conn, svc := newTestConnection(t)
	svc.QueueExecuteResponses(&types.ExecuteStatementResponse{
		ColumnMetadata: []types.ColumnMetadata{
			{Name: "s", TypeName: "text"},
			{Name: "b", TypeName: "bytea"},
			{Name: "t", TypeName: "bool"},
			{Name: "d", TypeName: "float8"},
			{Name: "n", TypeName: "int8"},
			{Name: "z", TypeName: "text"},
		},
		Records: [][]types.Field{{
			types.StringField("a"),
			types.BlobField([]byte{0xff}),
			types.BooleanField(true),
			types.DoubleField(1),
			types.LongField(1),
			types.NullField(),
		}},
	})
	cur := conn.Cursor()

	require.NoError(t, cur.Execute(context.Background(), "SELECT s, b, t, d, n, z FROM t", nil))
	row, err := cur.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, Row{"a", []byte{0xff}, true, float64(1), int64(1), nil}, row)
}

func TestCursor_NoResultToFetch(t *testing.T) {
	conn, svc := newTestConnection(t)
	ctx := context.Background()
	cur := conn.Cursor()

	_, err := cur.FetchOne()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrError)
	assert.NotErrorIs(t, err, ErrDatabaseError)
	assert.Nil(t, cur.Description())
	assert.Equal(t, int64(-1), cur.RowCount())

	svc.QueueExecuteResponses(&types.ExecuteStatementResponse{})
	require.NoError(t, cur.Execute(ctx, "CREATE TABLE t (id int)", nil))
	assert.Nil(t, cur.Description())
	assert.Equal(t, int64(0), cur.RowCount())

	_, err = cur.FetchAll()
	assert.ErrorIs(t, err, ErrError)
	_, err = cur.FetchMany(1)
	assert.ErrorIs(t, err, ErrError)
}

func TestCursor_UpdateRowCountAndGeneratedFields(t *testing.T) {
	conn, svc := newTestConnection(t)
	svc.QueueExecuteResponses(&types.ExecuteStatementResponse{
		NumberOfRecordsUpdated: 1,
		GeneratedFields:        []types.Field{types.LongField(42)},
	})
	cur := conn.Cursor()

	require.NoError(t, cur.Execute(context.Background(), "INSERT INTO t (v) VALUES (:v)", map[string]any{"v": "x"}))
	assert.Equal(t, int64(1), cur.RowCount())
	assert.Equal(t, []any{int64(42)}, cur.GeneratedFields())
	assert.Nil(t, cur.Description())
}

func TestCursor_EncodesParameters(t *testing.T) {
	conn, svc := newTestConnection(t)
	cur := conn.Cursor()

	require.NoError(t, cur.Execute(context.Background(), "SELECT :b, :a", map[string]any{"b": 2, "a": nil}))

	reqs := executeRequests(svc)
	require.Len(t, reqs, 1)
	assert.Equal(t, []types.SqlParameter{
		{Name: "a", Value: types.NullField()},
		{Name: "b", Value: types.LongField(2)},
	}, reqs[0].Parameters)
}

func TestCursor_UnsupportedParameter(t *testing.T) {
	conn, svc := newTestConnection(t)
	cur := conn.Cursor()

	err := cur.Execute(context.Background(), "SELECT :v", map[string]any{"v": struct{}{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProgrammingError)
	assert.ErrorIs(t, err, codec.ErrUnsupportedType)
	assert.Empty(t, svc.Calls())

	err = cur.ExecuteMany(context.Background(), "INSERT INTO t VALUES (:v)", []map[string]any{{"v": 1}, {"v": []int{1}}})
	assert.ErrorIs(t, err, ErrProgrammingError)
	assert.Empty(t, svc.Calls())
}

func TestCursor_EncodeFailureDropsPreviousResult(t *testing.T) {
	conn, svc := newTestConnection(t)
	ctx := context.Background()
	svc.QueueExecuteResponses(rowsResponse([]string{"n"}, longRow(1), longRow(2)))
	cur := conn.Cursor()
	require.NoError(t, cur.Execute(ctx, "SELECT n FROM t", nil))

	err := cur.Execute(ctx, "SELECT :v", map[string]any{"v": struct{}{}})
	assert.ErrorIs(t, err, ErrProgrammingError)
	_, err = cur.FetchAll()
	assert.ErrorIs(t, err, ErrError)
	assert.Nil(t, cur.Description())
	assert.Equal(t, int64(-1), cur.RowCount())

	svc.QueueExecuteResponses(rowsResponse([]string{"n"}, longRow(1)))
	require.NoError(t, cur.Execute(ctx, "SELECT n FROM t", nil))
	err = cur.ExecuteMany(ctx, "INSERT INTO t VALUES (:v)", []map[string]any{{"v": []int{1}}})
	assert.ErrorIs(t, err, ErrProgrammingError)
	_, err = cur.FetchOne()
	assert.ErrorIs(t, err, ErrError)
	assert.Nil(t, cur.Description())
}

func TestCursor_EmptyMetadataIsNoResult(t *testing.T) {
	conn, svc := newTestConnection(t)
	svc.QueueExecuteResponses(&types.ExecuteStatementResponse{
		Records:        [][]types.Field{},
		ColumnMetadata: []types.ColumnMetadata{},
	})
	cur := conn.Cursor()

	require.NoError(t, cur.Execute(context.Background(), "SET search_path TO app", nil))
	assert.Nil(t, cur.Description())
	_, err := cur.FetchAll()
	assert.ErrorIs(t, err, ErrError)
}

func TestCursor_ServiceFailureIsWrapped(t *testing.T) {
	conn, svc := newTestConnection(t)
	cause := service.NewBadRequestError("relation \"missing\" does not exist")
	svc.SetError(service.PathExecute, cause)
	cur := conn.Cursor()

	err := cur.Execute(context.Background(), "SELECT * FROM missing", nil)
	require.Error(t, err)

	var dbErr *Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, KindError, dbErr.Kind)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, service.IsBadRequestError(err))

	_, err = cur.FetchOne()
	assert.ErrorIs(t, err, ErrError)
}

func TestCursor_ExecuteMany(t *testing.T) {
	conn, svc := newTestConnection(t)
	ctx := context.Background()
	cur := conn.Cursor()

	svc.QueueExecuteResponses(rowsResponse([]string{"n"}, longRow(1)))
	require.NoError(t, cur.Execute(ctx, "SELECT 1", nil))
	require.NoError(t, conn.Begin(ctx))

	err := cur.ExecuteMany(ctx, "INSERT INTO t (v) VALUES (:v)", []map[string]any{{"v": 1}, {"v": 2}, {"v": 3}})
	require.NoError(t, err)

	batches := svc.Requests(service.PathBatchExecute)
	require.Len(t, batches, 1)
	batch := batches[0].(*types.BatchExecuteStatementRequest)
	assert.Equal(t, "INSERT INTO t (v) VALUES (:v)", batch.Sql)
	assert.Equal(t, "tx-1", batch.TransactionID)
	require.Len(t, batch.ParameterSets, 3)
	assert.Equal(t, []types.SqlParameter{{Name: "v", Value: types.LongField(3)}}, batch.ParameterSets[2])

	assert.Nil(t, cur.Description())
	assert.Equal(t, int64(-1), cur.RowCount())
	_, err = cur.FetchAll()
	assert.ErrorIs(t, err, ErrError)
}

func TestCursor_ExecuteManyFailure(t *testing.T) {
	conn, svc := newTestConnection(t)
	svc.SetError(service.PathBatchExecute, service.NewError(service.ErrorTypeInternal, "boom"))

	err := conn.Cursor().ExecuteMany(context.Background(), "DELETE FROM t WHERE id = :id", []map[string]any{{"id": 1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrError)
}

func TestCursor_UnsupportedOperations(t *testing.T) {
	conn, _ := newTestConnection(t)
	cur := conn.Cursor()

	more, err := cur.NextSet()
	assert.False(t, more)
	assert.ErrorIs(t, err, ErrNotSupportedError)
	assert.ErrorIs(t, err, ErrDatabaseError)

	cur.SetInputSizes(10, 20)
	cur.SetOutputSize(100)
	cur.SetArraySize(0)
	assert.Equal(t, 1, cur.ArraySize())
}

func TestCursor_Close(t *testing.T) {
	conn, svc := newTestConnection(t)
	svc.QueueExecuteResponses(rowsResponse([]string{"n"}, longRow(1)))
	cur := conn.Cursor()
	require.NoError(t, cur.Execute(context.Background(), "SELECT 1", nil))

	require.NoError(t, cur.Close())
	assert.Nil(t, cur.Description())
	_, err := cur.FetchOne()
	assert.ErrorIs(t, err, ErrInterfaceError)
	assert.ErrorIs(t, cur.Execute(context.Background(), "SELECT 1", nil), ErrInterfaceError)
}

func TestCursor_WithTransactionCommits(t *testing.T) {
	conn, svc := newTestConnection(t)
	ctx := context.Background()

	err := conn.Cursor().WithTransaction(ctx, func(cur *Cursor) error {
		assert.True(t, cur.Connection().InTransaction())
		return cur.Execute(ctx, "UPDATE t SET v = 1", nil)
	})
	require.NoError(t, err)

	assert.Len(t, svc.Requests(service.PathCommitTransaction), 1)
	assert.Empty(t, svc.Requests(service.PathRollbackTransaction))
	assert.Equal(t, "tx-1", executeRequests(svc)[0].TransactionID)
	assert.False(t, conn.InTransaction())
}

func TestCursor_WithTransactionRollsBackOnError(t *testing.T) {
	conn, svc := newTestConnection(t)
	failure := errors.New("validation failed")

	err := conn.WithTransaction(context.Background(), func(cur *Cursor) error {
		return failure
	})
	require.ErrorIs(t, err, failure)

	assert.Empty(t, svc.Requests(service.PathCommitTransaction))
	assert.Len(t, svc.Requests(service.PathRollbackTransaction), 1)
	assert.False(t, conn.InTransaction())
}

func TestCursor_WithTransactionJoinsRollbackFailure(t *testing.T) {
	conn, svc := newTestConnection(t)
	svc.SetError(service.PathRollbackTransaction, service.NewNotFoundError("gone"))
	failure := errors.New("validation failed")

	err := conn.WithTransaction(context.Background(), func(cur *Cursor) error {
		return failure
	})
	require.ErrorIs(t, err, failure)
	assert.True(t, service.IsNotFoundError(err))
	assert.True(t, conn.InTransaction())
}

func TestCursor_WithTransactionRollsBackOnPanic(t *testing.T) {
	conn, svc := newTestConnection(t)

	assert.PanicsWithValue(t, "boom", func() {
		_ = conn.WithTransaction(context.Background(), func(cur *Cursor) error {
			panic("boom")
		})
	})

	assert.Empty(t, svc.Requests(service.PathCommitTransaction))
	assert.Len(t, svc.Requests(service.PathRollbackTransaction), 1)
	assert.False(t, conn.InTransaction())
}

func TestCursor_WithTransactionCommitFailure(t *testing.T) {
	conn, svc := newTestConnection(t)
	svc.SetError(service.PathCommitTransaction, service.NewError(service.ErrorTypeInternal, "commit failed remotely"))

	err := conn.WithTransaction(context.Background(), func(cur *Cursor) error {
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrError)
	assert.Len(t, svc.Requests(service.PathRollbackTransaction), 1)
	assert.False(t, conn.InTransaction())
}

func TestCursor_WithTransactionInsideTransaction(t *testing.T) {
	conn, svc := newTestConnection(t)
	require.NoError(t, conn.Begin(context.Background()))

	called := false
	err := conn.WithTransaction(context.Background(), func(cur *Cursor) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrProgrammingError)
	assert.False(t, called)
	assert.Equal(t, "tx-1", conn.TransactionID())
	assert.Empty(t, svc.Requests(service.PathCommitTransaction))
}
