package dbapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomyedwab/rdsdataapi/codec"
	"github.com/tomyedwab/rdsdataapi/types"
)

// Row is one decoded record. Values are string, []byte, bool, float64, int64
// or nil.
type Row []any

// Column describes one result column. Only Name and TypeCode are known; the
// remaining members are always nil.
type Column struct {
	Name         string
	TypeCode     string
	DisplaySize  any
	InternalSize any
	Precision    any
	Scale        any
	NullOK       any
}

// Cursor executes statements and buffers the most recent result.
type Cursor struct {
	conn      *Connection
	records   [][]types.Field
	columns   []types.ColumnMetadata
	hasResult bool
	generated []types.Field
	rowCount  int64
	arraySize int
	closed    bool
}

// Connection returns the connection the cursor was created from.
func (c *Cursor) Connection() *Connection {
	return c.conn
}

// Execute runs one statement, attaching the connection's transaction token
// when one is held, and replaces the buffered result.
func (c *Cursor) Execute(ctx context.Context, sql string, params map[string]any) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	c.reset()
	encoded, err := codec.EncodeParams(params)
	if err != nil {
		return wrapError(KindProgrammingError, "invalid parameters", err)
	}

	conn := c.conn
	conn.logger.Debug("Executing statement", "sql", sql, "params", len(encoded), "transactionID", conn.transactionID)

	resp, err := conn.svc.ExecuteStatement(ctx, &types.ExecuteStatementRequest{
		ResourceArn:           conn.resourceArn,
		SecretArn:             conn.secretArn,
		Database:              conn.database,
		Sql:                   sql,
		Parameters:            encoded,
		TransactionID:         conn.transactionID,
		IncludeResultMetadata: true,
	})
	if err != nil {
		return wrapError(KindError, "execute statement failed", err)
	}

	c.generated = resp.GeneratedFields
	if resp.HasResult() {
		c.hasResult = true
		c.records = resp.Records
		c.columns = resp.ColumnMetadata
		c.rowCount = int64(len(resp.Records))
	} else {
		c.rowCount = resp.NumberOfRecordsUpdated
	}
	return nil
}

// ExecuteMany runs sql once per parameter set in a single batch request. It
// leaves no result to fetch and sets RowCount to -1.
func (c *Cursor) ExecuteMany(ctx context.Context, sql string, paramSets []map[string]any) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	c.reset()
	sets := make([][]types.SqlParameter, 0, len(paramSets))
	for i, params := range paramSets {
		encoded, err := codec.EncodeParams(params)
		if err != nil {
			return wrapError(KindProgrammingError, fmt.Sprintf("invalid parameters in set %d", i), err)
		}
		sets = append(sets, encoded)
	}

	conn := c.conn
	conn.logger.Debug("Executing batch statement", "sql", sql, "sets", len(sets), "transactionID", conn.transactionID)

	_, err := conn.svc.BatchExecuteStatement(ctx, &types.BatchExecuteStatementRequest{
		ResourceArn:   conn.resourceArn,
		SecretArn:     conn.secretArn,
		Database:      conn.database,
		Sql:           sql,
		ParameterSets: sets,
		TransactionID: conn.transactionID,
	})
	if err != nil {
		return wrapError(KindError, "batch execute statement failed", err)
	}
	return nil
}

// FetchOne pops the next row. It returns a nil Row at the end of the result.
func (c *Cursor) FetchOne() (Row, error) {
	if err := c.checkResult(); err != nil {
		return nil, err
	}
	if len(c.records) == 0 {
		return nil, nil
	}
	row := Row(codec.DecodeRow(c.records[0]))
	c.records = c.records[1:]
	return row, nil
}

// FetchMany pops up to n rows, fewer if fewer remain. n <= 0 means
// ArraySize().
func (c *Cursor) FetchMany(n int) ([]Row, error) {
	if err := c.checkResult(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = c.arraySize
	}
	return c.take(min(n, len(c.records))), nil
}

// FetchAll pops every remaining row.
func (c *Cursor) FetchAll() ([]Row, error) {
	if err := c.checkResult(); err != nil {
		return nil, err
	}
	return c.take(len(c.records)), nil
}

func (c *Cursor) take(n int) []Row {
	rows := make([]Row, 0, n)
	for _, record := range c.records[:n] {
		rows = append(rows, Row(codec.DecodeRow(record)))
	}
	c.records = c.records[n:]
	return rows
}

// Description returns one Column per result column, or nil when the last
// statement returned no column metadata.
func (c *Cursor) Description() []Column {
	if c.columns == nil {
		return nil
	}
	cols := make([]Column, 0, len(c.columns))
	for _, col := range c.columns {
		cols = append(cols, Column{Name: col.Name, TypeCode: col.TypeName})
	}
	return cols
}

// RowCount is the number of rows returned by the last row-returning statement
// or the number of records it updated. It is -1 before the first Execute and
// after ExecuteMany.
func (c *Cursor) RowCount() int64 {
	return c.rowCount
}

// GeneratedFields returns the decoded values generated by the last Execute,
// such as auto-increment keys.
func (c *Cursor) GeneratedFields() []any {
	if c.generated == nil {
		return nil
	}
	return codec.DecodeRow(c.generated)
}

// ArraySize is the default batch size of FetchMany.
func (c *Cursor) ArraySize() int {
	return c.arraySize
}

// SetArraySize sets the default batch size of FetchMany. Values below 1 are
// treated as 1.
func (c *Cursor) SetArraySize(n int) {
	c.arraySize = max(n, 1)
}

// NextSet always fails: a statement yields at most one result set.
func (c *Cursor) NextSet() (bool, error) {
	return false, newError(KindNotSupportedError, "multiple result sets are not supported")
}

// SetInputSizes does nothing.
func (c *Cursor) SetInputSizes(sizes ...any) {}

// SetOutputSize does nothing.
func (c *Cursor) SetOutputSize(size int, column ...int) {}

// Close drops the buffered result. The cursor cannot be used afterwards.
func (c *Cursor) Close() error {
	c.reset()
	c.closed = true
	return nil
}

// WithTransaction begins a transaction, runs fn and commits if fn returns
// nil. If fn returns an error or panics the transaction is rolled back; a
// panic is re-raised afterwards. A failed commit is followed by a rollback
// attempt so the connection returns to autocommit.
func (c *Cursor) WithTransaction(ctx context.Context, fn func(*Cursor) error) (err error) {
	if err := c.conn.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := c.conn.Rollback(ctx); rbErr != nil {
				c.conn.logger.Error("Rollback after panic failed", "error", rbErr)
			}
			panic(r)
		}
	}()

	if err := fn(c); err != nil {
		if rbErr := c.conn.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	if err := c.conn.Commit(ctx); err != nil {
		if rbErr := c.conn.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

func (c *Cursor) reset() {
	c.records = nil
	c.columns = nil
	c.hasResult = false
	c.generated = nil
	c.rowCount = -1
}

func (c *Cursor) checkOpen() error {
	if c.closed {
		return newError(KindInterfaceError, "cursor is closed")
	}
	return c.conn.checkOpen()
}

func (c *Cursor) checkResult() error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if !c.hasResult {
		return newError(KindError, "no result to fetch")
	}
	return nil
}
