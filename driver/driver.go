package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tomyedwab/rdsdataapi/codec"
	"github.com/tomyedwab/rdsdataapi/dbapi"
)

// DriverName is the name registered with database/sql.
const DriverName = "rdsdataapi"

func init() {
	sql.Register(DriverName, &Driver{})
}

// --- Driver implementation ---

var (
	_ driver.Driver        = (*Driver)(nil)
	_ driver.DriverContext = (*Driver)(nil)
)

// Driver is the database/sql driver for the Data API.
type Driver struct{}

// Open returns a new connection for the data source name.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	connector, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector parses the data source name once for a connection pool.
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewConnector(cfg)
}

// --- Connection implementation ---

var (
	_ driver.Conn               = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
	_ driver.SessionResetter    = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
)

// Conn implements the driver.Conn interface on top of a dbapi.Connection.
// It is reachable through sql.Conn.Raw for ExecBatch.
type Conn struct {
	conn *dbapi.Connection
}

// Connection returns the underlying client connection.
func (c *Conn) Connection() *dbapi.Connection {
	return c.conn
}

// Prepare returns a client-side statement; nothing is sent to the service.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if c.conn.Closed() {
		return nil, driver.ErrBadConn
	}
	return &Stmt{conn: c, query: query}, nil
}

// Close rolls back a transaction left open on the connection.
func (c *Conn) Close() error {
	var err error
	if c.conn.InTransaction() {
		err = c.conn.Rollback(context.Background())
	}
	return errors.Join(err, c.conn.Close())
}

// Begin starts and returns a new transaction.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx starts a transaction. Only the default isolation level and
// read-write transactions are supported.
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if sql.IsolationLevel(opts.Isolation) != sql.LevelDefault {
		return nil, &dbapi.Error{
			Kind:    dbapi.KindNotSupportedError,
			Message: fmt.Sprintf("isolation level %s is not supported", sql.IsolationLevel(opts.Isolation)),
		}
	}
	if opts.ReadOnly {
		return nil, &dbapi.Error{Kind: dbapi.KindNotSupportedError, Message: "read-only transactions are not supported"}
	}

	if err := c.conn.Begin(ctx); err != nil {
		return nil, err
	}
	return &Tx{conn: c}, nil
}

func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	params, err := namedParams(args)
	if err != nil {
		return nil, err
	}

	cur := c.conn.Cursor()
	defer cur.Close()
	if err := cur.Execute(ctx, query, params); err != nil {
		return nil, err
	}
	return &Result{rowsAffected: cur.RowCount(), generated: cur.GeneratedFields()}, nil
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	params, err := namedParams(args)
	if err != nil {
		return nil, err
	}

	cur := c.conn.Cursor()
	defer cur.Close()
	if err := cur.Execute(ctx, query, params); err != nil {
		return nil, err
	}

	columns := cur.Description()
	if columns == nil {
		return &Rows{}, nil
	}
	rows, err := cur.FetchAll()
	if err != nil {
		return nil, err
	}
	return &Rows{columns: columns, data: rows}, nil
}

// ExecBatch runs query once per parameter set in a single batch request.
// Reach it through sql.Conn.Raw:
//
//	err := sqlConn.Raw(func(dc any) error {
//		return dc.(*driver.Conn).ExecBatch(ctx, query, sets)
//	})
func (c *Conn) ExecBatch(ctx context.Context, query string, paramSets []map[string]any) error {
	cur := c.conn.Cursor()
	defer cur.Close()
	return cur.ExecuteMany(ctx, query, paramSets)
}

// CheckNamedValue accepts named arguments whose values the codec can encode,
// converting driver.Valuer implementations and pointers first.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	if nv.Name == "" {
		return errPositional(nv.Ordinal)
	}
	if _, err := codec.Encode(nv.Value); err == nil {
		return nil
	}

	v, err := driver.DefaultParameterConverter.ConvertValue(nv.Value)
	if err != nil {
		return &dbapi.Error{Kind: dbapi.KindProgrammingError, Message: fmt.Sprintf("parameter %q", nv.Name), Cause: err}
	}
	if _, err := codec.Encode(v); err != nil {
		return &dbapi.Error{Kind: dbapi.KindProgrammingError, Message: fmt.Sprintf("parameter %q", nv.Name), Cause: err}
	}
	nv.Value = v
	return nil
}

// ResetSession reports closed connections as bad so the pool drops them.
func (c *Conn) ResetSession(ctx context.Context) error {
	if c.conn.Closed() {
		return driver.ErrBadConn
	}
	return nil
}

func (c *Conn) IsValid() bool {
	return !c.conn.Closed()
}

func errPositional(ordinal int) error {
	return &dbapi.Error{
		Kind:    dbapi.KindProgrammingError,
		Message: fmt.Sprintf("argument %d is positional; statements take named parameters only, use sql.Named", ordinal),
	}
}

func namedParams(args []driver.NamedValue) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(args))
	for _, arg := range args {
		if arg.Name == "" {
			return nil, errPositional(arg.Ordinal)
		}
		if _, dup := params[arg.Name]; dup {
			return nil, &dbapi.Error{Kind: dbapi.KindProgrammingError, Message: fmt.Sprintf("parameter %q given twice", arg.Name)}
		}
		params[arg.Name] = arg.Value
	}
	return params, nil
}

// --- Statement implementation ---

var (
	_ driver.Stmt             = (*Stmt)(nil)
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)

// Stmt is a statement prepared on the client only.
type Stmt struct {
	conn  *Conn
	query string
}

func (s *Stmt) Close() error {
	return nil
}

// NumInput returns -1; placeholders are not parsed on the client.
func (s *Stmt) NumInput() int {
	return -1
}

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), ordinalValues(args))
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), ordinalValues(args))
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

func ordinalValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

// --- Transaction implementation ---

// Tx implements the driver.Tx interface.
type Tx struct {
	conn *Conn
}

func (t *Tx) Commit() error {
	return t.conn.conn.Commit(context.Background())
}

func (t *Tx) Rollback() error {
	return t.conn.conn.Rollback(context.Background())
}

// --- Result implementation ---

// Result implements the driver.Result interface.
type Result struct {
	rowsAffected int64
	generated    []any
}

// LastInsertId returns the first generated integer value of the statement.
func (r *Result) LastInsertId() (int64, error) {
	for _, v := range r.generated {
		if id, ok := v.(int64); ok {
			return id, nil
		}
	}
	return 0, errors.New("rdsdataapi: statement returned no generated key")
}

func (r *Result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// --- Rows implementation ---

var (
	_ driver.Rows                           = (*Rows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*Rows)(nil)
)

// Rows holds a fully buffered result.
type Rows struct {
	columns []dbapi.Column
	data    []dbapi.Row
	pos     int
}

func (r *Rows) Columns() []string {
	names := make([]string, len(r.columns))
	for i, col := range r.columns {
		names[i] = col.Name
	}
	return names
}

// ColumnTypeDatabaseTypeName returns the declared type name, upper-cased.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return strings.ToUpper(r.columns[index].TypeCode)
}

func (r *Rows) Close() error {
	r.data = nil
	r.pos = 0
	return nil
}

// Next returns io.EOF when there are no more rows.
func (r *Rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}

	row := r.data[r.pos]
	if len(row) != len(dest) {
		return fmt.Errorf("rdsdataapi: column count mismatch. Expected %d, got %d", len(dest), len(row))
	}
	for i, v := range row {
		dest[i] = v
	}

	r.pos++
	return nil
}
