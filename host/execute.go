package host

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/rdsdataapi/codec"
	"github.com/tomyedwab/rdsdataapi/dbapi"
	"github.com/tomyedwab/rdsdataapi/service"
	"github.com/tomyedwab/rdsdataapi/types"
)

// timeLayout is the textual form the Data API uses for date and time values.
const timeLayout = "2006-01-02 15:04:05.999999"

var execKeywords = []string{"insert", "update", "delete", "create", "drop", "alter", "truncate", "replace"}

// isExec reports whether query should run without reading a result set.
// Statements with a RETURNING clause produce rows and are run as queries.
func isExec(query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return true
	}
	if !slices.Contains(execKeywords, words[0]) {
		return false
	}
	return !slices.Contains(words, "returning")
}

// compile binds named parameters into the backend's placeholder syntax.
func compile(ext sqlx.ExtContext, query string, params []types.SqlParameter) (string, []any, error) {
	if len(params) == 0 {
		return query, nil, nil
	}

	arg := make(map[string]any, len(params))
	for _, p := range params {
		arg[p.Name] = codec.Decode(p.Value)
	}

	// sqlx reads "::" as an escaped colon; keep casts such as "::int" intact.
	query = strings.ReplaceAll(query, "::", "::::")
	bound, args, err := sqlx.Named(query, arg)
	if err != nil {
		return "", nil, err
	}
	return ext.Rebind(bound), args, nil
}

// executor returns the handle statements run on: the open transaction when
// txID is set, the pool otherwise.
func (h *Host) executor(txID string) (sqlx.ExtContext, error) {
	if txID == "" {
		return h.db, nil
	}
	htx, err := h.lookupTx(txID)
	if err != nil {
		return nil, err
	}
	return htx.tx, nil
}

func (h *Host) ExecuteStatement(ctx context.Context, req *types.ExecuteStatementRequest) (*types.ExecuteStatementResponse, error) {
	if err := h.authorize(req.ResourceArn, req.SecretArn, req.Database); err != nil {
		return nil, err
	}

	ext, err := h.executor(req.TransactionID)
	if err != nil {
		return nil, err
	}

	query, args, err := compile(ext, req.Sql, req.Parameters)
	if err != nil {
		return nil, service.NewErrorWithCause(service.ErrorTypeBadRequest, "invalid parameters", err)
	}

	if isExec(req.Sql) {
		return h.exec(ctx, ext, req.Sql, query, args)
	}
	return h.query(ctx, ext, query, args)
}

func (h *Host) exec(ctx context.Context, ext sqlx.ExtContext, original, query string, args []any) (*types.ExecuteStatementResponse, error) {
	result, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, statementError(err)
	}
	return &types.ExecuteStatementResponse{
		NumberOfRecordsUpdated: rowsAffected(result),
		GeneratedFields:        generatedFields(original, result),
	}, nil
}

func rowsAffected(result sql.Result) int64 {
	n, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// generatedFields reports the generated key of an INSERT where the backend
// exposes one.
func generatedFields(query string, result sql.Result) []types.Field {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 || words[0] != "insert" {
		return nil
	}
	id, err := result.LastInsertId()
	if err != nil || id <= 0 {
		return nil
	}
	return []types.Field{types.LongField(id)}
}

func (h *Host) query(ctx context.Context, ext sqlx.ExtContext, query string, args []any) (*types.ExecuteStatementResponse, error) {
	rows, err := ext.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, statementError(err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, service.NewErrorWithCause(service.ErrorTypeInternal, "reading column types failed", err)
	}
	if len(colTypes) == 0 {
		for rows.Next() {
		}
		if err := rows.Err(); err != nil {
			return nil, statementError(err)
		}
		return &types.ExecuteStatementResponse{}, nil
	}
	columns := columnMetadata(colTypes)

	records := [][]types.Field{}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, statementError(err)
		}
		record := make([]types.Field, len(values))
		for i, v := range values {
			record[i] = toField(v, columns[i].TypeName)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, statementError(err)
	}

	inferTypeNames(columns, records)
	return &types.ExecuteStatementResponse{
		Records:        records,
		ColumnMetadata: columns,
	}, nil
}

func columnMetadata(colTypes []*sql.ColumnType) []types.ColumnMetadata {
	columns := make([]types.ColumnMetadata, len(colTypes))
	for i, ct := range colTypes {
		col := types.ColumnMetadata{
			Name:     ct.Name(),
			Label:    ct.Name(),
			TypeName: strings.ToLower(ct.DatabaseTypeName()),
			Nullable: 2,
		}
		if nullable, ok := ct.Nullable(); ok {
			if nullable {
				col.Nullable = 1
			} else {
				col.Nullable = 0
			}
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			col.Precision = precision
			col.Scale = scale
		}
		columns[i] = col
	}
	return columns
}

// toField encodes a scanned backend value. Drivers that return text as
// []byte get it decoded according to the declared column type.
func toField(v any, typeName string) types.Field {
	switch val := v.(type) {
	case nil:
		return types.NullField()
	case []byte:
		if dbapi.TypeBinary.Matches(typeName) || (typeName == "" && !isText(val)) {
			return types.BlobField(append([]byte(nil), val...))
		}
		return textField(string(val), typeName)
	case string:
		return textField(val, typeName)
	case time.Time:
		if strings.EqualFold(typeName, "date") {
			return types.StringField(val.Format(time.DateOnly))
		}
		return types.StringField(val.Format(timeLayout))
	}

	field, err := codec.Encode(v)
	if err != nil {
		return types.StringField(fmt.Sprint(v))
	}
	return field
}

// textField converts text returned for integer and floating point columns.
// Decimal columns stay strings to keep their precision.
func textField(s, typeName string) types.Field {
	switch strings.ToLower(baseTypeName(typeName)) {
	case "int", "integer", "int2", "int4", "int8", "tinyint", "smallint", "mediumint", "bigint", "year":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return types.LongField(n)
		}
	case "float", "float4", "float8", "real", "double", "double precision":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return types.DoubleField(f)
		}
	}
	return types.StringField(s)
}

func baseTypeName(typeName string) string {
	typeName = strings.TrimSpace(typeName)
	if i := strings.IndexByte(typeName, '('); i >= 0 {
		typeName = typeName[:i]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.ToLower(typeName), "unsigned"))
}

func isText(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}

// inferTypeNames fills in type names the backend left empty, as SQLite does
// for expressions, from the first non-null value of each column.
func inferTypeNames(columns []types.ColumnMetadata, records [][]types.Field) {
	for i := range columns {
		if columns[i].TypeName != "" {
			continue
		}
		for _, record := range records {
			if name := typeNameOf(record[i]); name != "" {
				columns[i].TypeName = name
				break
			}
		}
	}
}

func typeNameOf(f types.Field) string {
	switch f.Kind() {
	case types.FieldLong:
		return "bigint"
	case types.FieldDouble:
		return "double"
	case types.FieldString:
		return "varchar"
	case types.FieldBlob:
		return "blob"
	case types.FieldBoolean:
		return "boolean"
	default:
		return ""
	}
}

func (h *Host) BatchExecuteStatement(ctx context.Context, req *types.BatchExecuteStatementRequest) (*types.BatchExecuteStatementResponse, error) {
	if err := h.authorize(req.ResourceArn, req.SecretArn, req.Database); err != nil {
		return nil, err
	}

	sets := req.ParameterSets
	if len(sets) == 0 {
		sets = [][]types.SqlParameter{nil}
	}

	var (
		ext sqlx.ExtContext
		tx  *sqlx.Tx
	)
	if req.TransactionID != "" {
		var err error
		if ext, err = h.executor(req.TransactionID); err != nil {
			return nil, err
		}
	} else {
		// Without a caller transaction the batch is applied atomically.
		var err error
		if tx, err = h.db.BeginTxx(ctx, nil); err != nil {
			return nil, service.NewErrorWithCause(service.ErrorTypeInternal, "begin transaction failed", err)
		}
		ext = tx
	}

	resp := &types.BatchExecuteStatementResponse{UpdateResults: make([]types.UpdateResult, 0, len(sets))}
	for i, params := range sets {
		result, err := h.execSet(ctx, ext, req.Sql, params)
		if err != nil {
			if tx != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					h.logger.Error("Error rolling back batch", "error", rbErr)
				}
			}
			return nil, service.NewErrorWithCause(service.ErrorTypeBadRequest, fmt.Sprintf("parameter set %d", i), err)
		}
		resp.UpdateResults = append(resp.UpdateResults, result)
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, service.NewErrorWithCause(service.ErrorTypeBadRequest, "commit failed", err)
		}
	}
	return resp, nil
}

func (h *Host) execSet(ctx context.Context, ext sqlx.ExtContext, sqlText string, params []types.SqlParameter) (types.UpdateResult, error) {
	query, args, err := compile(ext, sqlText, params)
	if err != nil {
		return types.UpdateResult{}, err
	}
	result, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return types.UpdateResult{}, err
	}
	return types.UpdateResult{GeneratedFields: generatedFields(sqlText, result)}, nil
}

func statementError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return service.NewErrorWithCause(service.ErrorTypeBadRequest, "statement cancelled", err)
	}
	return service.NewErrorWithCause(service.ErrorTypeBadRequest, "statement failed", err)
}
