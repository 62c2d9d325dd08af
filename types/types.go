package types

// --- JSON structures exchanged with the Data API ---

// SqlParameter is a named, encoded statement parameter.
type SqlParameter struct {
	Name     string `json:"name"`
	Value    Field  `json:"value"`
	TypeHint string `json:"typeHint,omitempty"`
}

// ColumnMetadata describes one column of a result set.
type ColumnMetadata struct {
	Name            string `json:"name"`
	Label           string `json:"label,omitempty"`
	TypeName        string `json:"typeName"`
	Type            int64  `json:"type,omitempty"`
	Nullable        int64  `json:"nullable,omitempty"`
	Precision       int64  `json:"precision,omitempty"`
	Scale           int64  `json:"scale,omitempty"`
	IsAutoIncrement bool   `json:"isAutoIncrement,omitempty"`
	IsCaseSensitive bool   `json:"isCaseSensitive,omitempty"`
	IsSigned        bool   `json:"isSigned,omitempty"`
	SchemaName      string `json:"schemaName,omitempty"`
	TableName       string `json:"tableName,omitempty"`
}

// ExecuteStatementRequest runs a single statement. TransactionID is empty in
// autocommit mode.
type ExecuteStatementRequest struct {
	ResourceArn           string         `json:"resourceArn"`
	SecretArn             string         `json:"secretArn"`
	Database              string         `json:"database,omitempty"`
	Sql                   string         `json:"sql"`
	Parameters            []SqlParameter `json:"parameters,omitempty"`
	TransactionID         string         `json:"transactionId,omitempty"`
	IncludeResultMetadata bool           `json:"includeResultMetadata,omitempty"`
}

// ExecuteStatementResponse carries the records of a row-returning statement
// and/or the update count. Records and ColumnMetadata are both absent for
// statements that produce no result set.
type ExecuteStatementResponse struct {
	Records                [][]Field        `json:"records"`
	ColumnMetadata         []ColumnMetadata `json:"columnMetadata"`
	NumberOfRecordsUpdated int64            `json:"numberOfRecordsUpdated"`
	GeneratedFields        []Field          `json:"generatedFields,omitempty"`
}

// HasResult reports whether the response describes a row-returning result.
func (r *ExecuteStatementResponse) HasResult() bool {
	return len(r.Records) > 0 || len(r.ColumnMetadata) > 0
}

// BatchExecuteStatementRequest runs one statement once per parameter set.
type BatchExecuteStatementRequest struct {
	ResourceArn   string           `json:"resourceArn"`
	SecretArn     string           `json:"secretArn"`
	Database      string           `json:"database,omitempty"`
	Sql           string           `json:"sql"`
	ParameterSets [][]SqlParameter `json:"parameterSets,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
}

// UpdateResult is the outcome of one parameter set in a batch.
type UpdateResult struct {
	GeneratedFields []Field `json:"generatedFields,omitempty"`
}

type BatchExecuteStatementResponse struct {
	UpdateResults []UpdateResult `json:"updateResults"`
}

type BeginTransactionRequest struct {
	ResourceArn string `json:"resourceArn"`
	SecretArn   string `json:"secretArn"`
	Database    string `json:"database,omitempty"`
}

type BeginTransactionResponse struct {
	TransactionID string `json:"transactionId"`
}

type CommitTransactionRequest struct {
	ResourceArn   string `json:"resourceArn"`
	SecretArn     string `json:"secretArn"`
	TransactionID string `json:"transactionId"`
}

type CommitTransactionResponse struct {
	TransactionStatus string `json:"transactionStatus"`
}

type RollbackTransactionRequest struct {
	ResourceArn   string `json:"resourceArn"`
	SecretArn     string `json:"secretArn"`
	TransactionID string `json:"transactionId"`
}

type RollbackTransactionResponse struct {
	TransactionStatus string `json:"transactionStatus"`
}

// ErrorResponse is the body returned with non-2xx statuses.
type ErrorResponse struct {
	Message string `json:"message"`
}

const (
	StatusCommitted        = "Transaction Committed"
	StatusRollbackComplete = "Rollback Complete"
)
