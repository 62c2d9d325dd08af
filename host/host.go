// Package host emulates the Data API on top of an ordinary SQL database.
//
// A Host implements service.Service in-process and serves the same operations
// over HTTP through Handler, so clients can be pointed at a local SQLite,
// Postgres or MySQL database instead of a managed cluster:
//
//	db, err := host.Open(host.BackendSQLite3, "file:dev.db")
//	if err != nil {
//		return err
//	}
//	h, err := host.New(db, host.WithIdentity(resourceArn, secretArn, ""))
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//	http.ListenAndServe(":8080", h.Handler())
//
// Statements name their parameters as :name and are rebound to the backend's
// placeholder style. A cast written directly after a parameter needs a space
// (":id ::int") or CAST(:id AS int). When a statement has parameters, a colon
// inside a string literal also starts a parameter name, so '12:30' is read as
// a parameter named 30; pass such values as parameters instead.
//
// Transactions are kept in a table keyed by generated identifiers until
// committed or rolled back, or until Close abandons them.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/rdsdataapi/service"
	"github.com/tomyedwab/rdsdataapi/types"
)

var _ service.Service = (*Host)(nil)

// Identity restricts which resource, secret and database requests may name.
// Empty fields accept any value.
type Identity struct {
	ResourceArn string
	SecretArn   string
	Database    string
}

type hostTx struct {
	tx          *sqlx.Tx
	resourceArn string
	secretArn   string
	database    string
	started     time.Time
}

// Host serves Data API requests against a backend database.
type Host struct {
	db         *sqlx.DB
	txs        map[string]*hostTx
	mu         sync.Mutex
	identity   Identity
	signingKey []byte
	audit      bool
	auditLog   *AuditLog
	logger     *slog.Logger
}

// Option configures a Host.
type Option func(*Host)

// WithIdentity sets the identifiers requests must carry.
func WithIdentity(resourceArn, secretArn, database string) Option {
	return func(h *Host) {
		h.identity = Identity{ResourceArn: resourceArn, SecretArn: secretArn, Database: database}
	}
}

// WithSigningKey makes Handler require a bearer token signed with key whose
// subject is the request's secret identifier.
func WithSigningKey(key []byte) Option {
	return func(h *Host) {
		h.signingKey = key
	}
}

// WithAudit records transaction events in the dataapi_audit table.
func WithAudit() Option {
	return func(h *Host) {
		h.audit = true
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// New creates a Host for db. The caller keeps ownership of db.
func New(db *sqlx.DB, opts ...Option) (*Host, error) {
	h := &Host{
		db:     db,
		txs:    make(map[string]*hostTx),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.audit {
		auditLog, err := NewAuditLog(db)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit log: %w", err)
		}
		h.auditLog = auditLog
	}
	return h, nil
}

// Close rolls back every open transaction.
func (h *Host) Close() error {
	h.mu.Lock()
	txs := h.txs
	h.txs = make(map[string]*hostTx)
	h.mu.Unlock()

	for id, htx := range txs {
		h.logger.Warn("Rolling back abandoned transaction", "transactionID", id, "age", time.Since(htx.started))
		if err := htx.tx.Rollback(); err != nil {
			h.logger.Error("Error rolling back abandoned transaction", "transactionID", id, "error", err)
		}
		h.recordEvent(EventAbandon, id, htx)
	}
	return nil
}

// OpenTransactions returns the number of transactions not yet committed or
// rolled back.
func (h *Host) OpenTransactions() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.txs)
}

func (h *Host) authorize(resourceArn, secretArn, database string) error {
	if h.identity.ResourceArn != "" && resourceArn != h.identity.ResourceArn {
		return service.NewForbiddenError(fmt.Sprintf("access to resource %q is not allowed", resourceArn))
	}
	if h.identity.SecretArn != "" && secretArn != h.identity.SecretArn {
		return service.NewForbiddenError("the secret is not valid for this resource")
	}
	if h.identity.Database != "" && database != "" && database != h.identity.Database {
		return service.NewForbiddenError(fmt.Sprintf("access to database %q is not allowed", database))
	}
	return nil
}

// lookupTx returns the open transaction with the given identifier.
func (h *Host) lookupTx(id string) (*hostTx, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	htx, ok := h.txs[id]
	if !ok {
		return nil, service.NewNotFoundError(fmt.Sprintf("transaction %s is not found", id))
	}
	return htx, nil
}

// takeTx removes and returns the open transaction with the given identifier.
func (h *Host) takeTx(id string) (*hostTx, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	htx, ok := h.txs[id]
	if !ok {
		return nil, service.NewNotFoundError(fmt.Sprintf("transaction %s is not found", id))
	}
	delete(h.txs, id)
	return htx, nil
}

func (h *Host) BeginTransaction(ctx context.Context, req *types.BeginTransactionRequest) (*types.BeginTransactionResponse, error) {
	if err := h.authorize(req.ResourceArn, req.SecretArn, req.Database); err != nil {
		return nil, err
	}

	// The transaction outlives the request that opened it.
	tx, err := h.db.BeginTxx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, service.NewErrorWithCause(service.ErrorTypeInternal, "begin transaction failed", err)
	}

	htx := &hostTx{
		tx:          tx,
		resourceArn: req.ResourceArn,
		secretArn:   req.SecretArn,
		database:    req.Database,
		started:     time.Now(),
	}
	txID := uuid.NewString()

	h.mu.Lock()
	h.txs[txID] = htx
	h.mu.Unlock()

	h.logger.Info("Transaction started", "transactionID", txID)
	h.recordEvent(EventBegin, txID, htx)
	return &types.BeginTransactionResponse{TransactionID: txID}, nil
}

func (h *Host) CommitTransaction(ctx context.Context, req *types.CommitTransactionRequest) (*types.CommitTransactionResponse, error) {
	if err := h.authorize(req.ResourceArn, req.SecretArn, ""); err != nil {
		return nil, err
	}

	htx, err := h.takeTx(req.TransactionID)
	if err != nil {
		return nil, err
	}

	if err := htx.tx.Commit(); err != nil {
		return nil, service.NewErrorWithCause(service.ErrorTypeBadRequest, "commit failed", err)
	}

	h.logger.Info("Transaction committed", "transactionID", req.TransactionID)
	h.recordEvent(EventCommit, req.TransactionID, htx)
	return &types.CommitTransactionResponse{TransactionStatus: types.StatusCommitted}, nil
}

func (h *Host) RollbackTransaction(ctx context.Context, req *types.RollbackTransactionRequest) (*types.RollbackTransactionResponse, error) {
	if err := h.authorize(req.ResourceArn, req.SecretArn, ""); err != nil {
		return nil, err
	}

	htx, err := h.takeTx(req.TransactionID)
	if err != nil {
		return nil, err
	}

	if err := htx.tx.Rollback(); err != nil {
		return nil, service.NewErrorWithCause(service.ErrorTypeBadRequest, "rollback failed", err)
	}

	h.logger.Info("Transaction rolled back", "transactionID", req.TransactionID)
	h.recordEvent(EventRollback, req.TransactionID, htx)
	return &types.RollbackTransactionResponse{TransactionStatus: types.StatusRollbackComplete}, nil
}

func (h *Host) recordEvent(eventType EventType, txID string, htx *hostTx) {
	if h.auditLog == nil {
		return
	}
	err := h.auditLog.Record(context.Background(), &AuditEvent{
		EventType:     string(eventType),
		TransactionID: txID,
		ResourceArn:   htx.resourceArn,
		SecretArn:     htx.secretArn,
		Database:      htx.database,
	})
	if err != nil {
		h.logger.Error("Error writing audit event", "eventType", eventType, "transactionID", txID, "error", err)
	}
}
