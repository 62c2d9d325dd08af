package host

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// EventType represents the type of audit event
type EventType string

const (
	EventBegin    EventType = "begin"
	EventCommit   EventType = "commit"
	EventRollback EventType = "rollback"
	// EventAbandon is recorded for transactions rolled back by Close.
	EventAbandon EventType = "abandon"
)

// AuditEvent represents a transaction audit entry in the database
type AuditEvent struct {
	ID                string `db:"id"`
	EventType         string `db:"event_type"`
	CreatedAt         int64  `db:"created_at"` // Unix nanoseconds
	TransactionID     string `db:"transaction_id"`
	ResourceArn       string `db:"resource_arn"`
	SecretFingerprint string `db:"secret_fingerprint"`
	Database          string `db:"database_name"`

	// SecretArn is fingerprinted before the event is stored.
	SecretArn string `db:"-"`
}

// AuditLog records transaction events in the backend database
type AuditLog struct {
	db *sqlx.DB
}

// NewAuditLog creates the audit table if needed and returns a log writing to it
func NewAuditLog(db *sqlx.DB) (*AuditLog, error) {
	if err := AuditDBInit(db); err != nil {
		return nil, err
	}
	return &AuditLog{db: db}, nil
}

// AuditDBInit initializes the audit table. The column types are accepted by
// every supported backend.
func AuditDBInit(db *sqlx.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS dataapi_audit (
		id VARCHAR(64) PRIMARY KEY,
		event_type VARCHAR(32) NOT NULL,
		created_at BIGINT NOT NULL,
		transaction_id VARCHAR(64) NOT NULL,
		resource_arn VARCHAR(2048) NOT NULL,
		secret_fingerprint VARCHAR(64) NOT NULL,
		database_name VARCHAR(255) NOT NULL
	)
	`)
	return err
}

// secretFingerprint creates a SHA-256 hash of a secret identifier so the log
// can correlate callers without storing the identifier itself
func secretFingerprint(secretArn string) string {
	if secretArn == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(secretArn))
	return hex.EncodeToString(hash[:])
}

// Record inserts an event, assigning its ID and timestamp
func (l *AuditLog) Record(ctx context.Context, event *AuditEvent) error {
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UTC().UnixNano()
	event.SecretFingerprint = secretFingerprint(event.SecretArn)

	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO dataapi_audit (
			id, event_type, created_at, transaction_id,
			resource_arn, secret_fingerprint, database_name
		) VALUES (
			:id, :event_type, :created_at, :transaction_id,
			:resource_arn, :secret_fingerprint, :database_name
		)`, event)
	return err
}

// Recent returns up to limit events, newest first
func (l *AuditLog) Recent(ctx context.Context, limit int) ([]AuditEvent, error) {
	var events []AuditEvent
	err := l.db.SelectContext(ctx, &events, l.db.Rebind(`
		SELECT id, event_type, created_at, transaction_id,
			resource_arn, secret_fingerprint, database_name
		FROM dataapi_audit
		ORDER BY created_at DESC
		LIMIT ?`), limit)
	return events, err
}

// ForTransaction returns the events of one transaction, oldest first
func (l *AuditLog) ForTransaction(ctx context.Context, txID string) ([]AuditEvent, error) {
	var events []AuditEvent
	err := l.db.SelectContext(ctx, &events, l.db.Rebind(`
		SELECT id, event_type, created_at, transaction_id,
			resource_arn, secret_fingerprint, database_name
		FROM dataapi_audit
		WHERE transaction_id = ?
		ORDER BY created_at ASC`), txID)
	return events, err
}

// AuditLog returns the host's audit log, or nil when auditing is disabled.
func (h *Host) AuditLog() *AuditLog {
	return h.auditLog
}
