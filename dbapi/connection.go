package dbapi

import (
	"context"
	"log/slog"

	"github.com/tomyedwab/rdsdataapi/service"
	"github.com/tomyedwab/rdsdataapi/types"
)

// Connection is a logical connection to one database. It holds no remote
// session; the only state is the current transaction token.
type Connection struct {
	resourceArn   string
	secretArn     string
	database      string
	svc           service.Service
	logger        *slog.Logger
	transactionID string
	closed        bool
}

// ResourceArn returns the resource identifier.
func (c *Connection) ResourceArn() string {
	return c.resourceArn
}

// SecretArn returns the secret identifier.
func (c *Connection) SecretArn() string {
	return c.secretArn
}

// Database returns the database name.
func (c *Connection) Database() string {
	return c.database
}

// InTransaction reports whether a transaction token is held.
func (c *Connection) InTransaction() bool {
	return c.transactionID != ""
}

// TransactionID returns the held transaction token, or "" in autocommit.
func (c *Connection) TransactionID() string {
	return c.transactionID
}

// Close marks the connection closed. Nothing remote is released; an open
// transaction is left to expire on the service side.
func (c *Connection) Close() error {
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Connection) Closed() bool {
	return c.closed
}

// Cursor returns a new cursor bound to the connection.
func (c *Connection) Cursor() *Cursor {
	return &Cursor{
		conn:      c,
		rowCount:  -1,
		arraySize: 1,
	}
}

// Begin starts a transaction. Calling it while a transaction is held is a
// ProgrammingError and the held token is kept.
func (c *Connection) Begin(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.InTransaction() {
		return newError(KindProgrammingError, "transaction already in progress")
	}

	resp, err := c.svc.BeginTransaction(ctx, &types.BeginTransactionRequest{
		ResourceArn: c.resourceArn,
		SecretArn:   c.secretArn,
		Database:    c.database,
	})
	if err != nil {
		return wrapError(KindError, "begin transaction failed", err)
	}

	c.transactionID = resp.TransactionID
	c.logger.Debug("Transaction started", "transactionID", c.transactionID)
	return nil
}

// Commit commits the held transaction. Without one it does nothing. If the
// service call fails the token is kept so the caller can retry or roll back.
func (c *Connection) Commit(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if !c.InTransaction() {
		return nil
	}

	resp, err := c.svc.CommitTransaction(ctx, &types.CommitTransactionRequest{
		ResourceArn:   c.resourceArn,
		SecretArn:     c.secretArn,
		TransactionID: c.transactionID,
	})
	if err != nil {
		return wrapError(KindError, "commit failed", err)
	}

	c.logger.Debug("Transaction committed", "transactionID", c.transactionID, "status", resp.TransactionStatus)
	c.transactionID = ""
	return nil
}

// Rollback rolls back the held transaction. Without one it does nothing. If
// the service call fails the token is kept.
func (c *Connection) Rollback(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if !c.InTransaction() {
		return nil
	}

	resp, err := c.svc.RollbackTransaction(ctx, &types.RollbackTransactionRequest{
		ResourceArn:   c.resourceArn,
		SecretArn:     c.secretArn,
		TransactionID: c.transactionID,
	})
	if err != nil {
		return wrapError(KindError, "rollback failed", err)
	}

	c.logger.Debug("Transaction rolled back", "transactionID", c.transactionID, "status", resp.TransactionStatus)
	c.transactionID = ""
	return nil
}

// WithTransaction runs fn in a transaction on a new cursor. See
// Cursor.WithTransaction.
func (c *Connection) WithTransaction(ctx context.Context, fn func(*Cursor) error) error {
	return c.Cursor().WithTransaction(ctx, fn)
}

func (c *Connection) checkOpen() error {
	if c.closed {
		return newError(KindInterfaceError, "connection is closed")
	}
	return nil
}
