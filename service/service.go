// Package service defines the remote statement-execution API consumed by the
// client and provides transports for it.
//
// Two transports are available: HTTPClient speaks the Data API JSON protocol
// to any endpoint (the local emulator in package host, or a gateway), and
// AWSClient goes through the AWS SDK's rdsdataservice client.
//
// # Error Handling
//
// Transports return *Error values typed by ErrorType so callers can branch on
// the failure category:
//
//	if _, err := svc.CommitTransaction(ctx, req); err != nil {
//		if service.IsNotFoundError(err) {
//			// the transaction expired or was already closed
//		}
//	}
package service

import (
	"context"

	"github.com/tomyedwab/rdsdataapi/types"
)

// Service is the stateless statement-execution API.
type Service interface {
	ExecuteStatement(ctx context.Context, req *types.ExecuteStatementRequest) (*types.ExecuteStatementResponse, error)
	BatchExecuteStatement(ctx context.Context, req *types.BatchExecuteStatementRequest) (*types.BatchExecuteStatementResponse, error)
	BeginTransaction(ctx context.Context, req *types.BeginTransactionRequest) (*types.BeginTransactionResponse, error)
	CommitTransaction(ctx context.Context, req *types.CommitTransactionRequest) (*types.CommitTransactionResponse, error)
	RollbackTransaction(ctx context.Context, req *types.RollbackTransactionRequest) (*types.RollbackTransactionResponse, error)
}

// Operation paths, relative to the endpoint, used by the HTTP protocol.
const (
	PathExecute             = "/Execute"
	PathBatchExecute        = "/BatchExecute"
	PathBeginTransaction    = "/BeginTransaction"
	PathCommitTransaction   = "/CommitTransaction"
	PathRollbackTransaction = "/RollbackTransaction"

	// ErrorTypeHeader names the response header carrying the error code.
	ErrorTypeHeader = "x-amzn-ErrorType"
)
