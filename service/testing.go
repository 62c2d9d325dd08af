package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomyedwab/rdsdataapi/types"
)

var _ Service = (*MockService)(nil)

// MockCall represents a recorded request for testing
type MockCall struct {
	// Operation is the path of the operation, e.g. PathExecute.
	Operation string
	Request   any
}

// MockService implements Service in memory for testing purposes. Execute
// responses are served from a queue; once it drains an empty response is
// returned.
type MockService struct {
	mu             sync.Mutex
	calls          []MockCall
	errors         map[string]error
	executeQueue   []*types.ExecuteStatementResponse
	batchResponse  *types.BatchExecuteStatementResponse
	txCounter      int
	commitStatus   string
	rollbackStatus string
}

// NewMockService creates a new mock service instance for testing
func NewMockService() *MockService {
	return &MockService{
		errors:         make(map[string]error),
		commitStatus:   types.StatusCommitted,
		rollbackStatus: types.StatusRollbackComplete,
	}
}

// QueueExecuteResponses appends responses served by ExecuteStatement in order.
func (m *MockService) QueueExecuteResponses(responses ...*types.ExecuteStatementResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executeQueue = append(m.executeQueue, responses...)
}

// SetBatchResponse configures the response served by BatchExecuteStatement.
func (m *MockService) SetBatchResponse(resp *types.BatchExecuteStatementResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchResponse = resp
}

// SetError configures an error for an operation. A nil error clears it.
func (m *MockService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.errors, operation)
		return
	}
	m.errors[operation] = err
}

// Calls returns all recorded calls for verification
func (m *MockService) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Requests returns the recorded requests for one operation.
func (m *MockService) Requests(operation string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()

	var requests []any
	for _, call := range m.calls {
		if call.Operation == operation {
			requests = append(requests, call.Request)
		}
	}
	return requests
}

// ClearCalls clears the recorded call history
func (m *MockService) ClearCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = nil
}

// record stores the call and returns the configured error for the operation.
func (m *MockService) record(operation string, req any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Operation: operation, Request: req})
	return m.errors[operation]
}

func (m *MockService) ExecuteStatement(ctx context.Context, req *types.ExecuteStatementRequest) (*types.ExecuteStatementResponse, error) {
	if err := m.record(PathExecute, req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.executeQueue) == 0 {
		return &types.ExecuteStatementResponse{}, nil
	}
	resp := m.executeQueue[0]
	m.executeQueue = m.executeQueue[1:]
	return resp, nil
}

func (m *MockService) BatchExecuteStatement(ctx context.Context, req *types.BatchExecuteStatementRequest) (*types.BatchExecuteStatementResponse, error) {
	if err := m.record(PathBatchExecute, req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.batchResponse != nil {
		return m.batchResponse, nil
	}
	return &types.BatchExecuteStatementResponse{
		UpdateResults: make([]types.UpdateResult, len(req.ParameterSets)),
	}, nil
}

func (m *MockService) BeginTransaction(ctx context.Context, req *types.BeginTransactionRequest) (*types.BeginTransactionResponse, error) {
	if err := m.record(PathBeginTransaction, req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.txCounter++
	return &types.BeginTransactionResponse{TransactionID: fmt.Sprintf("tx-%d", m.txCounter)}, nil
}

func (m *MockService) CommitTransaction(ctx context.Context, req *types.CommitTransactionRequest) (*types.CommitTransactionResponse, error) {
	if err := m.record(PathCommitTransaction, req); err != nil {
		return nil, err
	}
	return &types.CommitTransactionResponse{TransactionStatus: m.commitStatus}, nil
}

func (m *MockService) RollbackTransaction(ctx context.Context, req *types.RollbackTransactionRequest) (*types.RollbackTransactionResponse, error) {
	if err := m.record(PathRollbackTransaction, req); err != nil {
		return nil, err
	}
	return &types.RollbackTransactionResponse{TransactionStatus: m.rollbackStatus}, nil
}
