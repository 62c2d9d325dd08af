package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/rdsdataservice"
	"github.com/aws/aws-sdk-go/service/rdsdataservice/rdsdataserviceiface"

	"github.com/tomyedwab/rdsdataapi/types"
)

var _ Service = (*AWSClient)(nil)

// AWSClient sends requests through the AWS SDK rdsdataservice client, which
// takes care of request signing and credential resolution.
type AWSClient struct {
	api rdsdataserviceiface.RDSDataServiceAPI
}

// NewAWSClient wraps an existing rdsdataservice client.
func NewAWSClient(api rdsdataserviceiface.RDSDataServiceAPI) *AWSClient {
	return &AWSClient{api: api}
}

// NewAWSClientFromSession builds a client from the default AWS session,
// optionally overriding the region.
func NewAWSClientFromSession(region string) (*AWSClient, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewAWSClient(rdsdataservice.New(sess)), nil
}

func (c *AWSClient) ExecuteStatement(ctx context.Context, req *types.ExecuteStatementRequest) (*types.ExecuteStatementResponse, error) {
	input := &rdsdataservice.ExecuteStatementInput{
		ResourceArn:           aws.String(req.ResourceArn),
		SecretArn:             aws.String(req.SecretArn),
		Sql:                   aws.String(req.Sql),
		Parameters:            toSDKParameters(req.Parameters),
		IncludeResultMetadata: aws.Bool(req.IncludeResultMetadata),
	}
	if req.Database != "" {
		input.Database = aws.String(req.Database)
	}
	if req.TransactionID != "" {
		input.TransactionId = aws.String(req.TransactionID)
	}

	out, err := c.api.ExecuteStatementWithContext(ctx, input)
	if err != nil {
		return nil, wrapAWSError("ExecuteStatement", err)
	}

	resp := &types.ExecuteStatementResponse{
		NumberOfRecordsUpdated: aws.Int64Value(out.NumberOfRecordsUpdated),
	}
	if out.Records != nil {
		resp.Records = make([][]types.Field, 0, len(out.Records))
		for _, record := range out.Records {
			row, err := fromSDKFields(record)
			if err != nil {
				return nil, NewErrorWithCause(ErrorTypeInternal, "failed to convert record", err)
			}
			resp.Records = append(resp.Records, row)
		}
	}
	if out.ColumnMetadata != nil {
		resp.ColumnMetadata = make([]types.ColumnMetadata, 0, len(out.ColumnMetadata))
		for _, col := range out.ColumnMetadata {
			resp.ColumnMetadata = append(resp.ColumnMetadata, fromSDKColumn(col))
		}
	}
	if out.GeneratedFields != nil {
		generated, err := fromSDKFields(out.GeneratedFields)
		if err != nil {
			return nil, NewErrorWithCause(ErrorTypeInternal, "failed to convert generated fields", err)
		}
		resp.GeneratedFields = generated
	}
	return resp, nil
}

func (c *AWSClient) BatchExecuteStatement(ctx context.Context, req *types.BatchExecuteStatementRequest) (*types.BatchExecuteStatementResponse, error) {
	input := &rdsdataservice.BatchExecuteStatementInput{
		ResourceArn: aws.String(req.ResourceArn),
		SecretArn:   aws.String(req.SecretArn),
		Sql:         aws.String(req.Sql),
	}
	if req.Database != "" {
		input.Database = aws.String(req.Database)
	}
	if req.TransactionID != "" {
		input.TransactionId = aws.String(req.TransactionID)
	}
	for _, set := range req.ParameterSets {
		input.ParameterSets = append(input.ParameterSets, toSDKParameters(set))
	}

	out, err := c.api.BatchExecuteStatementWithContext(ctx, input)
	if err != nil {
		return nil, wrapAWSError("BatchExecuteStatement", err)
	}

	resp := &types.BatchExecuteStatementResponse{
		UpdateResults: make([]types.UpdateResult, 0, len(out.UpdateResults)),
	}
	for _, result := range out.UpdateResults {
		generated, err := fromSDKFields(result.GeneratedFields)
		if err != nil {
			return nil, NewErrorWithCause(ErrorTypeInternal, "failed to convert generated fields", err)
		}
		resp.UpdateResults = append(resp.UpdateResults, types.UpdateResult{GeneratedFields: generated})
	}
	return resp, nil
}

func (c *AWSClient) BeginTransaction(ctx context.Context, req *types.BeginTransactionRequest) (*types.BeginTransactionResponse, error) {
	input := &rdsdataservice.BeginTransactionInput{
		ResourceArn: aws.String(req.ResourceArn),
		SecretArn:   aws.String(req.SecretArn),
	}
	if req.Database != "" {
		input.Database = aws.String(req.Database)
	}

	out, err := c.api.BeginTransactionWithContext(ctx, input)
	if err != nil {
		return nil, wrapAWSError("BeginTransaction", err)
	}
	if aws.StringValue(out.TransactionId) == "" {
		return nil, NewError(ErrorTypeInternal, "service did not return a transaction ID")
	}
	return &types.BeginTransactionResponse{TransactionID: aws.StringValue(out.TransactionId)}, nil
}

func (c *AWSClient) CommitTransaction(ctx context.Context, req *types.CommitTransactionRequest) (*types.CommitTransactionResponse, error) {
	out, err := c.api.CommitTransactionWithContext(ctx, &rdsdataservice.CommitTransactionInput{
		ResourceArn:   aws.String(req.ResourceArn),
		SecretArn:     aws.String(req.SecretArn),
		TransactionId: aws.String(req.TransactionID),
	})
	if err != nil {
		return nil, wrapAWSError("CommitTransaction", err)
	}
	return &types.CommitTransactionResponse{TransactionStatus: aws.StringValue(out.TransactionStatus)}, nil
}

func (c *AWSClient) RollbackTransaction(ctx context.Context, req *types.RollbackTransactionRequest) (*types.RollbackTransactionResponse, error) {
	out, err := c.api.RollbackTransactionWithContext(ctx, &rdsdataservice.RollbackTransactionInput{
		ResourceArn:   aws.String(req.ResourceArn),
		SecretArn:     aws.String(req.SecretArn),
		TransactionId: aws.String(req.TransactionID),
	})
	if err != nil {
		return nil, wrapAWSError("RollbackTransaction", err)
	}
	return &types.RollbackTransactionResponse{TransactionStatus: aws.StringValue(out.TransactionStatus)}, nil
}

func wrapAWSError(op string, err error) error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return NewNetworkError(op+" failed", err)
	}

	if aerr.Code() == request.ErrCodeRequestError || aerr.Code() == request.CanceledErrorCode {
		return NewNetworkError(op+" failed", err)
	}

	sErr := &Error{
		Type:    TypeFromCode(aerr.Code()),
		Message: aerr.Message(),
		Cause:   err,
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		sErr.StatusCode = reqErr.StatusCode()
	} else {
		sErr.StatusCode = sErr.Type.StatusCode()
	}
	return sErr
}

func toSDKParameters(params []types.SqlParameter) []*rdsdataservice.SqlParameter {
	if len(params) == 0 {
		return nil
	}
	out := make([]*rdsdataservice.SqlParameter, 0, len(params))
	for _, p := range params {
		param := &rdsdataservice.SqlParameter{
			Name:  aws.String(p.Name),
			Value: toSDKField(p.Value),
		}
		if p.TypeHint != "" {
			param.TypeHint = aws.String(p.TypeHint)
		}
		out = append(out, param)
	}
	return out
}

func toSDKField(f types.Field) *rdsdataservice.Field {
	switch v := f.Value().(type) {
	case string:
		return &rdsdataservice.Field{StringValue: aws.String(v)}
	case []byte:
		if v == nil {
			v = []byte{}
		}
		return &rdsdataservice.Field{BlobValue: v}
	case bool:
		return &rdsdataservice.Field{BooleanValue: aws.Bool(v)}
	case float64:
		return &rdsdataservice.Field{DoubleValue: aws.Float64(v)}
	case int64:
		return &rdsdataservice.Field{LongValue: aws.Int64(v)}
	default:
		return &rdsdataservice.Field{IsNull: aws.Bool(true)}
	}
}

func fromSDKField(f *rdsdataservice.Field) (types.Field, error) {
	switch {
	case f == nil, aws.BoolValue(f.IsNull):
		return types.NullField(), nil
	case f.StringValue != nil:
		return types.StringField(*f.StringValue), nil
	case f.BlobValue != nil:
		return types.BlobField(f.BlobValue), nil
	case f.BooleanValue != nil:
		return types.BooleanField(*f.BooleanValue), nil
	case f.DoubleValue != nil:
		return types.DoubleField(*f.DoubleValue), nil
	case f.LongValue != nil:
		return types.LongField(*f.LongValue), nil
	case f.ArrayValue != nil:
		return types.Field{}, fmt.Errorf("%w: array values are not supported", types.ErrMalformedField)
	default:
		return types.Field{}, fmt.Errorf("%w: no variant set", types.ErrMalformedField)
	}
}

func fromSDKFields(fields []*rdsdataservice.Field) ([]types.Field, error) {
	if fields == nil {
		return nil, nil
	}
	out := make([]types.Field, 0, len(fields))
	for _, f := range fields {
		field, err := fromSDKField(f)
		if err != nil {
			return nil, err
		}
		out = append(out, field)
	}
	return out, nil
}

func fromSDKColumn(col *rdsdataservice.ColumnMetadata) types.ColumnMetadata {
	return types.ColumnMetadata{
		Name:            aws.StringValue(col.Name),
		Label:           aws.StringValue(col.Label),
		TypeName:        aws.StringValue(col.TypeName),
		Type:            aws.Int64Value(col.Type),
		Nullable:        aws.Int64Value(col.Nullable),
		Precision:       aws.Int64Value(col.Precision),
		Scale:           aws.Int64Value(col.Scale),
		IsAutoIncrement: aws.BoolValue(col.IsAutoIncrement),
		IsCaseSensitive: aws.BoolValue(col.IsCaseSensitive),
		IsSigned:        aws.BoolValue(col.IsSigned),
		SchemaName:      aws.StringValue(col.SchemaName),
		TableName:       aws.StringValue(col.TableName),
	}
}
