package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/codebypatrickleung/sailover/internal/logger"
)

type sfnFunc func(ctx context.Context, in *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)

func (f sfnFunc) StartExecution(ctx context.Context, in *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	return f(ctx, in, optFns...)
}

func TestSubmit(t *testing.T) {
	var gotArn, gotInput string
	client := sfnFunc(func(ctx context.Context, in *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
		gotArn = *in.StateMachineArn
		gotInput = *in.Input
		return &sfn.StartExecutionOutput{
			ExecutionArn: aws.String("arn:aws:states:us-west-2:123:execution:create:run-1"),
		}, nil
	})
	executor := NewExecutor(client, logger.New(false))

	ack, err := executor.Submit(context.Background(), "arn:aws:states:us-west-2:123:stateMachine:create",
		map[string]string{"projectId": "p-1"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if ack != "arn:aws:states:us-west-2:123:execution:create:run-1" {
		t.Errorf("Expected execution ARN acknowledgement, got %s", ack)
	}
	if gotArn != "arn:aws:states:us-west-2:123:stateMachine:create" {
		t.Errorf("Unexpected state machine ARN: %s", gotArn)
	}
	if gotInput != `{"projectId":"p-1"}` {
		t.Errorf("Unexpected execution input: %s", gotInput)
	}
}

func TestSubmitFailure(t *testing.T) {
	client := sfnFunc(func(ctx context.Context, in *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
		return nil, errors.New("state machine not found")
	})
	executor := NewExecutor(client, logger.New(false))

	if _, err := executor.Submit(context.Background(), "arn:bad", struct{}{}); err == nil {
		t.Fatal("Expected error when the execution cannot be started")
	}
}
