// Package workflow provides the contract to the external workflow executor
// and the invoker for the external provisioning functions. The executor runs
// named multi-step state machines asynchronously; acceptance of a submission
// is the only synchronous signal this package observes.
package workflow

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
	"github.com/codebypatrickleung/sailover/internal/logger"
)

// Executor submits a named workflow with a JSON request payload and returns a
// submission acknowledgement. Execution is fire-and-forget; once a submission
// is accepted there is no way to abort it from here.
type Executor interface {
	Submit(ctx context.Context, workflow string, payload interface{}) (string, error)
}

// SFNAPI is the subset of the Step Functions client used by the executor.
type SFNAPI interface {
	StartExecution(ctx context.Context, in *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// StateMachineExecutor submits workflows to AWS Step Functions.
type StateMachineExecutor struct {
	client SFNAPI
	logger *logger.Logger
}

// NewExecutor creates a Step Functions backed executor.
func NewExecutor(client SFNAPI, log *logger.Logger) *StateMachineExecutor {
	return &StateMachineExecutor{client: client, logger: log}
}

// Submit starts an execution of the named state machine and returns its
// execution ARN as the acknowledgement.
func (e *StateMachineExecutor) Submit(ctx context.Context, workflow string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errdefs.Transport("submit workflow", err)
	}
	input := string(body)

	out, err := e.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: &workflow,
		Input:           &input,
	})
	if err != nil {
		return "", errdefs.Transport("submit workflow", err)
	}

	e.logger.Debugf("Submitted workflow %s as %s", workflow, *out.ExecutionArn)
	return *out.ExecutionArn, nil
}
