package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
	"github.com/codebypatrickleung/sailover/internal/logger"
)

// LambdaAPI is the subset of the Lambda client used by the invoker.
type LambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Invoker calls the external provisioning functions. The functions are
// invoked through an asynchronous-capable channel but treated as synchronous
// request/response: the call blocks until a reply payload is received, and a
// structured error payload or malformed reply is fatal for the operation.
type Invoker struct {
	client LambdaAPI
	logger *logger.Logger
}

// NewInvoker creates a Lambda-backed invoker.
func NewInvoker(client LambdaAPI, log *logger.Logger) *Invoker {
	return &Invoker{client: client, logger: log}
}

// Invoke calls the named function with a JSON payload and decodes the reply
// into result when result is non-nil. A reply carrying an errorMessage field
// is surfaced as an ExternalCallError.
func (i *Invoker) Invoke(ctx context.Context, functionName string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errdefs.Transport(functionName, err)
	}

	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: &functionName,
		Payload:      body,
	})
	if err != nil {
		return errdefs.Transport(functionName, err)
	}
	i.logger.Debugf("%s output [%s]", functionName, out.Payload)

	if msg := errorMessage(out.Payload); msg != "" {
		return errdefs.ExternalCall(functionName, msg)
	}

	if result != nil {
		if err := json.Unmarshal(out.Payload, result); err != nil {
			return errdefs.ExternalCall(functionName, fmt.Sprintf("unable to parse response: %v", err))
		}
	}
	return nil
}

// errorMessage extracts the errorMessage field from a structured error reply,
// or returns an empty string when the reply is not an error object.
func errorMessage(payload []byte) string {
	var reply map[string]json.RawMessage
	if err := json.Unmarshal(payload, &reply); err != nil {
		return ""
	}
	raw, ok := reply["errorMessage"]
	if !ok {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return string(raw)
	}
	return msg
}
