// Package errdefs defines the error taxonomy shared by the orchestration services.
package errdefs

import "fmt"

// NotFoundError reports that a required lookup (machine, blueprint, translation
// record) had no match. It is never retried.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError for the given resource kind and identifier.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// PreconditionReason identifies which cutback precondition a machine failed.
type PreconditionReason string

const (
	ReasonBlueprintNotConfigured PreconditionReason = "blueprint-not-configured"
	ReasonReplicationIncomplete  PreconditionReason = "replication-incomplete"
	ReasonNoConsistencyTimestamp PreconditionReason = "no-consistency-timestamp"
)

// PreconditionFailedError reports the first machine that failed the cutback
// precondition, together with the specific reason.
type PreconditionFailedError struct {
	MachineID string
	Reason    PreconditionReason
}

func (e *PreconditionFailedError) Error() string {
	return fmt.Sprintf("machine %s failed cutback precondition: %s", e.MachineID, e.Reason)
}

// ExternalCallError reports a provisioning, peering or workflow call that
// returned a structured error payload, or a reply that could not be parsed.
// Fatal for the current operation; never retried automatically.
type ExternalCallError struct {
	Call    string
	Message string
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Call, e.Message)
}

// ExternalCall builds an ExternalCallError for the named call.
func ExternalCall(call, message string) error {
	return &ExternalCallError{Call: call, Message: message}
}

// TransportError reports a network or serialization failure talking to a
// collaborator. Write and invoke calls are never retried here since they are
// not guaranteed idempotent.
type TransportError struct {
	Call string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport failure: %v", e.Call, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err as a TransportError for the named call.
func Transport(call string, err error) error {
	return &TransportError{Call: call, Err: err}
}
