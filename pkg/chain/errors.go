package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for building chains.
var (
	// ErrDuplicateNode indicates AddNode was called with an ID already in use.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEmptyID indicates a node without an ID.
	ErrEmptyID = errors.New("node id is empty")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Execute was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrChainRunning indicates Execute or Resume was called while a run is in progress.
	ErrChainRunning = errors.New("chain is already running")

	// ErrChainFinished indicates Execute was called on a finished chain without Reset.
	ErrChainFinished = errors.New("chain already finished")

	// ErrNotSuspended indicates Resume was called on a chain with nothing pending.
	ErrNotSuspended = errors.New("chain is not suspended")

	// ErrMissingParameter indicates a required parameter resolved to nothing.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrLoopLimit indicates a node executed more often than the chain allows.
	ErrLoopLimit = errors.New("exceeded loop limit")

	// ErrIncomplete indicates ExecuteForResult ended in a status other than
	// FINISHED_NORMAL.
	ErrIncomplete = errors.New("chain did not finish normally")

	// ErrStopped is attached to a chain stopped with StopError.
	ErrStopped = errors.New("chain stopped")
)

// Sentinel errors for snapshots.
var (
	// ErrNotSerializable indicates a node or condition holds behavior that
	// cannot be written to a snapshot.
	ErrNotSerializable = errors.New("not serializable")

	// ErrUnknownKind indicates a snapshot references a node kind with no
	// registered factory.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrHolderVersion indicates the snapshot format version is incompatible.
	ErrHolderVersion = errors.New("snapshot version mismatch")
)

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed ("condition", "resolve", "execute", "loop").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// ConfigurationError reports a parameter that could not be resolved and
// cannot be supplied later (it is not an INPUT parameter).
type ConfigurationError struct {
	NodeID    string
	Parameter string
	Err       error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("node %s: parameter %q: %v", e.NodeID, e.Parameter, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// CancellationError captures the point where the caller's context ended.
type CancellationError struct {
	// NodeID is the node that was about to execute or was executing.
	NodeID string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
	// WasExecuting is true if cancellation occurred during node execution.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during node %s: %v", e.NodeID, e.Cause)
	}
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// TimeoutError reports a node that did not return within the chain's node
// timeout.
type TimeoutError struct {
	NodeID  string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %s timed out after %s", e.NodeID, e.Timeout)
}

// Unwrap returns context.DeadlineExceeded for errors.Is support.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// LoopLimitError provides context when a node exceeds the loop limit.
type LoopLimitError struct {
	Max    int
	NodeID string
}

// Error implements the error interface.
func (e *LoopLimitError) Error() string {
	return fmt.Sprintf("exceeded loop limit (%d) at node %s", e.Max, e.NodeID)
}

// Unwrap returns ErrLoopLimit for errors.Is support.
func (e *LoopLimitError) Unwrap() error {
	return ErrLoopLimit
}

// Suspension describes a node that cannot proceed until external input
// arrives. It travels as a value in Result, never as an error.
type Suspension struct {
	NodeID     string
	Parameters []*Parameter
}

// Names returns the names of the awaited parameters.
func (s *Suspension) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Parameters))
	for i, p := range s.Parameters {
		names[i] = p.Name
	}
	return names
}

func (s *Suspension) String() string {
	return fmt.Sprintf("node %s awaiting %s", s.NodeID, strings.Join(s.Names(), ", "))
}
