package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a node could not be evaluated.
type FailureKind string

const (
	FailureParentEvaluation FailureKind = "parent_evaluation_failed"
	FailureTransition       FailureKind = "transition_failed"
	FailureDeltaType        FailureKind = "delta_type_error"
	FailureResourceMissing  FailureKind = "resource_missing"
	FailureEventSpecUnset   FailureKind = "event_spec_unset"
)

// Failure is an evaluation error captured as data on a node's Output.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	NodeID  string      `json:"node_id,omitempty"`
	Message string      `json:"message"`
	// Cause is the ancestor failure a ParentEvaluationFailed refers to.
	Cause *Failure `json:"cause,omitempty"`
	Err   error    `json:"-"`
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by %s)", f.Kind, f.Message, f.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	if f.Err != nil {
		return f.Err
	}
	if f.Cause != nil {
		return f.Cause
	}
	return nil
}

// Origin follows Cause links back to the failure that started the cascade.
func (f *Failure) Origin() *Failure {
	cur := f
	for cur.Cause != nil {
		cur = cur.Cause
	}
	return cur
}

// ParentFailed derives the short-circuit failure of a node whose parent failed.
func ParentFailed(nodeID string, parent *Failure) *Failure {
	msg := "parent evaluation failed"
	if parent != nil && parent.NodeID != "" {
		msg = fmt.Sprintf("parent %s evaluation failed", parent.NodeID)
	}
	return &Failure{
		Kind:    FailureParentEvaluation,
		NodeID:  nodeID,
		Message: msg,
		Cause:   parent,
	}
}

// FailureFrom classifies err into a Failure attributed to nodeID.
// A *Failure found in the chain is reused (and attributed if it has no node).
func FailureFrom(nodeID string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		if f.NodeID == "" {
			f.NodeID = nodeID
		}
		return f
	}

	kind := FailureTransition
	switch {
	case errors.Is(err, ErrResourceMissing):
		kind = FailureResourceMissing
	case errors.Is(err, ErrEventSpecUnset):
		kind = FailureEventSpecUnset
	case errors.Is(err, ErrDeltaType):
		kind = FailureDeltaType
	}

	return &Failure{
		Kind:    kind,
		NodeID:  nodeID,
		Message: err.Error(),
		Err:     err,
	}
}
