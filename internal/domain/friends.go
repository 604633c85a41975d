package domain

import "errors"

type RelationshipState string

const (
	RelationshipNone            RelationshipState = "NONE"
	RelationshipRequestSent     RelationshipState = "REQUEST_SENT"
	RelationshipRequestReceived RelationshipState = "REQUEST_RECEIVED"
	RelationshipFriends         RelationshipState = "FRIENDS"
)

type Operation string

const (
	OpSendRequest   Operation = "send_request"
	OpAcceptRequest Operation = "accept_request"
	OpRejectRequest Operation = "reject_request"
	OpCancelRequest Operation = "cancel_request"
	OpRemoveFriend  Operation = "remove_friend"
	OpRepair        Operation = "repair"
)

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepDone    StepStatus = "done"
	// StepSkipped means the document already held the target set; no write was issued.
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// Step is one single-document read-modify-write of a relationship operation.
type Step struct {
	Name     string     `json:"name"`
	UID      string     `json:"uid"`
	Field    string     `json:"field"`
	Member   string     `json:"member"`
	Add      bool       `json:"add"`
	Status   StepStatus `json:"status"`
	Attempts int        `json:"attempts,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func (s Step) Completed() bool { return s.Status == StepDone || s.Status == StepSkipped }

type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeFailure           Outcome = "failure"
	OutcomePartialCompletion Outcome = "partial_completion"
)

// OpResult describes what a relationship operation did, step by step.
type OpResult struct {
	Op      Operation         `json:"op"`
	RunID   string            `json:"run_id,omitempty"`
	Outcome Outcome           `json:"outcome"`
	Steps   []Step            `json:"steps"`
	State   RelationshipState `json:"state,omitempty"`
	// Resumed is set when an incomplete record of the same operation was found.
	Resumed bool `json:"resumed,omitempty"`
	// CleanupPending marks a stale request left behind after the friendship was established.
	CleanupPending bool `json:"cleanup_pending,omitempty"`
	Atomic         bool `json:"atomic,omitempty"`
}

// CompletedSteps returns the names of the steps that took effect or were already in place.
func (r OpResult) CompletedSteps() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Completed() {
			out = append(out, s.Name)
		}
	}
	return out
}

// OutcomeOf maps an operation error to the tri-state outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrPartialCompletion):
		return OutcomePartialCompletion
	default:
		return OutcomeFailure
	}
}
