// Package agent ties the pipeline together: it turns user messages into
// grounded replies, proposes calendar actions, and drives each action
// through its approval lifecycle.
package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/daybridge/daybridge/intent"
)

// ActionStatus is the lifecycle state of a proposed calendar action.
type ActionStatus string

const (
	// ActionStatusPending awaits a user decision. Approving moves to
	// approved; rejecting is terminal. A failed execution returns here.
	ActionStatusPending ActionStatus = "pending"
	// ActionStatusApproved means execution is in flight.
	ActionStatusApproved ActionStatus = "approved"
	// ActionStatusApplied means the calendar mutation succeeded.
	ActionStatusApplied ActionStatus = "applied"
	// ActionStatusRejected is terminal; the user declined.
	ActionStatusRejected ActionStatus = "rejected"
)

// ErrIllegalTransition reports an approve/reject attempt on an action
// that is not in a state permitting it. The action is left unchanged.
type ErrIllegalTransition struct {
	ActionID string
	From     ActionStatus
	To       ActionStatus
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("action %s: illegal transition %s -> %s", e.ActionID, e.From, e.To)
}

// ScheduleAction is a proposed calendar mutation awaiting user review.
// It is persisted as the JSON payload of its conversation message; the
// action ID is that message's UID.
type ScheduleAction struct {
	ID     string            `json:"id"`
	Type   intent.ActionType `json:"type"`
	Status ActionStatus      `json:"status"`

	Title           string     `json:"title"`
	TargetEventID   string     `json:"targetEventId,omitempty"`
	TargetTitle     string     `json:"targetTitle,omitempty"`
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`

	// RawText is the user message the slots were extracted from. It is
	// re-parsed at execution time when the stored slots are incomplete.
	RawText string `json:"rawText"`

	// LastError holds the most recent execution failure, if any.
	LastError string `json:"lastError,omitempty"`
}

// transition validates and applies a status change. Legal edges:
// pending -> approved, pending -> rejected, approved -> applied,
// approved -> pending (execution failure revert).
func (a *ScheduleAction) transition(to ActionStatus) error {
	legal := map[ActionStatus][]ActionStatus{
		ActionStatusPending:  {ActionStatusApproved, ActionStatusRejected},
		ActionStatusApproved: {ActionStatusApplied, ActionStatusPending},
	}
	for _, allowed := range legal[a.Status] {
		if allowed == to {
			a.Status = to
			return nil
		}
	}
	return &ErrIllegalTransition{ActionID: a.ID, From: a.Status, To: to}
}

func (a *ScheduleAction) marshal() (string, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal action %s: %w", a.ID, err)
	}
	return string(payload), nil
}

func unmarshalAction(payload string) (*ScheduleAction, error) {
	var action ScheduleAction
	if err := json.Unmarshal([]byte(payload), &action); err != nil {
		return nil, fmt.Errorf("unmarshal action payload: %w", err)
	}
	return &action, nil
}
