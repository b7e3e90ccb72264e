package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybridge/daybridge/intent"
)

func TestActionTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    ActionStatus
		to      ActionStatus
		wantErr bool
	}{
		{"pending approve", ActionStatusPending, ActionStatusApproved, false},
		{"pending reject", ActionStatusPending, ActionStatusRejected, false},
		{"approved applied", ActionStatusApproved, ActionStatusApplied, false},
		{"approved revert", ActionStatusApproved, ActionStatusPending, false},
		{"pending applied skips approval", ActionStatusPending, ActionStatusApplied, true},
		{"approved reject", ActionStatusApproved, ActionStatusRejected, true},
		{"applied approve", ActionStatusApplied, ActionStatusApproved, true},
		{"applied reject", ActionStatusApplied, ActionStatusRejected, true},
		{"rejected approve", ActionStatusRejected, ActionStatusApproved, true},
		{"rejected revive", ActionStatusRejected, ActionStatusPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := &ScheduleAction{ID: "act-1", Type: intent.ActionAdd, Status: tt.from}
			err := action.transition(tt.to)
			if tt.wantErr {
				require.Error(t, err)
				var illegal *ErrIllegalTransition
				require.ErrorAs(t, err, &illegal)
				assert.Equal(t, tt.from, illegal.From)
				// An illegal transition never changes state.
				assert.Equal(t, tt.from, action.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, action.Status)
		})
	}
}

func TestActionPayloadRoundTrip(t *testing.T) {
	action := &ScheduleAction{
		ID:      "act-2",
		Type:    intent.ActionMove,
		Status:  ActionStatusPending,
		Title:   "gym",
		RawText: "move my gym session to 6pm",
	}
	payload, err := action.marshal()
	require.NoError(t, err)

	restored, err := unmarshalAction(payload)
	require.NoError(t, err)
	assert.Equal(t, action, restored)
}
