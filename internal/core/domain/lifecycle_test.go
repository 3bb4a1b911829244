package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	withSchedule := LifecycleFacts{HasSchedule: true, ScheduleSize: 3}
	openCycle := LifecycleFacts{HasSchedule: true, ScheduleSize: 3, OpenCycle: true}

	tests := []struct {
		name    string
		from    RoundStatus
		event   LifecycleEvent
		facts   LifecycleFacts
		want    RoundStatus
		wantErr error
	}{
		{"start planned", StatusPlanned, EventStart, withSchedule, StatusActive, nil},
		{"start without schedule", StatusPlanned, EventStart, LifecycleFacts{}, StatusPlanned, ErrNoSchedule},
		{"start empty schedule", StatusPlanned, EventStart, LifecycleFacts{HasSchedule: true}, StatusPlanned, ErrEmptySchedule},
		{"start active", StatusActive, EventStart, withSchedule, StatusActive, ErrAlreadyStarted},
		{"start completed", StatusCompleted, EventStart, withSchedule, StatusCompleted, ErrAlreadyStarted},
		{"advance active", StatusActive, EventAdvance, withSchedule, StatusActive, nil},
		{"advance with open cycle", StatusActive, EventAdvance, openCycle, StatusActive, ErrCycleInProgress},
		{"advance planned", StatusPlanned, EventAdvance, withSchedule, StatusPlanned, ErrInvalidTransition},
		{"complete active", StatusActive, EventComplete, withSchedule, StatusCompleted, nil},
		{"complete with open cycle", StatusActive, EventComplete, openCycle, StatusActive, ErrCycleInProgress},
		{"complete planned", StatusPlanned, EventComplete, withSchedule, StatusPlanned, ErrInvalidTransition},
		{"cancel planned", StatusPlanned, EventCancel, LifecycleFacts{}, StatusCancelled, nil},
		{"cancel active", StatusActive, EventCancel, withSchedule, StatusCancelled, nil},
		{"cancel with open cycle", StatusActive, EventCancel, openCycle, StatusActive, ErrCycleInProgress},
		{"cancel completed", StatusCompleted, EventCancel, withSchedule, StatusCompleted, ErrInvalidTransition},
		{"cancel cancelled", StatusCancelled, EventCancel, withSchedule, StatusCancelled, ErrInvalidTransition},
		{"unknown event", StatusActive, LifecycleEvent("pause"), withSchedule, StatusActive, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(7, tt.from, tt.event, tt.facts)
			assert.Equal(t, tt.want, got)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)

			var ruleErr *RuleError
			require.True(t, errors.As(err, &ruleErr))
			assert.Equal(t, uint(7), ruleErr.RoundID)
			assert.Equal(t, tt.from, ruleErr.Status)
		})
	}
}

func TestTerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	events := []LifecycleEvent{EventStart, EventAdvance, EventComplete, EventCancel}
	facts := LifecycleFacts{HasSchedule: true, ScheduleSize: 2}

	for _, from := range []RoundStatus{StatusCompleted, StatusCancelled} {
		for _, ev := range events {
			got, err := Transition(1, from, ev, facts)
			assert.Error(t, err, "%s --%s-->", from, ev)
			assert.Equal(t, from, got)
		}
	}
}

func TestCanDelete(t *testing.T) {
	assert.NoError(t, CanDelete(1, StatusPlanned, 0))
	assert.NoError(t, CanDelete(1, StatusCancelled, 0))
	assert.ErrorIs(t, CanDelete(1, StatusActive, 0), ErrDeleteBlocked)
	assert.ErrorIs(t, CanDelete(1, StatusCompleted, 0), ErrDeleteBlocked)
	assert.ErrorIs(t, CanDelete(1, StatusCancelled, 2), ErrDeleteBlocked)
	assert.ErrorIs(t, CanDelete(1, StatusPlanned, 1), ErrDeleteBlocked)
}

func TestScheduleGuards(t *testing.T) {
	assert.NoError(t, CanEditSchedule(1, StatusPlanned))
	assert.NoError(t, CanEditSchedule(1, StatusActive))
	assert.ErrorIs(t, CanEditSchedule(1, StatusCompleted), ErrInvalidTransition)
	assert.ErrorIs(t, CanEditSchedule(1, StatusCancelled), ErrInvalidTransition)

	assert.NoError(t, CanDeleteSchedule(1, StatusPlanned))
	assert.ErrorIs(t, CanDeleteSchedule(1, StatusActive), ErrInvalidTransition)

	assert.NoError(t, CanArchive(1, StatusCompleted))
	assert.ErrorIs(t, CanArchive(1, StatusActive), ErrInvalidTransition)
}

func TestParseRoundStatus(t *testing.T) {
	s, err := ParseRoundStatus(" active ")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s)

	_, err = ParseRoundStatus("paused")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
