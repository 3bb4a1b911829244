package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrRoundBusy    = errors.New("cash round is locked by another operation")
)

// Lookup errors
var (
	ErrRoundNotFound       = errors.New("cash round not found")
	ErrCycleNotFound       = errors.New("cycle not found")
	ErrRuleNotFound        = errors.New("deduction rule not found")
	ErrMemberNotFound      = errors.New("member not found in directory")
	ErrMemberNotInRound    = errors.New("member is not active in this cash round")
	ErrMemberAlreadyActive = errors.New("member is already active in this cash round")
	ErrSectionNotFound     = errors.New("ledger section not found")
	ErrScheduleExists      = errors.New("cash round already has a rotation schedule")
)

// Rotation errors
var (
	ErrInvalidOrder  = errors.New("invalid rotation order")
	ErrEmptySchedule = errors.New("rotation schedule is empty")
)

// Lifecycle errors
var (
	ErrInvalidTransition = errors.New("invalid cash round status transition")
	ErrNoSchedule        = errors.New("cash round has no rotation schedule")
	ErrAlreadyStarted    = errors.New("cash round already started")
	ErrCycleInProgress   = errors.New("a collection cycle is still open")
	ErrNotOpen           = errors.New("cycle is not open")
	ErrDeleteBlocked     = errors.New("cash round cannot be deleted")
)

// RuleError is a business rule violation tied to a round. It wraps one of the
// sentinels above so callers can still match with errors.Is.
type RuleError struct {
	Err     error
	RoundID uint
	Status  RoundStatus
	Detail  string
}

// NewRuleError builds a RuleError with a formatted detail message.
func NewRuleError(err error, roundID uint, status RoundStatus, format string, args ...any) *RuleError {
	return &RuleError{
		Err:     err,
		RoundID: roundID,
		Status:  status,
		Detail:  fmt.Sprintf(format, args...),
	}
}

func (e *RuleError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("round %d (%s): %v", e.RoundID, e.Status, e.Err)
	}
	return fmt.Sprintf("round %d (%s): %v: %s", e.RoundID, e.Status, e.Err, e.Detail)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}
