package domain

import (
	"fmt"
	"strings"
)

// RoundStatus is the lifecycle state of a cash round
type RoundStatus string

const (
	StatusPlanned   RoundStatus = "PLANNED"
	StatusActive    RoundStatus = "ACTIVE"
	StatusCompleted RoundStatus = "COMPLETED"
	StatusCancelled RoundStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are possible.
func (s RoundStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseRoundStatus accepts any letter case.
func ParseRoundStatus(s string) (RoundStatus, error) {
	switch st := RoundStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPlanned, StatusActive, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown round status %q", ErrInvalidInput, s)
}

// CycleStatus is the state of a single collection cycle
type CycleStatus string

const (
	CycleOpen      CycleStatus = "OPEN"
	CycleFinalized CycleStatus = "FINALIZED"
	CycleCancelled CycleStatus = "CANCELLED"
)

// LifecycleEvent drives the round state machine
type LifecycleEvent string

const (
	EventStart    LifecycleEvent = "start"
	EventAdvance  LifecycleEvent = "advance"
	EventComplete LifecycleEvent = "complete"
	EventCancel   LifecycleEvent = "cancel"
)

// LifecycleFacts are the externally loaded facts the guards need.
type LifecycleFacts struct {
	HasSchedule  bool
	ScheduleSize int
	OpenCycle    bool
}

// Transition applies event to a round in status from and returns the new
// status, or a *RuleError describing the failed guard.
func Transition(roundID uint, from RoundStatus, event LifecycleEvent, facts LifecycleFacts) (RoundStatus, error) {
	switch event {
	case EventStart:
		if from != StatusPlanned {
			return from, NewRuleError(ErrAlreadyStarted, roundID, from, "only a planned round can be started")
		}
		if !facts.HasSchedule {
			return from, NewRuleError(ErrNoSchedule, roundID, from, "create a rotation schedule before starting")
		}
		if facts.ScheduleSize == 0 {
			return from, NewRuleError(ErrEmptySchedule, roundID, from, "rotation schedule has no members")
		}
		return StatusActive, nil

	case EventAdvance, EventComplete:
		if from != StatusActive {
			return from, NewRuleError(ErrInvalidTransition, roundID, from, "%s requires an active round", event)
		}
		if facts.OpenCycle {
			return from, NewRuleError(ErrCycleInProgress, roundID, from, "finalize or cancel the open cycle first")
		}
		if event == EventComplete {
			return StatusCompleted, nil
		}
		return StatusActive, nil

	case EventCancel:
		if from != StatusPlanned && from != StatusActive {
			return from, NewRuleError(ErrInvalidTransition, roundID, from, "only planned or active rounds can be cancelled")
		}
		if facts.OpenCycle {
			return from, NewRuleError(ErrCycleInProgress, roundID, from, "finalize or cancel the open cycle first")
		}
		return StatusCancelled, nil
	}

	return from, NewRuleError(ErrInvalidTransition, roundID, from, "unknown event %q", event)
}

// CanDelete allows a hard delete only for rounds that never produced a cycle
// and are planned or cancelled.
func CanDelete(roundID uint, status RoundStatus, cycleCount int64) error {
	if cycleCount > 0 {
		return NewRuleError(ErrDeleteBlocked, roundID, status, "round already has %d cycle(s); archive it instead", cycleCount)
	}
	if status != StatusPlanned && status != StatusCancelled {
		return NewRuleError(ErrDeleteBlocked, roundID, status, "only planned or cancelled rounds can be deleted")
	}
	return nil
}

// CanEditRound guards round details, membership and deduction rule changes.
func CanEditRound(roundID uint, status RoundStatus) error {
	if status.IsTerminal() {
		return NewRuleError(ErrInvalidTransition, roundID, status, "round is closed")
	}
	return nil
}

// CanEditSchedule guards schedule creation and reordering.
func CanEditSchedule(roundID uint, status RoundStatus) error {
	if status.IsTerminal() {
		return NewRuleError(ErrInvalidTransition, roundID, status, "schedule of a closed round cannot change")
	}
	return nil
}

// CanDeleteSchedule only allows removing the schedule before the round starts.
func CanDeleteSchedule(roundID uint, status RoundStatus) error {
	if status != StatusPlanned {
		return NewRuleError(ErrInvalidTransition, roundID, status, "schedule can only be deleted while the round is planned")
	}
	return nil
}

// CanArchive only allows archiving closed rounds.
func CanArchive(roundID uint, status RoundStatus) error {
	if !status.IsTerminal() {
		return NewRuleError(ErrInvalidTransition, roundID, status, "only completed or cancelled rounds can be archived")
	}
	return nil
}
