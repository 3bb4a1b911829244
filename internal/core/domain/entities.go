package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role represents user role carried in the access token
type Role string

const (
	RoleUser    Role = "USER"
	RoleOfficer Role = "OFFICER"
	RoleAdmin   Role = "ADMIN"
)

// Actor identifies who triggered a state change (for round history)
type Actor struct {
	UserID    uint
	MembNo    string
	IPAddress string
}

// Member represents a member from the external member directory (read only)
type Member struct {
	MembNo     string
	FullName   string
	DeptName   string
	StatusDesc string
}

// Section is a ledger section whose amount backs a deduction rule
type Section struct {
	ID     uint
	Code   string
	Name   string
	Amount decimal.Decimal
}

// CollectionBatch is what gets handed to the collection recorder when a
// cycle is finalized. Reference is stable per cycle and serves as the
// idempotency key on the recorder side.
type CollectionBatch struct {
	Reference   string
	RoundID     uint
	CycleID     uint
	Recipient   string
	MeetingDate time.Time
	Lines       []DeductionLine
	Totals      map[string]decimal.Decimal
}
