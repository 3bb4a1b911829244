package models

import (
	"fmt"
	"time"

	"spsc-cashround/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ============================================================
// Cash Round Tables
// ============================================================

// CashRound represents cash_rounds table
type CashRound struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	RoundNo         string             `gorm:"size:30;uniqueIndex;not null" json:"round_no"`
	Name            string             `gorm:"size:150;not null" json:"name"`
	WeeklyAmount    decimal.Decimal    `gorm:"type:decimal(15,2);not null" json:"weekly_amount"`
	StartDate       time.Time          `gorm:"not null" json:"start_date"`
	ExpectedEndDate *time.Time         `json:"expected_end_date"`
	ActualEndDate   *time.Time         `json:"actual_end_date"`
	Status          domain.RoundStatus `gorm:"size:20;not null;default:'PLANNED';index" json:"status"`
	Notes           string             `gorm:"type:text" json:"notes"`
	CreatedBy       uint               `json:"created_by"`
	ArchivedAt      *time.Time         `gorm:"index" json:"archived_at"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CashRound) TableName() string {
	return "cash_rounds"
}

// RotationSchedule represents rotation_schedules table (zero or one per round)
type RotationSchedule struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	RoundID         uint       `gorm:"uniqueIndex;not null" json:"round_id"`
	RotationOrder   MembNoList `gorm:"not null" json:"rotation_order"`
	CurrentPosition int        `gorm:"not null;default:0" json:"current_position"`
	IsActive        bool       `gorm:"default:true" json:"is_active"`
	StartDate       time.Time  `gorm:"not null" json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RotationSchedule) TableName() string {
	return "rotation_schedules"
}

// ToDomain converts the row into the rotation value object
func (s *RotationSchedule) ToDomain() *domain.RotationSchedule {
	return &domain.RotationSchedule{
		RoundID:   s.RoundID,
		Order:     append([]string(nil), s.RotationOrder...),
		Cursor:    s.CurrentPosition,
		IsActive:  s.IsActive,
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
	}
}

// Apply copies the mutable rotation state back onto the row
func (s *RotationSchedule) Apply(d *domain.RotationSchedule) {
	s.RotationOrder = append(MembNoList(nil), d.Order...)
	s.CurrentPosition = d.Cursor
	s.IsActive = d.IsActive
	s.EndDate = d.EndDate
}

// CashRoundMember represents cash_round_members table
type CashRoundMember struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RoundID      uint       `gorm:"not null;index:idx_round_member" json:"round_id"`
	MembNo       string     `gorm:"size:20;not null;index:idx_round_member" json:"memb_no"`
	PositionHint int        `gorm:"default:0" json:"position_hint"`
	IsActive     bool       `gorm:"default:true;index" json:"is_active"`
	JoinedAt     time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt       *time.Time `json:"left_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CashRoundMember) TableName() string {
	return "cash_round_members"
}

// DeductionRule represents deduction_rules table.
// Amount is a snapshot of the section amount and never changes.
type DeductionRule struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	RoundID       uint            `gorm:"not null;index" json:"round_id"`
	SectionID     uint            `gorm:"not null" json:"section_id"`
	SectionName   string          `gorm:"size:100" json:"section_name"`
	AppliesTo     string          `gorm:"size:20;not null" json:"applies_to"`
	TargetMembers MembNoList      `json:"target_members"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
	EffectiveFrom time.Time       `gorm:"not null" json:"effective_from"`
	DeactivatedAt *time.Time      `json:"deactivated_at"`
	CreatedBy     uint            `json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DeductionRule) TableName() string {
	return "deduction_rules"
}

// ToDomain converts the row into a domain rule
func (r *DeductionRule) ToDomain() (domain.DeductionRule, error) {
	target, err := domain.ParseTarget(r.AppliesTo, r.TargetMembers)
	if err != nil {
		return domain.DeductionRule{}, fmt.Errorf("deduction rule %d: %w", r.ID, err)
	}
	return domain.DeductionRule{
		ID:            r.ID,
		SectionID:     r.SectionID,
		SectionName:   r.SectionName,
		Target:        target,
		Amount:        r.Amount,
		IsActive:      r.IsActive,
		EffectiveFrom: r.EffectiveFrom,
	}, nil
}

// Cycle represents cycles table.
// OpenRoundID is set only while the cycle is open; its unique index keeps a
// round from ever having two open cycles.
type Cycle struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	RoundID            uint               `gorm:"not null;uniqueIndex:idx_cycle_round_seq" json:"round_id"`
	Sequence           int                `gorm:"not null;uniqueIndex:idx_cycle_round_seq" json:"sequence"`
	Position           int                `gorm:"not null" json:"position"`
	RecipientMembNo    string             `gorm:"size:20;not null" json:"recipient_memb_no"`
	ContributionAmount decimal.Decimal    `gorm:"type:decimal(15,2);not null" json:"contribution_amount"`
	MeetingDate        time.Time          `gorm:"not null;index" json:"meeting_date"`
	Status             domain.CycleStatus `gorm:"size:20;not null;default:'OPEN';index" json:"status"`
	Reference          string             `gorm:"size:36;uniqueIndex;not null" json:"reference"`
	OpenRoundID        *uint              `gorm:"uniqueIndex" json:"-"`
	Remark             string             `gorm:"type:text" json:"remark"`
	FinalizedAt        *time.Time         `json:"finalized_at"`
	CancelledAt        *time.Time         `json:"cancelled_at"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Deductions []CycleDeduction `gorm:"foreignKey:CycleID" json:"deductions,omitempty"`
}

func (Cycle) TableName() string {
	return "cycles"
}

// IsOpen reports whether the cycle still accepts finalize/cancel
func (c *Cycle) IsOpen() bool {
	return c.Status == domain.CycleOpen
}

// CycleDeduction represents cycle_deductions table: the audit lines of the
// deduction evaluation recorded when a cycle is finalized.
type CycleDeduction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CycleID   uint            `gorm:"not null;index" json:"cycle_id"`
	RuleID    uint            `gorm:"not null" json:"rule_id"`
	SectionID uint            `gorm:"not null" json:"section_id"`
	MembNo    string          `gorm:"size:20;not null" json:"memb_no"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (CycleDeduction) TableName() string {
	return "cycle_deductions"
}

// ToLine converts the audit row back to a domain line
func (d *CycleDeduction) ToLine() domain.DeductionLine {
	return domain.DeductionLine{
		RuleID:    d.RuleID,
		SectionID: d.SectionID,
		MembNo:    d.MembNo,
		Amount:    d.Amount,
	}
}

// RoundEvent ธุรกรรม/History ของวงเงิน
type RoundEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RoundID     uint      `gorm:"not null;index" json:"round_id"`
	EventType   string    `gorm:"size:50;not null" json:"event_type"`
	FromStatus  string    `gorm:"size:20" json:"from_status"`
	ToStatus    string    `gorm:"size:20" json:"to_status"`
	CycleID     *uint     `json:"cycle_id"`
	Description string    `gorm:"type:text" json:"description"`
	PerformedBy uint      `gorm:"not null" json:"performed_by"`
	IPAddress   string    `gorm:"size:50" json:"ip_address"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (RoundEvent) TableName() string {
	return "round_events"
}

// Round Event Types
const (
	EventTypeCreate          = "CREATE"
	EventTypeUpdate          = "UPDATE"
	EventTypeStatusChange    = "STATUS_CHANGE"
	EventTypeArchive         = "ARCHIVE"
	EventTypeMemberJoin      = "MEMBER_JOIN"
	EventTypeMemberLeave     = "MEMBER_LEAVE"
	EventTypeScheduleCreate  = "SCHEDULE_CREATE"
	EventTypeScheduleReorder = "SCHEDULE_REORDER"
	EventTypeScheduleDelete  = "SCHEDULE_DELETE"
	EventTypeRuleCreate      = "RULE_CREATE"
	EventTypeRuleDeactivate  = "RULE_DEACTIVATE"
	EventTypeCycleOpen       = "CYCLE_OPEN"
	EventTypeCycleFinalize   = "CYCLE_FINALIZE"
	EventTypeCycleCancel     = "CYCLE_CANCEL"
)

// ============================================================
// JSON list column
// ============================================================

// MembNoList is a JSON array of member numbers. It maps to JSON on MySQL and
// SQLite and JSONB on Postgres.
type MembNoList = datatypes.JSONSlice[string]
