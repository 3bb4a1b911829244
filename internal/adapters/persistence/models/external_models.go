package models

import (
	"time"

	"spsc-cashround/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// External Tables (member directory / ledger / collections)
// ============================================================

// Member represents the member directory table (Read Only!)
type Member struct {
	MembNo     string `gorm:"column:memb_no;primaryKey;size:20" json:"memb_no"`
	FullName   string `gorm:"column:full_name;size:150" json:"full_name"`
	DeptName   string `gorm:"column:dept_name;size:150" json:"dept_name"`
	StatusDesc string `gorm:"column:status_desc;size:50" json:"status_desc"`
}

func (Member) TableName() string {
	return "members"
}

func (m *Member) ToDomain() *domain.Member {
	return &domain.Member{
		MembNo:     m.MembNo,
		FullName:   m.FullName,
		DeptName:   m.DeptName,
		StatusDesc: m.StatusDesc,
	}
}

// LedgerSection represents ledger_sections table (Read Only!)
type LedgerSection struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	Code     string          `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Name     string          `gorm:"size:100;not null" json:"name"`
	Amount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	IsActive bool            `gorm:"default:true" json:"is_active"`
}

func (LedgerSection) TableName() string {
	return "ledger_sections"
}

func (s *LedgerSection) ToDomain() *domain.Section {
	return &domain.Section{
		ID:     s.ID,
		Code:   s.Code,
		Name:   s.Name,
		Amount: s.Amount,
	}
}

// CollectionDeduction represents collection_deductions table, the hand-off
// point to the collection recorder. (cycle_ref, memb_no) is unique so a
// replayed batch is a no-op.
type CollectionDeduction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CycleRef    string          `gorm:"size:36;not null;uniqueIndex:idx_collection_ref_member" json:"cycle_ref"`
	MembNo      string          `gorm:"size:20;not null;uniqueIndex:idx_collection_ref_member" json:"memb_no"`
	RoundID     uint            `gorm:"not null;index" json:"round_id"`
	CycleID     uint            `gorm:"not null" json:"cycle_id"`
	Recipient   string          `gorm:"size:20;not null" json:"recipient"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	MeetingDate time.Time       `gorm:"not null" json:"meeting_date"`
	RecordedAt  time.Time       `gorm:"autoCreateTime" json:"recorded_at"`
}

func (CollectionDeduction) TableName() string {
	return "collection_deductions"
}
