package repositories

import (
	"context"
	"errors"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/core/domain"

	"gorm.io/gorm"
)

// MemberRepository is READ-ONLY access to the member directory table
type MemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// GetByMembNo gets a member by member number
func (r *MemberRepository) GetByMembNo(ctx context.Context, membNo string) (*domain.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("memb_no = ?", membNo).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return member.ToDomain(), nil
}

// Exists checks if a member exists in the directory
func (r *MemberRepository) Exists(ctx context.Context, membNo string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("memb_no = ?", membNo).
		Count(&count).Error
	return count > 0, err
}

// SectionRepository is READ-ONLY access to ledger sections
type SectionRepository struct {
	db *gorm.DB
}

// NewSectionRepository creates a new section repository
func NewSectionRepository(db *gorm.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// GetSection gets an active ledger section by ID
func (r *SectionRepository) GetSection(ctx context.Context, id uint) (*domain.Section, error) {
	var section models.LedgerSection
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&section).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return section.ToDomain(), nil
}
