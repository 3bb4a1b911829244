package repositories

import (
	"context"

	"spsc-cashround/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// DeductionRuleRepository handles deduction rule data access
type DeductionRuleRepository struct {
	db *gorm.DB
}

// NewDeductionRuleRepository creates a new deduction rule repository
func NewDeductionRuleRepository(db *gorm.DB) *DeductionRuleRepository {
	return &DeductionRuleRepository{db: db}
}

// Create creates a deduction rule
func (r *DeductionRuleRepository) Create(ctx context.Context, rule *models.DeductionRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// GetByID gets a deduction rule by ID
func (r *DeductionRuleRepository) GetByID(ctx context.Context, id uint) (*models.DeductionRule, error) {
	var rule models.DeductionRule
	err := r.db.WithContext(ctx).First(&rule, id).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListByRound lists rules of a round in creation order
func (r *DeductionRuleRepository) ListByRound(ctx context.Context, roundID uint, activeOnly bool) ([]*models.DeductionRule, error) {
	var rules []*models.DeductionRule
	query := r.db.WithContext(ctx).Where("round_id = ?", roundID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("id ASC").Find(&rules).Error
	return rules, err
}

// Update saves a deduction rule
func (r *DeductionRuleRepository) Update(ctx context.Context, rule *models.DeductionRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}
