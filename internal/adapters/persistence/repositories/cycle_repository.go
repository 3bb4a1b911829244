package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CycleRepository handles collection cycle data access
type CycleRepository struct {
	db *gorm.DB
}

// NewCycleRepository creates a new cycle repository
func NewCycleRepository(db *gorm.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

// Create creates a cycle
func (r *CycleRepository) Create(ctx context.Context, c *models.Cycle) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

// GetByID gets a cycle by ID without its deduction lines
func (r *CycleRepository) GetByID(ctx context.Context, id uint) (*models.Cycle, error) {
	var c models.Cycle
	err := r.db.WithContext(ctx).First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetWithDeductions gets a cycle with its recorded deduction lines
func (r *CycleRepository) GetWithDeductions(ctx context.Context, id uint) (*models.Cycle, error) {
	var c models.Cycle
	err := r.db.WithContext(ctx).
		Preload("Deductions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOpenByRound returns the open cycle of a round, or nil when none is open
func (r *CycleRepository) GetOpenByRound(ctx context.Context, roundID uint) (*models.Cycle, error) {
	var c models.Cycle
	err := r.db.WithContext(ctx).
		Where("round_id = ? AND status = ?", roundID, domain.CycleOpen).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// NextSequence returns the sequence number for the next cycle of a round
func (r *CycleRepository) NextSequence(ctx context.Context, roundID uint) (int, error) {
	var maxSeq sql.NullInt64
	err := r.db.WithContext(ctx).
		Model(&models.Cycle{}).
		Where("round_id = ?", roundID).
		Select("MAX(sequence)").
		Row().
		Scan(&maxSeq)
	if err != nil {
		return 0, err
	}
	return int(maxSeq.Int64) + 1, nil
}

// CountByRound counts every cycle ever created for a round
func (r *CycleRepository) CountByRound(ctx context.Context, roundID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Cycle{}).
		Where("round_id = ?", roundID).
		Count(&count).Error
	return count, err
}

// ListByRound lists cycles of a round by sequence, latest first unless
// ascending is set
func (r *CycleRepository) ListByRound(ctx context.Context, roundID uint, offset, limit int, ascending bool) ([]*models.Cycle, int64, error) {
	var cycles []*models.Cycle
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Cycle{}).Where("round_id = ?", roundID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "sequence DESC"
	if ascending {
		order = "sequence ASC"
	}

	err := query.
		Order(order).
		Offset(offset).
		Limit(limit).
		Find(&cycles).Error

	return cycles, total, err
}

// ListOpenBefore lists open cycles whose meeting date is before the cutoff
func (r *CycleRepository) ListOpenBefore(ctx context.Context, cutoff time.Time) ([]*models.Cycle, error) {
	var cycles []*models.Cycle
	err := r.db.WithContext(ctx).
		Where("status = ? AND meeting_date < ?", domain.CycleOpen, cutoff).
		Order("meeting_date ASC").
		Find(&cycles).Error
	return cycles, err
}

// Update saves the cycle row only
func (r *CycleRepository) Update(ctx context.Context, c *models.Cycle) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error
}

// CreateDeductions stores the audit lines of a finalized cycle
func (r *CycleRepository) CreateDeductions(ctx context.Context, lines []models.CycleDeduction) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}
