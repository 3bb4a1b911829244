package repositories

import (
	"context"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/core/domain"

	"gorm.io/gorm"
)

// RoundRepository handles cash round data access
type RoundRepository struct {
	db *gorm.DB
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *gorm.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

// Create creates a new cash round
func (r *RoundRepository) Create(ctx context.Context, round *models.CashRound) error {
	return r.db.WithContext(ctx).Create(round).Error
}

// GetByID gets a cash round by ID
func (r *RoundRepository) GetByID(ctx context.Context, id uint) (*models.CashRound, error) {
	var round models.CashRound
	err := r.db.WithContext(ctx).First(&round, id).Error
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// GetForUpdate loads the round row and locks it until the transaction ends
func (r *RoundRepository) GetForUpdate(ctx context.Context, id uint) (*models.CashRound, error) {
	var round models.CashRound
	err := forUpdate(r.db.WithContext(ctx)).First(&round, id).Error
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// RoundFilter narrows List results
type RoundFilter struct {
	Status          domain.RoundStatus
	IncludeArchived bool
}

// List lists cash rounds with pagination
func (r *RoundRepository) List(ctx context.Context, filter RoundFilter, offset, limit int) ([]*models.CashRound, int64, error) {
	var rounds []*models.CashRound
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CashRound{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.IncludeArchived {
		query = query.Where("archived_at IS NULL")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rounds).Error

	return rounds, total, err
}

// ExistsByRoundNo checks if a round number is taken
func (r *RoundRepository) ExistsByRoundNo(ctx context.Context, roundNo string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CashRound{}).
		Where("round_no = ?", roundNo).
		Count(&count).Error
	return count > 0, err
}

// Update updates a cash round
func (r *RoundRepository) Update(ctx context.Context, round *models.CashRound) error {
	return r.db.WithContext(ctx).Save(round).Error
}

// DeleteCascade hard deletes a round with its schedule, memberships, rules
// and history. Callers must make sure no cycle exists.
func (r *RoundRepository) DeleteCascade(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	for _, m := range []any{
		&models.DeductionRule{},
		&models.CashRoundMember{},
		&models.RotationSchedule{},
		&models.RoundEvent{},
	} {
		if err := db.Where("round_id = ?", id).Delete(m).Error; err != nil {
			return err
		}
	}
	return db.Delete(&models.CashRound{}, id).Error
}

// RoundEventRepository handles round history data access
type RoundEventRepository struct {
	db *gorm.DB
}

// NewRoundEventRepository creates a new round event repository
func NewRoundEventRepository(db *gorm.DB) *RoundEventRepository {
	return &RoundEventRepository{db: db}
}

// Create creates a new history row
func (r *RoundEventRepository) Create(ctx context.Context, ev *models.RoundEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

// GetByRoundID gets round history, newest first
func (r *RoundEventRepository) GetByRoundID(ctx context.Context, roundID uint) ([]*models.RoundEvent, error) {
	var events []*models.RoundEvent
	err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&events).Error
	return events, err
}
