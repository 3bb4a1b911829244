package repositories

import (
	"context"

	"spsc-cashround/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// ScheduleRepository handles rotation schedule data access
type ScheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create creates a rotation schedule
func (r *ScheduleRepository) Create(ctx context.Context, s *models.RotationSchedule) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetByRoundID gets the schedule of a round
func (r *ScheduleRepository) GetByRoundID(ctx context.Context, roundID uint) (*models.RotationSchedule, error) {
	var s models.RotationSchedule
	err := r.db.WithContext(ctx).Where("round_id = ?", roundID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update saves order, cursor and active flag
func (r *ScheduleRepository) Update(ctx context.Context, s *models.RotationSchedule) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// DeleteByRoundID removes the schedule of a round
func (r *ScheduleRepository) DeleteByRoundID(ctx context.Context, roundID uint) error {
	return r.db.WithContext(ctx).Where("round_id = ?", roundID).Delete(&models.RotationSchedule{}).Error
}
