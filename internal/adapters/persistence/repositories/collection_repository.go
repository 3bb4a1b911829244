package repositories

import (
	"context"
	"sort"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CollectionRepository records finalized cycle deductions into
// collection_deductions. Writes are idempotent on (cycle_ref, memb_no).
type CollectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository creates a new collection repository
func NewCollectionRepository(db *gorm.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// RecordDeductions writes one row per member total of the batch
func (r *CollectionRepository) RecordDeductions(ctx context.Context, batch *domain.CollectionBatch) error {
	if len(batch.Totals) == 0 {
		return nil
	}

	membNos := make([]string, 0, len(batch.Totals))
	for m := range batch.Totals {
		membNos = append(membNos, m)
	}
	sort.Strings(membNos)

	rows := make([]models.CollectionDeduction, 0, len(membNos))
	for _, m := range membNos {
		rows = append(rows, models.CollectionDeduction{
			CycleRef:    batch.Reference,
			MembNo:      m,
			RoundID:     batch.RoundID,
			CycleID:     batch.CycleID,
			Recipient:   batch.Recipient,
			Amount:      batch.Totals[m],
			MeetingDate: batch.MeetingDate,
		})
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// ListByReference lists recorded rows of one cycle
func (r *CollectionRepository) ListByReference(ctx context.Context, ref string) ([]*models.CollectionDeduction, error) {
	var rows []*models.CollectionDeduction
	err := r.db.WithContext(ctx).
		Where("cycle_ref = ?", ref).
		Order("memb_no ASC").
		Find(&rows).Error
	return rows, err
}
