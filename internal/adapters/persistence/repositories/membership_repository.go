package repositories

import (
	"context"

	"spsc-cashround/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// MembershipRepository handles cash round membership data access
type MembershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create adds a member to a round
func (r *MembershipRepository) Create(ctx context.Context, m *models.CashRoundMember) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// GetActive gets the active membership of a member in a round
func (r *MembershipRepository) GetActive(ctx context.Context, roundID uint, membNo string) (*models.CashRoundMember, error) {
	var m models.CashRoundMember
	err := r.db.WithContext(ctx).
		Where("round_id = ? AND memb_no = ? AND is_active = ?", roundID, membNo, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByRound lists memberships of a round in join order
func (r *MembershipRepository) ListByRound(ctx context.Context, roundID uint, activeOnly bool) ([]*models.CashRoundMember, error) {
	var members []*models.CashRoundMember
	query := r.db.WithContext(ctx).Where("round_id = ?", roundID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("joined_at ASC").Order("id ASC").Find(&members).Error
	return members, err
}

// ListActiveMembNos returns member numbers of the active members of a round
func (r *MembershipRepository) ListActiveMembNos(ctx context.Context, roundID uint) ([]string, error) {
	var membNos []string
	err := r.db.WithContext(ctx).
		Model(&models.CashRoundMember{}).
		Where("round_id = ? AND is_active = ?", roundID, true).
		Order("joined_at ASC").
		Order("id ASC").
		Pluck("memb_no", &membNos).Error
	return membNos, err
}

// Update saves a membership (used to mark it as left)
func (r *MembershipRepository) Update(ctx context.Context, m *models.CashRoundMember) error {
	return r.db.WithContext(ctx).Save(m).Error
}
