package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/adapters/persistence/repositories"
	"spsc-cashround/internal/core/domain"
	"spsc-cashround/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RoundService handles cash round business logic
type RoundService struct {
	roundTx
	directory MemberDirectory
}

// NewRoundService creates a new round service
func NewRoundService(store *repositories.Store, locker RoundLocker, directory MemberDirectory) *RoundService {
	return &RoundService{
		roundTx:   newRoundTx(store, locker),
		directory: directory,
	}
}

// MemberInput represents one member joining a round
type MemberInput struct {
	MembNo       string `json:"memb_no" validate:"required,max=20"`
	PositionHint int    `json:"position_hint" validate:"gte=0"`
}

// CreateRoundInput represents create round input
type CreateRoundInput struct {
	RoundNo         string
	Name            string
	WeeklyAmount    decimal.Decimal
	StartDate       time.Time
	ExpectedEndDate *time.Time
	Notes           string
	Members         []MemberInput
}

// UpdateRoundInput represents update round input. Nil fields are left as is.
type UpdateRoundInput struct {
	Name            *string
	WeeklyAmount    *decimal.Decimal
	StartDate       *time.Time
	ExpectedEndDate *time.Time
	Notes           *string
}

// ListRoundsInput represents list filters
type ListRoundsInput struct {
	Status          string
	IncludeArchived bool
	Offset          int
	Limit           int
}

// Create creates a planned round with its initial members
func (s *RoundService) Create(ctx context.Context, input CreateRoundInput, actor domain.Actor) (*models.CashRound, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if !input.WeeklyAmount.IsPositive() {
		return nil, fmt.Errorf("%w: weekly amount must be greater than zero", domain.ErrInvalidInput)
	}
	if input.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", domain.ErrInvalidInput)
	}
	start := dateOnly(input.StartDate)
	if input.ExpectedEndDate != nil && dateOnly(*input.ExpectedEndDate).Before(start) {
		return nil, fmt.Errorf("%w: expected end date is before start date", domain.ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(input.Members))
	for _, m := range input.Members {
		if _, dup := seen[m.MembNo]; dup {
			return nil, fmt.Errorf("%w: member %s listed twice", domain.ErrInvalidInput, m.MembNo)
		}
		seen[m.MembNo] = struct{}{}
		if err := s.checkMember(ctx, m.MembNo); err != nil {
			return nil, err
		}
	}

	now := s.now()
	roundNo := strings.TrimSpace(input.RoundNo)
	if roundNo == "" {
		roundNo = generateRoundNo(now)
	}

	round := &models.CashRound{
		RoundNo:      roundNo,
		Name:         name,
		WeeklyAmount: input.WeeklyAmount,
		StartDate:    start,
		Status:       domain.StatusPlanned,
		Notes:        input.Notes,
		CreatedBy:    actor.UserID,
	}
	if input.ExpectedEndDate != nil {
		end := dateOnly(*input.ExpectedEndDate)
		round.ExpectedEndDate = &end
	}

	err := s.store.Transaction(ctx, func(r *repositories.Repos) error {
		exists, err := r.Rounds.ExistsByRoundNo(ctx, roundNo)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: round number %s already used", domain.ErrInvalidInput, roundNo)
		}

		if err := r.Rounds.Create(ctx, round); err != nil {
			return err
		}
		for _, m := range input.Members {
			if err := r.Memberships.Create(ctx, &models.CashRoundMember{
				RoundID:      round.ID,
				MembNo:       m.MembNo,
				PositionHint: m.PositionHint,
				IsActive:     true,
				JoinedAt:     now,
			}); err != nil {
				return err
			}
		}

		desc := fmt.Sprintf("สร้างวง %s สมาชิก %d คน", round.Name, len(input.Members))
		return record(ctx, r, round, models.EventTypeCreate, "", nil, desc, actor)
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(round.ID).WithFields(logrus.Fields{
		"round_no": round.RoundNo,
		"members":  len(input.Members),
	}).Info("✅ Cash round created")
	return round, nil
}

// Get gets a round by ID
func (s *RoundService) Get(ctx context.Context, id uint) (*models.CashRound, error) {
	return s.getRound(ctx, id)
}

// List lists rounds with pagination
func (s *RoundService) List(ctx context.Context, input ListRoundsInput) ([]*models.CashRound, int64, error) {
	filter := repositories.RoundFilter{IncludeArchived: input.IncludeArchived}
	if input.Status != "" {
		st, err := domain.ParseRoundStatus(input.Status)
		if err != nil {
			return nil, 0, err
		}
		filter.Status = st
	}
	return s.store.Repos().Rounds.List(ctx, filter, input.Offset, input.Limit)
}

// Update edits round details. Weekly amount changes only affect cycles opened
// afterwards; the start date is fixed once the round has started.
func (s *RoundService) Update(ctx context.Context, id uint, input UpdateRoundInput, actor domain.Actor) (*models.CashRound, error) {
	var updated *models.CashRound
	err := s.mutate(ctx, id, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		if err := domain.CanEditRound(round.ID, round.Status); err != nil {
			return err
		}

		var changes []string
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
			}
			round.Name = name
			changes = append(changes, "name")
		}
		if input.WeeklyAmount != nil {
			if !input.WeeklyAmount.IsPositive() {
				return fmt.Errorf("%w: weekly amount must be greater than zero", domain.ErrInvalidInput)
			}
			round.WeeklyAmount = *input.WeeklyAmount
			changes = append(changes, "weekly_amount")
		}
		if input.StartDate != nil {
			if round.Status != domain.StatusPlanned {
				return domain.NewRuleError(domain.ErrInvalidTransition, round.ID, round.Status, "start date cannot change after the round started")
			}
			round.StartDate = dateOnly(*input.StartDate)
			changes = append(changes, "start_date")
		}
		if input.ExpectedEndDate != nil {
			end := dateOnly(*input.ExpectedEndDate)
			round.ExpectedEndDate = &end
			changes = append(changes, "expected_end_date")
		}
		if input.Notes != nil {
			round.Notes = *input.Notes
			changes = append(changes, "notes")
		}
		if round.ExpectedEndDate != nil && round.ExpectedEndDate.Before(round.StartDate) {
			return fmt.Errorf("%w: expected end date is before start date", domain.ErrInvalidInput)
		}
		if len(changes) == 0 {
			updated = round
			return nil
		}

		if err := r.Rounds.Update(ctx, round); err != nil {
			return err
		}
		updated = round
		return record(ctx, r, round, models.EventTypeUpdate, round.Status, nil, "แก้ไข "+strings.Join(changes, ", "), actor)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete hard deletes a round that never produced a cycle
func (s *RoundService) Delete(ctx context.Context, id uint, actor domain.Actor) error {
	err := s.mutate(ctx, id, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		count, err := r.Cycles.CountByRound(ctx, round.ID)
		if err != nil {
			return err
		}
		if err := domain.CanDelete(round.ID, round.Status, count); err != nil {
			return err
		}
		return r.Rounds.DeleteCascade(ctx, round.ID)
	})
	if err != nil {
		return err
	}

	logger.WithRound(id).WithField("performed_by", actor.UserID).Info("🗑️ Cash round deleted")
	return nil
}

// Archive hides a closed round from default listings
func (s *RoundService) Archive(ctx context.Context, id uint, actor domain.Actor) (*models.CashRound, error) {
	var archived *models.CashRound
	err := s.mutate(ctx, id, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		if err := domain.CanArchive(round.ID, round.Status); err != nil {
			return err
		}
		archived = round
		if round.ArchivedAt != nil {
			return nil
		}

		now := s.now()
		round.ArchivedAt = &now
		if err := r.Rounds.Update(ctx, round); err != nil {
			return err
		}
		return record(ctx, r, round, models.EventTypeArchive, round.Status, nil, "เก็บเข้าคลัง", actor)
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

// AddMember adds an active member. When a schedule exists the member is
// appended at the end of the rotation.
func (s *RoundService) AddMember(ctx context.Context, roundID uint, input MemberInput, actor domain.Actor) (*models.CashRoundMember, error) {
	if err := s.checkMember(ctx, input.MembNo); err != nil {
		return nil, err
	}

	var member *models.CashRoundMember
	err := s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		if err := domain.CanEditRound(round.ID, round.Status); err != nil {
			return err
		}

		_, err := r.Memberships.GetActive(ctx, round.ID, input.MembNo)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", domain.ErrMemberAlreadyActive, input.MembNo)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		member = &models.CashRoundMember{
			RoundID:      round.ID,
			MembNo:       input.MembNo,
			PositionHint: input.PositionHint,
			IsActive:     true,
			JoinedAt:     s.now(),
		}
		if err := r.Memberships.Create(ctx, member); err != nil {
			return err
		}

		sched, err := r.Schedules.GetByRoundID(ctx, round.ID)
		switch {
		case err == nil:
			rotation := sched.ToDomain()
			if err := rotation.AppendMember(input.MembNo); err != nil {
				return err
			}
			sched.Apply(rotation)
			if err := r.Schedules.Update(ctx, sched); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return record(ctx, r, round, models.EventTypeMemberJoin, round.Status, nil, "เพิ่มสมาชิก "+input.MembNo, actor)
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(roundID).WithField("memb_no", input.MembNo).Info("✅ Member joined")
	return member, nil
}

// RemoveMember deactivates a member and drops them from the rotation. The
// recipient of the open cycle cannot leave until that cycle is closed.
func (s *RoundService) RemoveMember(ctx context.Context, roundID uint, membNo string, actor domain.Actor) error {
	err := s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		if err := domain.CanEditRound(round.ID, round.Status); err != nil {
			return err
		}

		member, err := r.Memberships.GetActive(ctx, round.ID, membNo)
		if err != nil {
			return notFound(err, domain.ErrMemberNotInRound)
		}

		open, err := r.Cycles.GetOpenByRound(ctx, round.ID)
		if err != nil {
			return err
		}
		if open != nil && open.RecipientMembNo == membNo {
			return domain.NewRuleError(domain.ErrCycleInProgress, round.ID, round.Status, "member %s receives the open cycle %d", membNo, open.ID)
		}

		sched, err := r.Schedules.GetByRoundID(ctx, round.ID)
		switch {
		case err == nil:
			rotation := sched.ToDomain()
			if err := rotation.RemoveMember(membNo); err != nil {
				return domain.NewRuleError(err, round.ID, round.Status, "cannot remove %s from the rotation", membNo)
			}
			sched.Apply(rotation)
			if err := r.Schedules.Update(ctx, sched); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		now := s.now()
		member.IsActive = false
		member.LeftAt = &now
		if err := r.Memberships.Update(ctx, member); err != nil {
			return err
		}

		return record(ctx, r, round, models.EventTypeMemberLeave, round.Status, nil, "สมาชิกออก "+membNo, actor)
	})
	if err != nil {
		return err
	}

	logger.WithRound(roundID).WithField("memb_no", membNo).Info("✅ Member left")
	return nil
}

// ListMembers lists members of a round
func (s *RoundService) ListMembers(ctx context.Context, roundID uint, activeOnly bool) ([]*models.CashRoundMember, error) {
	if _, err := s.getRound(ctx, roundID); err != nil {
		return nil, err
	}
	return s.store.Repos().Memberships.ListByRound(ctx, roundID, activeOnly)
}

// History gets the event history of a round, latest first
func (s *RoundService) History(ctx context.Context, roundID uint) ([]*models.RoundEvent, error) {
	if _, err := s.getRound(ctx, roundID); err != nil {
		return nil, err
	}
	return s.store.Repos().Events.GetByRoundID(ctx, roundID)
}

func (s *RoundService) checkMember(ctx context.Context, membNo string) error {
	if strings.TrimSpace(membNo) == "" {
		return fmt.Errorf("%w: member number is required", domain.ErrInvalidInput)
	}
	ok, err := s.directory.Exists(ctx, membNo)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrMemberNotFound, membNo)
	}
	return nil
}

// generateRoundNo builds CR<yyyymm>-<8 hex>
func generateRoundNo(now time.Time) string {
	return fmt.Sprintf("CR%s-%s", now.Format("200601"), strings.ToUpper(uuid.NewString()[:8]))
}
