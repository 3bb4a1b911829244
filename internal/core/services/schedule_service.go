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

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ScheduleService manages the rotation schedule of a round
type ScheduleService struct {
	roundTx
}

// NewScheduleService creates a new schedule service
func NewScheduleService(store *repositories.Store, locker RoundLocker) *ScheduleService {
	return &ScheduleService{roundTx: newRoundTx(store, locker)}
}

// ScheduleInput represents create schedule input
type ScheduleInput struct {
	Order     []string
	StartDate *time.Time
}

// ReorderResult reports whether the cursor had to be reset
type ReorderResult struct {
	Schedule    *models.RotationSchedule `json:"schedule"`
	CursorReset bool                     `json:"cursor_reset"`
}

// RotationStatus is the read model of the rotation of a round
type RotationStatus struct {
	RoundID          uint               `json:"round_id"`
	Status           domain.RoundStatus `json:"status"`
	Position         int                `json:"position"`
	Size             int                `json:"size"`
	CurrentRecipient string             `json:"current_recipient"`
	NextRecipient    string             `json:"next_recipient"`
	Order            []string           `json:"order"`
	IsActive         bool               `json:"is_active"`
	OpenCycleID      *uint              `json:"open_cycle_id,omitempty"`
}

// Create creates the schedule of a round from an explicit order
func (s *ScheduleService) Create(ctx context.Context, roundID uint, input ScheduleInput, actor domain.Actor) (*models.RotationSchedule, error) {
	var created *models.RotationSchedule
	err := s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		if err := domain.CanEditSchedule(round.ID, round.Status); err != nil {
			return err
		}

		start := round.StartDate
		if input.StartDate != nil {
			start = dateOnly(*input.StartDate)
		}
		sched, err := s.create(ctx, r, round, input.Order, start, actor)
		created = sched
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(roundID).WithField("size", len(created.RotationOrder)).Info("✅ Rotation schedule created")
	return created, nil
}

func (s *ScheduleService) create(ctx context.Context, r *repositories.Repos, round *models.CashRound, order []string, start time.Time, actor domain.Actor) (*models.RotationSchedule, error) {
	_, err := r.Schedules.GetByRoundID(ctx, round.ID)
	switch {
	case err == nil:
		return nil, domain.NewRuleError(domain.ErrScheduleExists, round.ID, round.Status, "use reorder to change the rotation")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	active, err := r.Memberships.ListActiveMembNos(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	rotation, err := domain.NewRotationSchedule(round.ID, order, active, start)
	if err != nil {
		return nil, err
	}

	sched := &models.RotationSchedule{RoundID: round.ID, StartDate: start}
	sched.Apply(rotation)
	if err := r.Schedules.Create(ctx, sched); err != nil {
		return nil, err
	}

	desc := "สร้างลำดับผู้รับเงิน " + strings.Join(order, ", ")
	if err := record(ctx, r, round, models.EventTypeScheduleCreate, round.Status, nil, desc, actor); err != nil {
		return nil, err
	}
	return sched, nil
}

// Reorder replaces the rotation order. The cursor keeps its position unless
// it would fall outside the new order, in which case it resets to 0.
func (s *ScheduleService) Reorder(ctx context.Context, roundID uint, order []string, actor domain.Actor) (*ReorderResult, error) {
	var result *ReorderResult
	err := s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		if err := domain.CanEditSchedule(round.ID, round.Status); err != nil {
			return err
		}
		var err error
		result, err = s.reorder(ctx, r, round, order, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(roundID).WithFields(logrus.Fields{
		"size":         len(result.Schedule.RotationOrder),
		"cursor_reset": result.CursorReset,
	}).Info("✅ Rotation schedule reordered")
	return result, nil
}

func (s *ScheduleService) reorder(ctx context.Context, r *repositories.Repos, round *models.CashRound, order []string, actor domain.Actor) (*ReorderResult, error) {
	sched, err := loadSchedule(ctx, r, round)
	if err != nil {
		return nil, err
	}
	active, err := r.Memberships.ListActiveMembNos(ctx, round.ID)
	if err != nil {
		return nil, err
	}

	rotation := sched.ToDomain()
	reset, err := rotation.Reorder(order, active)
	if err != nil {
		return nil, err
	}
	sched.Apply(rotation)
	if err := r.Schedules.Update(ctx, sched); err != nil {
		return nil, err
	}

	desc := "เปลี่ยนลำดับผู้รับเงิน " + strings.Join(order, ", ")
	if err := record(ctx, r, round, models.EventTypeScheduleReorder, round.Status, nil, desc, actor); err != nil {
		return nil, err
	}
	return &ReorderResult{Schedule: sched, CursorReset: reset}, nil
}

// Seed builds the order from the members' position hints and join time,
// creating the schedule or reordering an existing one.
func (s *ScheduleService) Seed(ctx context.Context, roundID uint, actor domain.Actor) (*models.RotationSchedule, error) {
	var seeded *models.RotationSchedule
	err := s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		if err := domain.CanEditSchedule(round.ID, round.Status); err != nil {
			return err
		}

		members, err := r.Memberships.ListByRound(ctx, round.ID, true)
		if err != nil {
			return err
		}
		hints := make([]domain.PositionHint, 0, len(members))
		for _, m := range members {
			hints = append(hints, domain.PositionHint{MembNo: m.MembNo, Hint: m.PositionHint, JoinedAt: m.JoinedAt})
		}
		order := domain.SeedOrder(hints)
		if len(order) == 0 {
			return fmt.Errorf("%w: round has no active members", domain.ErrInvalidOrder)
		}

		_, err = r.Schedules.GetByRoundID(ctx, round.ID)
		switch {
		case err == nil:
			res, err := s.reorder(ctx, r, round, order, actor)
			if err != nil {
				return err
			}
			seeded = res.Schedule
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			seeded, err = s.create(ctx, r, round, order, round.StartDate, actor)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(roundID).WithField("order", seeded.RotationOrder).Info("🌱 Rotation schedule seeded")
	return seeded, nil
}

// Delete removes the schedule of a planned round
func (s *ScheduleService) Delete(ctx context.Context, roundID uint, actor domain.Actor) error {
	err := s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		if err := domain.CanDeleteSchedule(round.ID, round.Status); err != nil {
			return err
		}
		if _, err := loadSchedule(ctx, r, round); err != nil {
			return err
		}
		if err := r.Schedules.DeleteByRoundID(ctx, round.ID); err != nil {
			return err
		}
		return record(ctx, r, round, models.EventTypeScheduleDelete, round.Status, nil, "ลบลำดับผู้รับเงิน", actor)
	})
	if err != nil {
		return err
	}

	logger.WithRound(roundID).Info("🗑️ Rotation schedule deleted")
	return nil
}

// Get gets the schedule of a round
func (s *ScheduleService) Get(ctx context.Context, roundID uint) (*models.RotationSchedule, error) {
	round, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return loadSchedule(ctx, s.store.Repos(), round)
}

// Rotation reports where the rotation of a round stands
func (s *ScheduleService) Rotation(ctx context.Context, roundID uint) (*RotationStatus, error) {
	round, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	r := s.store.Repos()
	sched, err := loadSchedule(ctx, r, round)
	if err != nil {
		return nil, err
	}

	rotation := sched.ToDomain()
	status := &RotationStatus{
		RoundID:  round.ID,
		Status:   round.Status,
		Position: rotation.Cursor,
		Size:     rotation.Size(),
		Order:    rotation.Order,
		IsActive: rotation.IsActive,
	}
	if current, err := rotation.CurrentRecipient(); err == nil {
		status.CurrentRecipient = current
	}
	if next, err := rotation.NextRecipient(); err == nil {
		status.NextRecipient = next
	}

	open, err := r.Cycles.GetOpenByRound(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		status.OpenCycleID = &open.ID
	}
	return status, nil
}
