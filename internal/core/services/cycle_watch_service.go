package services

import (
	"context"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/adapters/persistence/repositories"
	"spsc-cashround/internal/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Cycle watch: งวดที่เปิดค้างเกินกำหนด
// ============================================================

// CycleWatchService periodically reports cycles left open past their
// meeting date. It never changes state; officers finalize or cancel.
type CycleWatchService struct {
	store       *repositories.Store
	cron        *cron.Cron
	spec        string
	overdueDays int
	timeout     time.Duration
	now         func() time.Time
}

// NewCycleWatchService creates a new watch service
func NewCycleWatchService(store *repositories.Store, spec string, overdueDays int) *CycleWatchService {
	return &CycleWatchService{
		store:       store,
		cron:        cron.New(),
		spec:        spec,
		overdueDays: overdueDays,
		timeout:     time.Minute,
		now:         time.Now,
	}
}

// SetClock overrides the clock (tests)
func (s *CycleWatchService) SetClock(now func() time.Time) {
	s.now = now
}

// Start registers the check and starts the scheduler
func (s *CycleWatchService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return err
	}
	s.cron.Start()
	logger.Log.WithField("spec", s.spec).Info("🚀 CycleWatchService started")
	return nil
}

// Stop waits for a running check to finish
func (s *CycleWatchService) Stop() {
	<-s.cron.Stop().Done()
	logger.Log.Info("🛑 CycleWatchService stopped")
}

func (s *CycleWatchService) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.CheckOverdue(ctx); err != nil {
		logger.Log.WithError(err).Error("❌ Overdue cycle check failed")
	}
}

// CheckOverdue returns open cycles whose meeting date is more than
// overdueDays in the past.
func (s *CycleWatchService) CheckOverdue(ctx context.Context) ([]*models.Cycle, error) {
	cutoff := dateOnly(s.now()).AddDate(0, 0, -s.overdueDays)
	cycles, err := s.store.Repos().Cycles.ListOpenBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	for _, c := range cycles {
		logger.WithRound(c.RoundID).WithFields(logrus.Fields{
			"cycle_id":     c.ID,
			"sequence":     c.Sequence,
			"recipient":    c.RecipientMembNo,
			"meeting_date": c.MeetingDate.Format("2006-01-02"),
		}).Warn("⚠️ Cycle still open past its meeting date")
	}
	if len(cycles) > 0 {
		logger.Log.Warnf("⚠️ %d overdue open cycle(s)", len(cycles))
	}
	return cycles, nil
}
