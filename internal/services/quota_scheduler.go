package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"osgb/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// QuotaScheduler runs the periodic jobs: seeding the monthly visit plan and
// auditing overcommitted accounts.
type QuotaScheduler struct {
	db             *gorm.DB
	visits         *VisitService
	cron           *cron.Cron
	visitPlanSpec  string
	overcommitSpec string
	mu             sync.Mutex
	running        bool
	log            *logrus.Logger
	now            func() time.Time
}

func NewQuotaScheduler(db *gorm.DB, visits *VisitService, visitPlanSpec, overcommitSpec string) *QuotaScheduler {
	return &QuotaScheduler{
		db:             db,
		visits:         visits,
		cron:           cron.New(),
		visitPlanSpec:  visitPlanSpec,
		overcommitSpec: overcommitSpec,
		log:            logger.GetLogger(),
		now:            time.Now,
	}
}

// Start registers both jobs and starts the cron loop. The current month's
// plan is seeded once immediately.
func (s *QuotaScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("quota scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.visitPlanSpec, func() { s.RunVisitPlan(context.Background()) }); err != nil {
		return fmt.Errorf("invalid visit plan schedule %q: %w", s.visitPlanSpec, err)
	}
	if _, err := s.cron.AddFunc(s.overcommitSpec, func() { s.RunOvercommitAudit(context.Background()) }); err != nil {
		return fmt.Errorf("invalid overcommit schedule %q: %w", s.overcommitSpec, err)
	}

	s.cron.Start()
	s.running = true
	s.log.WithFields(logrus.Fields{
		"visit_plan": s.visitPlanSpec,
		"overcommit": s.overcommitSpec,
	}).Info("Quota scheduler started")

	go s.RunVisitPlan(context.Background())
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *QuotaScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("Quota scheduler stopped")
}

// RunVisitPlan seeds unvisited records for the current month.
func (s *QuotaScheduler) RunVisitPlan(ctx context.Context) int {
	month := s.now().Format(MonthLayout)
	created, err := s.visits.EnsureMonthPlan(ctx, month)
	if err != nil {
		s.log.WithError(err).WithField("month", month).Error("Visit plan job failed")
		return created
	}
	s.log.WithFields(logrus.Fields{"month": month, "created": created}).Info("Visit plan seeded")
	return created
}

// RunOvercommitAudit logs every account across tenants whose balance is
// negative.
func (s *QuotaScheduler) RunOvercommitAudit(ctx context.Context) []OvercommittedAccount {
	accounts, err := findOvercommitted(s.db.WithContext(ctx), nil)
	if err != nil {
		s.log.WithError(err).Error("Overcommit audit failed")
		return nil
	}
	for _, a := range accounts {
		s.log.WithFields(logrus.Fields{
			"tenant_id":        a.TenantID,
			"role":             a.Role,
			"personnel_id":     a.ID,
			"assigned_minutes": a.AssignedMinutes,
		}).Warn("Personnel account is overcommitted")
	}
	return accounts
}
