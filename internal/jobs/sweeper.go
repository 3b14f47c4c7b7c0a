// Package jobs runs the scheduled plan lifecycle and daily reset sweeps.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/NGeff/gld-rest-api/internal/email"
	"github.com/NGeff/gld-rest-api/internal/models"
	"github.com/NGeff/gld-rest-api/internal/pkg/civil"
	"github.com/NGeff/gld-rest-api/internal/pkg/metrics"
	"github.com/NGeff/gld-rest-api/internal/repository"
)

const (
	// expirationSchedule runs the plan lifecycle sweep every six hours.
	expirationSchedule = "0 */6 * * *"

	// resetSchedule runs the daily counter reset at midnight in the
	// billing timezone.
	resetSchedule = "0 0 * * *"

	sweepTimeout = 5 * time.Minute
)

// Sweeper owns the cron scheduler and the two recurring sweeps.
type Sweeper struct {
	userRepo repository.UserRepository
	mailer   email.Service
	logger   *slog.Logger
	cron     *cron.Cron

	// now is injectable for deadline arithmetic tests.
	now func() time.Time
}

// NewSweeper creates a sweeper. Schedules are interpreted in the billing
// timezone so the reset fires at the same civil midnight the quota ledger
// rolls over on.
func NewSweeper(userRepo repository.UserRepository, mailer email.Service, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		userRepo: userRepo,
		mailer:   mailer,
		logger:   logger,
		cron:     cron.New(cron.WithLocation(civil.Location)),
		now:      time.Now,
	}
}

// Start registers both sweeps and starts the scheduler. The expiration sweep
// also runs once immediately so a long-stopped instance catches up on missed
// downgrades at boot.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(expirationSchedule, s.runExpirationSweep); err != nil {
		return fmt.Errorf("failed to schedule expiration sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(resetSchedule, s.runDailyReset); err != nil {
		return fmt.Errorf("failed to schedule daily reset: %w", err)
	}

	s.cron.Start()
	go s.runExpirationSweep()

	s.logger.Info("sweeper started",
		"expiration_schedule", expirationSchedule,
		"reset_schedule", resetSchedule,
		"timezone", civil.Timezone)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) runExpirationSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.CheckPlanExpirations(ctx, s.now()); err != nil {
		metrics.SweepRuns.WithLabelValues("plan_expiration", "error").Inc()
		s.logger.Error("plan expiration sweep failed", "error", err)
		return
	}
	metrics.SweepRuns.WithLabelValues("plan_expiration", "ok").Inc()
}

func (s *Sweeper) runDailyReset() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.ResetDailyCounters(ctx, s.now()); err != nil {
		metrics.SweepRuns.WithLabelValues("daily_reset", "error").Inc()
		s.logger.Error("daily reset sweep failed", "error", err)
		return
	}
	metrics.SweepRuns.WithLabelValues("daily_reset", "ok").Inc()
}

// CheckPlanExpirations walks every paid account with an expiry: accounts at
// 7, 3, or 1 whole days remaining get a warning email, lapsed accounts are
// downgraded to free. A failure on one account is logged and the sweep
// continues with the rest.
func (s *Sweeper) CheckPlanExpirations(ctx context.Context, now time.Time) error {
	users, err := s.userRepo.ListExpiring(ctx)
	if err != nil {
		return fmt.Errorf("failed to list expiring accounts: %w", err)
	}

	var warned, downgraded int
	for _, user := range users {
		if user.PlanExpiresAt == nil {
			continue
		}

		daysLeft := civil.DaysUntil(*user.PlanExpiresAt, now)
		switch {
		case daysLeft <= 0:
			if err := s.downgrade(ctx, user); err != nil {
				s.logger.Error("failed to downgrade expired plan",
					"user_id", user.ID, "plan", user.Plan, "error", err)
				continue
			}
			downgraded++
		case daysLeft == 7 || daysLeft == 3 || daysLeft == 1:
			s.sendWarning(user, daysLeft)
			warned++
		}
	}

	s.logger.Info("plan expiration sweep finished",
		"accounts", len(users), "warned", warned, "downgraded", downgraded)
	return nil
}

func (s *Sweeper) downgrade(ctx context.Context, user *models.User) error {
	fromPlan := user.Plan
	if err := s.userRepo.UpdatePlan(ctx, user.ID, models.PlanFree, nil); err != nil {
		return err
	}

	metrics.PlanDowngrades.WithLabelValues(string(fromPlan)).Inc()
	s.logger.Info("plan expired, downgraded to free",
		"user_id", user.ID, "from_plan", fromPlan)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.mailer.SendPlanExpired(ctx, user.Email, user.Name, fromPlan); err != nil {
			s.logger.Error("failed to send expiration email",
				"user_id", user.ID, "error", err)
		}
	}()
	return nil
}

func (s *Sweeper) sendWarning(user *models.User, daysLeft int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.mailer.SendPlanExpirationWarning(ctx, user.Email, user.Name, user.Plan, daysLeft); err != nil {
			s.logger.Error("failed to send expiration warning",
				"user_id", user.ID, "days_left", daysLeft, "error", err)
		}
	}()
}

// ResetDailyCounters bulk-zeroes every account's daily counter. The quota
// ledger's own rollover check makes this safe to miss or repeat; the sweep
// exists so usage numbers read fresh at the start of each civil day.
func (s *Sweeper) ResetDailyCounters(ctx context.Context, now time.Time) error {
	reset, err := s.userRepo.ResetDailyCounters(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to reset counters: %w", err)
	}
	s.logger.Info("daily counters reset", "accounts", reset)
	return nil
}
