package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/NGeff/gld-rest-api/internal/models"
	"github.com/NGeff/gld-rest-api/internal/repository"
)

type sweepUserRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	failPlan map[uuid.UUID]bool // users whose UpdatePlan fails
}

func newSweepUserRepo() *sweepUserRepo {
	return &sweepUserRepo{
		users:    make(map[uuid.UUID]*models.User),
		failPlan: make(map[uuid.UUID]bool),
	}
}

func (m *sweepUserRepo) add(plan models.Plan, expiresIn time.Duration, now time.Time) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	expires := now.Add(expiresIn)
	u := &models.User{
		ID:            uuid.New(),
		Email:         uuid.NewString() + "@example.com",
		Plan:          plan,
		PlanExpiresAt: &expires,
	}
	m.users[u.ID] = u
	return u
}

func (m *sweepUserRepo) ListExpiring(ctx context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.users {
		if u.Plan != models.PlanFree && u.PlanExpiresAt != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *sweepUserRepo) UpdatePlan(ctx context.Context, id uuid.UUID, plan models.Plan, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPlan[id] {
		return errors.New("write failed")
	}
	u := m.users[id]
	u.Plan = plan
	u.PlanExpiresAt = expiresAt
	return nil
}

func (m *sweepUserRepo) ResetDailyCounters(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.RequestsToday > 0 {
			u.RequestsToday = 0
			u.LastRequestReset = now
			n++
		}
	}
	return n, nil
}

// Unused by the sweeper.
func (m *sweepUserRepo) Create(context.Context, *models.User) error { return nil }
func (m *sweepUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}
func (m *sweepUserRepo) GetByEmail(context.Context, string) (*models.User, error) { return nil, nil }
func (m *sweepUserRepo) GetByVerificationToken(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (m *sweepUserRepo) GetByResetToken(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (m *sweepUserRepo) Update(context.Context, *models.User) error            { return nil }
func (m *sweepUserRepo) SetSuspended(context.Context, uuid.UUID, bool) error   { return nil }
func (m *sweepUserRepo) Count(context.Context) (int64, error)                  { return 0, nil }
func (m *sweepUserRepo) CountByPlan(context.Context) (map[models.Plan]int64, error) {
	return nil, nil
}
func (m *sweepUserRepo) List(context.Context, repository.ListUsersQuery) ([]*models.User, int64, error) {
	return nil, 0, nil
}
func (m *sweepUserRepo) ConsumeDailyQuota(context.Context, uuid.UUID, int, time.Time) (repository.QuotaResult, error) {
	return repository.QuotaResult{}, nil
}

type sweepMailer struct {
	mu       sync.Mutex
	warnings map[string][]int // email -> days-left values
	expired  []string
}

func newSweepMailer() *sweepMailer {
	return &sweepMailer{warnings: make(map[string][]int)}
}

func (f *sweepMailer) SendVerification(context.Context, string, string, string) error  { return nil }
func (f *sweepMailer) SendPasswordReset(context.Context, string, string, string) error { return nil }
func (f *sweepMailer) SendPaymentConfirmation(context.Context, string, string, models.Plan) error {
	return nil
}

func (f *sweepMailer) SendPlanExpirationWarning(ctx context.Context, to, name string, plan models.Plan, daysLeft int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings[to] = append(f.warnings[to], daysLeft)
	return nil
}

func (f *sweepMailer) SendPlanExpired(ctx context.Context, to, name string, plan models.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, to)
	return nil
}

func (f *sweepMailer) SendTicketReply(context.Context, string, string, string, string, string) error {
	return nil
}

func (f *sweepMailer) SendTicketClosed(context.Context, string, string, string, string) error {
	return nil
}

func (f *sweepMailer) warningsFor(email string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.warnings[email]...)
}

func (f *sweepMailer) expiredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.expired)
}

func testSweeper(repo repository.UserRepository, mailer *sweepMailer) *Sweeper {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSweeper(repo, mailer, logger)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSweeper_WarnsAtThresholds(t *testing.T) {
	repo := newSweepUserRepo()
	mailer := newSweepMailer()
	now := time.Now()

	seven := repo.add(models.PlanPro, 7*24*time.Hour, now)
	three := repo.add(models.PlanBasic, 3*24*time.Hour, now)
	overOneDay := repo.add(models.PlanEnterprise, 25*time.Hour, now) // rounds up to 2 days
	oneExact := repo.add(models.PlanEnterprise, 24*time.Hour, now)
	five := repo.add(models.PlanPro, 5*24*time.Hour, now) // between thresholds, no mail

	s := testSweeper(repo, mailer)
	if err := s.CheckPlanExpirations(context.Background(), now); err != nil {
		t.Fatalf("CheckPlanExpirations() error = %v", err)
	}

	waitFor(t, func() bool {
		return len(mailer.warningsFor(seven.Email)) == 1 &&
			len(mailer.warningsFor(three.Email)) == 1 &&
			len(mailer.warningsFor(oneExact.Email)) == 1
	})

	if got := mailer.warningsFor(seven.Email); got[0] != 7 {
		t.Errorf("warning for 7-day account = %d, want 7", got[0])
	}
	if got := mailer.warningsFor(three.Email); got[0] != 3 {
		t.Errorf("warning for 3-day account = %d, want 3", got[0])
	}
	if got := mailer.warningsFor(oneExact.Email); got[0] != 1 {
		t.Errorf("warning for 1-day account = %d, want 1", got[0])
	}
	if len(mailer.warningsFor(five.Email)) != 0 {
		t.Error("accounts between thresholds must not be warned")
	}
	if len(mailer.warningsFor(overOneDay.Email)) != 0 {
		t.Error("25 hours remaining rounds to 2 days, no warning")
	}
}

func TestSweeper_DowngradesExpired(t *testing.T) {
	repo := newSweepUserRepo()
	mailer := newSweepMailer()
	now := time.Now()

	expired := repo.add(models.PlanPro, -time.Second, now)
	alive := repo.add(models.PlanBasic, 10*24*time.Hour, now)

	s := testSweeper(repo, mailer)
	if err := s.CheckPlanExpirations(context.Background(), now); err != nil {
		t.Fatalf("CheckPlanExpirations() error = %v", err)
	}

	got, _ := repo.GetByID(context.Background(), expired.ID)
	if got.Plan != models.PlanFree {
		t.Errorf("Plan = %v, want free", got.Plan)
	}
	if got.PlanExpiresAt != nil {
		t.Error("expiry timestamp must be cleared on downgrade")
	}

	kept, _ := repo.GetByID(context.Background(), alive.ID)
	if kept.Plan != models.PlanBasic {
		t.Errorf("unexpired account Plan = %v, want basic", kept.Plan)
	}

	waitFor(t, func() bool { return mailer.expiredCount() == 1 })
}

func TestSweeper_ContinuesPastFailures(t *testing.T) {
	repo := newSweepUserRepo()
	mailer := newSweepMailer()
	now := time.Now()

	broken := repo.add(models.PlanPro, -time.Hour, now)
	repo.failPlan[broken.ID] = true
	healthy := repo.add(models.PlanBasic, -time.Hour, now)

	s := testSweeper(repo, mailer)
	if err := s.CheckPlanExpirations(context.Background(), now); err != nil {
		t.Fatalf("a per-account failure must not abort the sweep: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), healthy.ID)
	if got.Plan != models.PlanFree {
		t.Error("accounts after a failing one must still be downgraded")
	}
}

func TestSweeper_ResetDailyCounters(t *testing.T) {
	repo := newSweepUserRepo()
	now := time.Now()

	busy := repo.add(models.PlanPro, 10*24*time.Hour, now)
	busy.RequestsToday = 123
	idle := repo.add(models.PlanBasic, 10*24*time.Hour, now)
	idle.RequestsToday = 0

	s := testSweeper(repo, newSweepMailer())
	if err := s.ResetDailyCounters(context.Background(), now); err != nil {
		t.Fatalf("ResetDailyCounters() error = %v", err)
	}

	got, _ := repo.GetByID(context.Background(), busy.ID)
	if got.RequestsToday != 0 {
		t.Errorf("RequestsToday = %d, want 0", got.RequestsToday)
	}
}
