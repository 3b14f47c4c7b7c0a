package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NGeff/gld-rest-api/internal/mercadopago"
	"github.com/NGeff/gld-rest-api/internal/models"
	"github.com/NGeff/gld-rest-api/internal/pkg/civil"
	"github.com/NGeff/gld-rest-api/internal/repository"
)

// --- Mock Repositories ---

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (m *mockUserRepo) add(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return u
}

func (m *mockUserRepo) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.add(user)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ResetPasswordToken != nil && *u.ResetPasswordToken == token {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdatePlan(ctx context.Context, id uuid.UUID, plan models.Plan, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.Plan = plan
	u.PlanExpiresAt = expiresAt
	return nil
}

func (m *mockUserRepo) SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.IsSuspended = suspended
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, q repository.ListUsersQuery) ([]*models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (m *mockUserRepo) ListExpiring(ctx context.Context) ([]*models.User, error) {
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

func (m *mockUserRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *mockUserRepo) CountByPlan(ctx context.Context) (map[models.Plan]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[models.Plan]int64)
	for _, u := range m.users {
		out[u.Plan]++
	}
	return out, nil
}

// ConsumeDailyQuota mirrors the conditional-update contract: rollover check,
// ceiling check, and increment happen under one lock.
func (m *mockUserRepo) ConsumeDailyQuota(ctx context.Context, id uuid.UUID, limit int, now time.Time) (repository.QuotaResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return repository.QuotaResult{}, errors.New("user not found")
	}

	if !civil.SameDay(u.LastRequestReset, now) {
		u.RequestsToday = 1
		u.LastRequestReset = now
		return repository.QuotaResult{Admitted: true, Used: 1, Limit: limit}, nil
	}
	if u.RequestsToday < limit {
		u.RequestsToday++
		return repository.QuotaResult{Admitted: true, Used: u.RequestsToday, Limit: limit}, nil
	}
	return repository.QuotaResult{Admitted: false, Used: u.RequestsToday, Limit: limit}, nil
}

func (m *mockUserRepo) ResetDailyCounters(ctx context.Context, now time.Time) (int64, error) {
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

type mockAPIKeyRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*models.APIKey
}

func newMockAPIKeyRepo() *mockAPIKeyRepo {
	return &mockAPIKeyRepo{keys: make(map[uuid.UUID]*models.APIKey)}
}

func (m *mockAPIKeyRepo) Create(ctx context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	key.CreatedAt = time.Now()
	m.keys[key.ID] = key
	return nil
}

func (m *mockAPIKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[id], nil
}

func (m *mockAPIKeyRepo) GetActiveByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyHash == keyHash && k.IsActive {
			return k, nil
		}
	}
	return nil, nil
}

func (m *mockAPIKeyRepo) ExistsByHash(ctx context.Context, keyHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyHash == keyHash {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAPIKeyRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.APIKey
	for _, k := range m.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *mockAPIKeyRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	keys, _ := m.ListByUser(ctx, userID)
	return len(keys), nil
}

func (m *mockAPIKeyRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return errors.New("key not found")
	}
	k.IsActive = active
	return nil
}

func (m *mockAPIKeyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, id)
	return nil
}

func (m *mockAPIKeyRepo) RecordUsage(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[id]; ok {
		k.RequestCount++
		k.LastUsed = &at
	}
	return nil
}

type mockLogRepo struct {
	mu        sync.Mutex
	entries   []*models.RequestLog
	failing   bool
	lastSince time.Time
}

func (m *mockLogRepo) Create(ctx context.Context, entry *models.RequestLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("log store unavailable")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockLogRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.RequestLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RequestLog
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockLogRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSince = since
	return int64(len(m.entries)), nil
}

func (m *mockLogRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[uuid.UUID]*models.Payment)}
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now()
	m.payments[payment.ID] = payment
	return nil
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id], nil
}

func (m *mockPaymentRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	return p, nil
}

func (m *mockPaymentRepo) FindLivePending(ctx context.Context, userID uuid.UUID, plan models.Plan, now time.Time) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var newest *models.Payment
	for _, p := range m.payments {
		if p.UserID == userID && p.Plan == plan && p.IsLive(now) {
			if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
				newest = p
			}
		}
	}
	return newest, nil
}

func (m *mockPaymentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) ListAll(ctx context.Context, page, limit int) ([]*models.Payment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Payment
	for _, p := range m.payments {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (m *mockPaymentRepo) MarkApproved(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return errors.New("payment not found")
	}
	if p.Status != models.PaymentPending {
		return nil
	}
	p.Status = models.PaymentApproved
	p.PaidAt = &paidAt
	return nil
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return errors.New("payment not found")
	}
	p.Status = status
	return nil
}

type mockTicketRepo struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]*models.Ticket
}

func newMockTicketRepo() *mockTicketRepo {
	return &mockTicketRepo{tickets: make(map[uuid.UUID]*models.Ticket)}
}

func (m *mockTicketRepo) Create(ctx context.Context, ticket *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketOpen
	}
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	for i := range ticket.Messages {
		msg := &ticket.Messages[i]
		if msg.ID == uuid.Nil {
			msg.ID = uuid.New()
		}
		msg.TicketID = ticket.ID
		msg.CreatedAt = ticket.CreatedAt
	}
	m.tickets[ticket.ID] = ticket
	return nil
}

// copyTicket returns a detached snapshot, like a DB-backed repository would.
func copyTicket(t *models.Ticket) *models.Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.Messages = append([]models.TicketMessage(nil), t.Messages...)
	return &out
}

func (m *mockTicketRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyTicket(m.tickets[id]), nil
}

func (m *mockTicketRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	return copyTicket(t), nil
}

func (m *mockTicketRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ticket
	for _, t := range m.tickets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTicketRepo) ListAll(ctx context.Context, q repository.ListTicketsQuery) ([]*models.Ticket, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ticket
	for _, t := range m.tickets {
		if q.Status == "" || t.Status == q.Status {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockTicketRepo) AddMessage(ctx context.Context, msg *models.TicketMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[msg.TicketID]
	if !ok {
		return errors.New("ticket not found")
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	t.Messages = append(t.Messages, *msg)
	t.UpdatedAt = msg.CreatedAt
	return nil
}

func (m *mockTicketRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TicketStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return errors.New("ticket not found")
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

// --- Fake provider and mailer ---

type fakeProcessor struct {
	mu       sync.Mutex
	status   string
	created  int
	getErr   error
	statuses map[string]string // providerID -> status override
}

func newFakeProcessor(status string) *fakeProcessor {
	return &fakeProcessor{status: status, statuses: make(map[string]string)}
}

func (f *fakeProcessor) CreatePayment(ctx context.Context, req *mercadopago.PaymentRequest) (*mercadopago.PaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	resp := &mercadopago.PaymentResponse{ID: int64(1000 + f.created), Status: "pending"}
	resp.PointOfInteraction.TransactionData.QRCode = "00020126pix-payload"
	resp.PointOfInteraction.TransactionData.QRCodeBase64 = "aW1hZ2U="
	return resp, nil
}

func (f *fakeProcessor) GetPayment(ctx context.Context, providerID string) (*mercadopago.PaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	status := f.status
	if s, ok := f.statuses[providerID]; ok {
		status = s
	}
	return &mercadopago.PaymentResponse{Status: status}, nil
}

func (f *fakeProcessor) CancelPayment(ctx context.Context, providerID string) error {
	return nil
}

func (f *fakeProcessor) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

type fakeMailer struct {
	mu            sync.Mutex
	verification  int
	reset         int
	confirmation  int
	warnings      []int
	expired       int
	replies       []string // previews, in send order
	ticketsClosed int
}

func (f *fakeMailer) SendVerification(ctx context.Context, to, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verification++
	return nil
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset++
	return nil
}

func (f *fakeMailer) SendPaymentConfirmation(ctx context.Context, to, name string, plan models.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmation++
	return nil
}

func (f *fakeMailer) SendPlanExpirationWarning(ctx context.Context, to, name string, plan models.Plan, daysLeft int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, daysLeft)
	return nil
}

func (f *fakeMailer) SendPlanExpired(ctx context.Context, to, name string, plan models.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired++
	return nil
}

func (f *fakeMailer) SendTicketReply(ctx context.Context, to, name, subject, ticketID, preview string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, preview)
	return nil
}

func (f *fakeMailer) SendTicketClosed(ctx context.Context, to, name, subject, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketsClosed++
	return nil
}

func (f *fakeMailer) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

func (f *fakeMailer) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticketsClosed
}
