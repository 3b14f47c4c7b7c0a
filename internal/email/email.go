// Package email sends transactional mail for account and plan lifecycle events.
package email

import (
	"context"

	"github.com/NGeff/gld-rest-api/internal/models"
)

// Service abstracts the mail provider so services and jobs can be tested
// without network access.
type Service interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
	SendPaymentConfirmation(ctx context.Context, to, name string, plan models.Plan) error
	SendPlanExpirationWarning(ctx context.Context, to, name string, plan models.Plan, daysLeft int) error
	SendPlanExpired(ctx context.Context, to, name string, plan models.Plan) error
	SendTicketReply(ctx context.Context, to, name, subject, ticketID, preview string) error
	SendTicketClosed(ctx context.Context, to, name, subject, ticketID string) error
}

// NopService discards all mail. Used when no server token is configured.
type NopService struct{}

func (NopService) SendVerification(context.Context, string, string, string) error { return nil }
func (NopService) SendPasswordReset(context.Context, string, string, string) error {
	return nil
}
func (NopService) SendPaymentConfirmation(context.Context, string, string, models.Plan) error {
	return nil
}
func (NopService) SendPlanExpirationWarning(context.Context, string, string, models.Plan, int) error {
	return nil
}
func (NopService) SendPlanExpired(context.Context, string, string, models.Plan) error { return nil }
func (NopService) SendTicketReply(context.Context, string, string, string, string, string) error {
	return nil
}
func (NopService) SendTicketClosed(context.Context, string, string, string, string) error {
	return nil
}

var _ Service = NopService{}
