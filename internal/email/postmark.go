package email

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"

	"github.com/NGeff/gld-rest-api/internal/config"
	"github.com/NGeff/gld-rest-api/internal/models"
)

type postmarkService struct {
	client       *postmark.Client
	from         string
	dashboardURL string
}

// NewPostmarkService creates a Postmark-backed email service.
func NewPostmarkService(cfg *config.EmailConfig) (Service, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("email: server token is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("email: sender address is required")
	}

	return &postmarkService{
		client:       postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		from:         cfg.From,
		dashboardURL: cfg.DashboardURL,
	}, nil
}

func (s *postmarkService) send(ctx context.Context, to, subject, tag, htmlBody string) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.from,
		To:         to,
		Subject:    subject,
		Tag:        tag,
		HTMLBody:   htmlBody,
		TrackOpens: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}

func (s *postmarkService) SendVerification(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.dashboardURL, token)
	body := fmt.Sprintf(`
		<h2>Welcome, %s!</h2>
		<p>Confirm your email address to activate your account:</p>
		<p><a href="%s">Verify email</a></p>
		<p>If you did not create this account, you can ignore this message.</p>`,
		name, link)
	return s.send(ctx, to, "Verify your email", "verification", body)
}

func (s *postmarkService) SendPasswordReset(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.dashboardURL, token)
	body := fmt.Sprintf(`
		<h2>Hi %s,</h2>
		<p>We received a request to reset your password. The link below expires in one hour:</p>
		<p><a href="%s">Reset password</a></p>
		<p>If you did not request this, your account is still secure and no action is needed.</p>`,
		name, link)
	return s.send(ctx, to, "Reset your password", "password-reset", body)
}

func (s *postmarkService) SendPaymentConfirmation(ctx context.Context, to, name string, plan models.Plan) error {
	body := fmt.Sprintf(`
		<h2>Payment confirmed</h2>
		<p>Hi %s, your payment was approved and your account is now on the <strong>%s</strong> plan.</p>
		<p>Your new daily limit is %d requests.</p>`,
		name, plan, plan.DailyLimit())
	return s.send(ctx, to, "Payment confirmed", "payment", body)
}

func (s *postmarkService) SendPlanExpirationWarning(ctx context.Context, to, name string, plan models.Plan, daysLeft int) error {
	noun := "days"
	if daysLeft == 1 {
		noun = "day"
	}
	body := fmt.Sprintf(`
		<h2>Your %s plan expires in %d %s</h2>
		<p>Hi %s, renew now to keep your current daily limit of %d requests:</p>
		<p><a href="%s/plans">Renew plan</a></p>`,
		plan, daysLeft, noun, name, plan.DailyLimit(), s.dashboardURL)
	subject := fmt.Sprintf("Your plan expires in %d %s", daysLeft, noun)
	return s.send(ctx, to, subject, "plan-warning", body)
}

func (s *postmarkService) SendPlanExpired(ctx context.Context, to, name string, plan models.Plan) error {
	body := fmt.Sprintf(`
		<h2>Your %s plan has expired</h2>
		<p>Hi %s, your account was moved to the free plan (%d requests/day).</p>
		<p><a href="%s/plans">Upgrade again</a></p>`,
		plan, name, models.PlanFree.DailyLimit(), s.dashboardURL)
	return s.send(ctx, to, "Your plan has expired", "plan-expired", body)
}

func (s *postmarkService) SendTicketReply(ctx context.Context, to, name, subject, ticketID, preview string) error {
	body := fmt.Sprintf(`
		<h2>New reply on your ticket</h2>
		<p>Hi %s, our support team replied to "<strong>%s</strong>":</p>
		<blockquote>%s</blockquote>
		<p><a href="%s/support/%s">View the full conversation</a></p>`,
		name, subject, preview, s.dashboardURL, ticketID)
	return s.send(ctx, to, fmt.Sprintf("Re: %s", subject), "ticket-reply", body)
}

func (s *postmarkService) SendTicketClosed(ctx context.Context, to, name, subject, ticketID string) error {
	body := fmt.Sprintf(`
		<h2>Ticket closed</h2>
		<p>Hi %s, your ticket "<strong>%s</strong>" was marked as resolved.</p>
		<p>If the issue persists, reply from your dashboard to reopen the conversation:</p>
		<p><a href="%s/support/%s">View ticket</a></p>`,
		name, subject, s.dashboardURL, ticketID)
	return s.send(ctx, to, fmt.Sprintf("Ticket closed: %s", subject), "ticket-closed", body)
}

var _ Service = (*postmarkService)(nil)
