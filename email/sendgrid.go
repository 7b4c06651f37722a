// Package email sends invite codes through SendGrid
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/services"
	templates "github.com/linesmerrill/event-checkin-api/templates/html"
)

const senderName = "Event Check-in"

type sender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid is a services.Mailer
type SendGrid struct {
	client sender
	from   *mail.Email
}

// NewSendGrid returns a mailer sending from the from address with apiKey
func NewSendGrid(apiKey, from string) (*SendGrid, error) {
	if apiKey == "" {
		return nil, errors.New("sendgrid api key is not set")
	}
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(senderName, from),
	}, nil
}

// SendInviteCode emails the invite code of an event to the to address
func (s *SendGrid) SendInviteCode(ctx context.Context, to string, invite services.InviteMail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content := templates.InviteCode{
		HostName:   invite.HostName,
		EventName:  invite.EventName,
		EventDate:  invite.EventDate,
		Location:   invite.Location,
		InviteCode: invite.InviteCode,
	}
	subject := templates.InviteCodeSubject(content)
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to),
		templates.RenderInviteCodeText(content), templates.RenderInviteCodeEmail(content))

	response, err := s.client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send email", "error", err, "to", to)
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", to)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	zap.S().Infow("email sent successfully", "to", to, "subject", subject)
	return nil
}
