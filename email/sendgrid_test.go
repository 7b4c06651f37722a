package email

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/event-checkin-api/services"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(email)
	res, _ := args.Get(0).(*rest.Response)
	return res, args.Error(1)
}

var invite = services.InviteMail{
	HostName:   "Sam",
	EventName:  "Rooftop Party",
	EventDate:  time.Date(2030, 7, 4, 20, 0, 0, 0, time.UTC),
	Location:   "12 Main St",
	InviteCode: "AB12CD",
}

func TestNewSendGrid(t *testing.T) {
	s, err := NewSendGrid("key", "no-reply@example.com")
	require.NoError(t, err)
	assert.Equal(t, "no-reply@example.com", s.from.Address)

	_, err = NewSendGrid("", "no-reply@example.com")
	assert.Error(t, err)
}

func TestSendInviteCode(t *testing.T) {
	client := &mockSender{}
	s := &SendGrid{client: client, from: mail.NewEmail(senderName, "no-reply@example.com")}

	client.On("Send", mock.MatchedBy(func(m *mail.SGMailV3) bool {
		if len(m.Personalizations) != 1 || len(m.Personalizations[0].To) != 1 || len(m.Content) != 2 {
			return false
		}
		return m.Subject == "Sam invited you to Rooftop Party" &&
			m.From.Address == "no-reply@example.com" &&
			m.Personalizations[0].To[0].Address == "friend@example.com" &&
			strings.Contains(m.Content[1].Value, "AB12CD")
	})).Return(&rest.Response{StatusCode: http.StatusAccepted}, nil).Once()

	require.NoError(t, s.SendInviteCode(context.Background(), "friend@example.com", invite))
	client.AssertExpectations(t)
}

func TestSendInviteCodeErrors(t *testing.T) {
	client := &mockSender{}
	s := &SendGrid{client: client, from: mail.NewEmail(senderName, "no-reply@example.com")}
	ctx := context.Background()

	client.On("Send", mock.Anything).Return(nil, errors.New("dial tcp")).Once()
	assert.ErrorContains(t, s.SendInviteCode(ctx, "friend@example.com", invite), "dial tcp")

	client.On("Send", mock.Anything).Return(&rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, nil).Once()
	assert.ErrorContains(t, s.SendInviteCode(ctx, "friend@example.com", invite), "status 401")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.SendInviteCode(cancelled, "friend@example.com", invite), context.Canceled)
	client.AssertExpectations(t)
}
