package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
)

func TestBuildMessage(t *testing.T) {
	msg := Build("no-reply@alumni-erp.local", Message{
		To:       "asha@example.com",
		Subject:  "Your request was approved",
		TextBody: "approved",
		HTMLBody: "<p>approved</p>",
	})

	assert.Equal(t, []string{"asha@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Your request was approved"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/plain")
	assert.Contains(t, buf.String(), "text/html")
}

func TestSendHonoursCancelledContext(t *testing.T) {
	m := NewSMTPMailer(config.NotificationsConfig{SMTPHost: "127.0.0.1", SMTPPort: 1, From: "x@y.z"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, Message{To: "asha@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

type countingSender struct {
	calls int
	err   error
}

func (s *countingSender) Send(context.Context, Message) error {
	s.calls++
	return s.err
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	next := &countingSender{err: errors.New("dial tcp: connection refused")}
	sender := WithBreaker(next, "smtp", time.Hour, nil)

	for i := 0; i < 3; i++ {
		err := sender.Send(context.Background(), Message{To: "asha@example.com"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRelayUnavailable)
	}
	assert.Equal(t, "open", sender.State())

	err := sender.Send(context.Background(), Message{To: "asha@example.com"})
	assert.ErrorIs(t, err, ErrRelayUnavailable)
	assert.Equal(t, 3, next.calls)
}

func TestBreakerPassesSuccessThrough(t *testing.T) {
	next := &countingSender{}
	sender := WithBreaker(next, "smtp", 0, nil)

	require.NoError(t, sender.Send(context.Background(), Message{To: "asha@example.com"}))
	assert.Equal(t, "closed", sender.State())
	assert.Equal(t, 1, next.calls)
}
