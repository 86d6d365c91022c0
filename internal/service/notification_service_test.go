package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/pkg/mailer"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []mailer.Message
	fails int
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("relay unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func decidedRequest() *models.Request {
	return &models.Request{ID: "req-1", Name: "Asha <Verma>", RollNo: "18103021", Branch: models.BranchCSE, Email: "asha@example.com", Status: models.RequestStatusApproved}
}

func TestNotificationServiceDeliversDecision(t *testing.T) {
	sender := &fakeSender{fails: 1}
	svc := NewNotificationService(sender, NewMetricsService(), NotificationConfig{Enabled: true, Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond}, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	svc.NotifyDecision(decidedRequest())

	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	sender.mu.Lock()
	msg := sender.sent[0]
	sender.mu.Unlock()
	assert.Equal(t, "asha@example.com", msg.To)
	assert.Equal(t, "Your certificate request has been approved", msg.Subject)
}

func TestNotificationServiceDisabledIsNoop(t *testing.T) {
	sender := &fakeSender{}
	svc := NewNotificationService(sender, nil, NotificationConfig{Enabled: false}, nil)
	svc.Start(context.Background())
	svc.NotifyDecision(decidedRequest())
	svc.Stop()
	assert.Zero(t, sender.count())

	var nilSvc *NotificationService
	assert.NotPanics(t, func() { nilSvc.NotifyDecision(decidedRequest()) })
}

func TestDecisionMessageEscapesHTML(t *testing.T) {
	msg := DecisionMessage(decidedRequest())
	assert.Contains(t, msg.TextBody, "Dear Asha <Verma>,")
	assert.Contains(t, msg.HTMLBody, "Dear Asha &lt;Verma&gt;,")
	assert.Contains(t, msg.HTMLBody, "<strong>approved</strong>")
}
