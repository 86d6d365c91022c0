package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/pkg/jobs"
	"github.com/nitj-alumni/alumni-erp-api/pkg/mailer"
)

const decisionJobType = "decision_email"

// NotificationConfig tunes decision e-mail delivery.
type NotificationConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService e-mails alumni when a reviewer decides on their
// request. Delivery happens on a background queue; callers never wait on SMTP.
type NotificationService struct {
	queue   *jobs.Queue
	sender  mailer.Sender
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService constructs the service and its worker queue.
func NewNotificationService(sender mailer.Sender, metrics *MetricsService, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		sender:  sender,
		metrics: metrics,
		logger:  logger,
		enabled: cfg.Enabled && sender != nil,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop halts delivery workers. Undelivered messages are dropped.
func (s *NotificationService) Stop() {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Stop()
}

// NotifyDecision queues the decision e-mail for req.
func (s *NotificationService) NotifyDecision(req *models.Request) {
	if s == nil || !s.enabled {
		return
	}
	msg := DecisionMessage(req)
	if err := s.queue.Enqueue(jobs.Job{ID: req.ID, Type: decisionJobType, Payload: msg}); err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("failed to queue decision email", zap.String("request_id", req.ID), zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.RecordNotification("failed")
		return err
	}
	s.metrics.RecordNotification("sent")
	s.logger.Info("decision email sent", zap.String("request_id", job.ID))
	return nil
}

// DecisionMessage renders the decision e-mail for req.
func DecisionMessage(req *models.Request) mailer.Message {
	subject := fmt.Sprintf("Your certificate request has been %s", req.Status)
	text := fmt.Sprintf("Dear %s,\n\nYour certificate request (roll number %s, branch %s) has been %s.\n\nRegards,\nAlumni Cell",
		req.Name, req.RollNo, req.Branch, req.Status)
	body := fmt.Sprintf("<p>Dear %s,</p><p>Your certificate request (roll number %s, branch %s) has been <strong>%s</strong>.</p><p>Regards,<br>Alumni Cell</p>",
		html.EscapeString(req.Name), html.EscapeString(req.RollNo), req.Branch, req.Status)
	return mailer.Message{To: req.Email, Subject: subject, TextBody: text, HTMLBody: body}
}
