package notify

import (
	"context"
	"fmt"

	"github.com/vivaclin/agenda-platform/internal/clinic"
	"github.com/vivaclin/agenda-platform/internal/observability/metrics"
	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// SettingsSource retrieves clinic settings for notification preferences.
type SettingsSource interface {
	Get(ctx context.Context, clinicID string) (*clinic.Settings, error)
}

// Recorder persists notification rows.
type Recorder interface {
	Insert(ctx context.Context, n *Notification) error
}

// Service writes staff notifications and mirrors them to email when the
// clinic asks for it. Emission never blocks scheduling: failures are logged
// and reported back as a plain error the caller downgrades to a warning.
type Service struct {
	store    Recorder
	email    EmailSender
	settings SettingsSource
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(store Recorder, email EmailSender, settings SettingsSource, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		email:    email,
		settings: settings,
		metrics:  m,
		logger:   logger,
	}
}

// Emit records the notification and fans it out to the enabled channels.
func (s *Service) Emit(ctx context.Context, n *Notification) error {
	if s.store == nil {
		return fmt.Errorf("notify: store not configured")
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return err
	}
	s.metrics.ObserveNotification("inbox")

	if s.email == nil || s.settings == nil {
		return nil
	}
	cfg, err := s.settings.Get(ctx, n.ClinicID)
	if err != nil {
		s.logger.Warn("notify: settings lookup failed, skipping email", "error", err, "clinic_id", n.ClinicID)
		return nil
	}
	if !cfg.Notifications.EmailEnabled || len(cfg.Notifications.EmailRecipients) == 0 {
		return nil
	}

	var failed int
	for _, recipient := range cfg.Notifications.EmailRecipients {
		msg := EmailMessage{
			To:      recipient,
			Subject: n.Title,
			Body:    n.Message,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Warn("notify: email send failed", "error", err, "to", recipient, "type", n.Type)
			failed++
			continue
		}
		s.metrics.ObserveNotification("email")
	}
	if failed > 0 {
		return fmt.Errorf("notify: %d email(s) failed", failed)
	}
	return nil
}
