package email

import (
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/medsched/clinic-api/internal/config"
	"github.com/medsched/clinic-api/pkg/messaging"
	"github.com/medsched/clinic-api/pkg/metrics"
)

// Service sends operational mail for booking events.
type Service interface {
	SendAppointmentNotification(to string, event *messaging.AppointmentEvent) error
}

type smtpService struct {
	dialer  *gomail.Dialer
	from    string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewSMTPService(cfg config.SMTPConfig, m *metrics.Metrics, logger zerolog.Logger) Service {
	return &smtpService{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		metrics: m,
		logger:  logger,
	}
}

func (s *smtpService) SendAppointmentNotification(to string, event *messaging.AppointmentEvent) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Appointment %s %s", event.RecordNumber, event.Status))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Appointment %s is scheduled from %s to %s (status: %s).",
		event.RecordNumber, event.StartTime, event.EndTime, event.Status,
	))

	if err := s.dialer.DialAndSend(msg); err != nil {
		s.metrics.NotificationsFailed.Inc()
		s.logger.Error().Err(err).Str("record_number", event.RecordNumber).Msg("failed to send notification email")
		return err
	}

	s.metrics.NotificationsSent.Inc()
	return nil
}
