package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/wallet-service/internal/config"
	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender mails availability changes of wallet sensors via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: logger,
	}
	s.send = s.sendSMTP
	return s
}

// AvailabilityChanged sends a notification that a sensor went down or recovered
func (s *Sender) AvailabilityChanged(_ context.Context, state models.SensorState) {
	e := s.buildAvailabilityEmail(state, time.Now())
	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", s.cfg.NotifyEmail, err)
		return
	}
	s.logger.Infof("Email sent to %s: %s", s.cfg.NotifyEmail, e.Subject)
}

func (s *Sender) buildAvailabilityEmail(state models.SensorState, at time.Time) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.NotifyEmail}

	tracker, _ := state.Attributes[models.AttrEntityTracker].(string)
	body := fmt.Sprintf("Sensor %s of wallet %v\n\n", state.EntityID, state.Attributes[models.AttrWallet])
	if state.Available {
		e.Subject = fmt.Sprintf("Wallet sensor recovered: %s", state.EntityID)
		body += fmt.Sprintf(
			"The sensor is available again since %s.\n"+
				"Current value: %s %v\n",
			at.Format("2006-01-02 15:04:05"), state.State, state.Attributes[models.AttrUnit],
		)
	} else {
		e.Subject = fmt.Sprintf("Wallet sensor unavailable: %s", state.EntityID)
		body += fmt.Sprintf(
			"The sensor became unavailable at %s.\n"+
				"The rate tracker %q reported zero or no value.\n",
			at.Format("2006-01-02 15:04:05"), tracker,
		)
	}
	body += "\nWallet Service"
	e.Text = []byte(body)
	return e
}

func (s *Sender) sendSMTP(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
