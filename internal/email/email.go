package email

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/clinova/booking-api/pkg/logger"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Enabled  bool
}

// Service sends transactional mail over SMTP. With Enabled false it logs and
// drops every message, which is how dev environments run.
type Service struct {
	cfg    Config
	dialer *gomail.Dialer
	logger *logger.Logger
}

func NewService(cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Service{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: log,
	}
}

func (s *Service) Send(to, subject, htmlBody string) error {
	if !s.cfg.Enabled {
		s.logger.ZL.Debug().
			Str("to", to).
			Str("subject", subject).
			Msg("email disabled, dropping message")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
