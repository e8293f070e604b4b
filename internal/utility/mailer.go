package utility

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gomail/gomail"
	"github.com/rs/zerolog/log"
)

var ErrMailerNotConfigured = errors.New("SMTP configuration missing")

const sendTimeout = 15 * time.Second

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Mailer sends HTML email through SMTP.
type Mailer struct {
	from string
	send func(*gomail.Message) error
}

func NewMailer(cfg SMTPConfig) *Mailer {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return &Mailer{}
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	return &Mailer{
		from: cfg.From,
		send: func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

// NewMailerWithSender builds a Mailer over any gomail.Sender.
func NewMailerWithSender(from string, s gomail.Sender) *Mailer {
	return &Mailer{
		from: from,
		send: func(m *gomail.Message) error { return gomail.Send(s, m) },
	}
}

func (m *Mailer) Configured() bool {
	return m != nil && m.send != nil
}

// SendHTML sends one message and gives up after 15 seconds.
func (m *Mailer) SendHTML(to, subject, body string) error {
	if !m.Configured() {
		return ErrMailerNotConfigured
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	errChan := make(chan error, 1)
	go func() {
		errChan <- m.send(msg)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Str("to", to).Msg("Failed to send email")
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-time.After(sendTimeout):
		log.Error().Str("to", to).Msg("Timeout sending email")
		return fmt.Errorf("email sending timeout")
	}
}
