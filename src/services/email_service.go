package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/username/boxshift/backend/src/config"
	"github.com/username/boxshift/backend/src/logger"
)

// EmailService sends the waitlist confirmation. Fire-and-forget: callers
// treat a send failure as a logged event, never as a request failure.
type EmailService interface {
	SendWaitlistConfirmation(toEmail string, position int) error
}

func NewEmailService() EmailService {
	if config.Cfg == nil {
		logger.L.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			SMTPServer:   config.Cfg.SMTPServer,
			SMTPPort:     config.Cfg.SMTPPort,
			SMTPUser:     config.Cfg.SMTPUser,
			SMTPPassword: config.Cfg.SMTPPassword,
			SenderEmail:  config.Cfg.SenderEmail,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{}
	}
}

const waitlistSubject = "Je staat op de BoxShift waitlist (#%d)"

func waitlistBody(position int) string {
	return fmt.Sprintf(`Welkom op de waitlist!

Bedankt voor je aanmelding. Je bent nummer #%d op de waitlist.

Vanaf 2028 betaal je in Box 3 36%% belasting over ongerealiseerde winsten.
Via een beleggings-BV (Box 2) betaal je alleen over wat je echt verdient.
BoxShift regelt de BV-oprichting en volledige administratie.

We nemen contact op zodra BoxShift live gaat.

BoxShift - Van Box 3 naar Box 2, zonder gedoe.
https://boxshift.nl`, position)
}

type MailgunEmailService struct {
	mg          *mailgun.MailgunImpl
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) SendWaitlistConfirmation(toEmail string, position int) error {
	sender := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	subject := fmt.Sprintf(waitlistSubject, position)
	message := mailgun.NewMessage(sender, subject, waitlistBody(position), toEmail)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send waitlist confirmation via Mailgun", "to", toEmail, "error", err)
		return err
	}
	logger.L.Info("Waitlist confirmation sent via Mailgun", "to", toEmail, "messageID", id)
	return nil
}

type SMTPEmailService struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
}

func (s *SMTPEmailService) SendWaitlistConfirmation(toEmail string, position int) error {
	subject := fmt.Sprintf(waitlistSubject, position)

	header := map[string]string{
		"From":         s.SenderEmail,
		"To":           toEmail,
		"Subject":      subject,
		"MIME-version": "1.0",
		"Content-Type": `text/plain; charset="UTF-8"`,
	}
	var message strings.Builder
	for k, v := range header {
		fmt.Fprintf(&message, "%s: %s\r\n", k, v)
	}
	message.WriteString("\r\n" + waitlistBody(position))

	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	if err := smtp.SendMail(addr, auth, s.SenderEmail, []string{toEmail}, []byte(message.String())); err != nil {
		logger.L.Error("Failed to send waitlist confirmation via SMTP", "to", toEmail, "error", err)
		return err
	}
	logger.L.Info("Waitlist confirmation sent via SMTP", "to", toEmail)
	return nil
}

// MockEmailService logs instead of sending. Used when no provider is
// configured, so signup flows keep working in development.
type MockEmailService struct{}

func (s *MockEmailService) SendWaitlistConfirmation(toEmail string, position int) error {
	logger.L.Info("MOCK EMAIL: waitlist confirmation", "to", toEmail, "position", position)
	return nil
}
