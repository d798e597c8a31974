package notification

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

// EmailNotifier delivers notices over SMTP.
type EmailNotifier struct {
	SMTPConfig SMTPConfig
	client     *mail.Client
}

func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30),
	}

	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if !config.TLS {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
			mail.WithTLSPolicy(mail.NoTLS),
		)
	} else {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	return &EmailNotifier{SMTPConfig: config, client: client}, nil
}

func (e *EmailNotifier) Send(noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}

	textBody, err := render("text", noticeTemplate.Text, notification.Data)
	if err != nil {
		slog.Error("Failed to render text template", "type", noticeType, "err", err)
		return err
	}
	htmlBody, err := render("html", noticeTemplate.Html, notification.Data)
	if err != nil {
		slog.Error("Failed to render HTML template", "type", noticeType, "err", err)
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(e.SMTPConfig.From); err != nil {
		return fmt.Errorf("failed to set from address: %w", err)
	}
	if err := msg.To(notification.To); err != nil {
		return fmt.Errorf("failed to set to address: %w", err)
	}
	msg.Subject(noticeTemplate.Subject)

	if textBody != "" {
		msg.SetBodyString(mail.TypeTextPlain, textBody)
	}
	if htmlBody != "" {
		if textBody != "" {
			msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
		} else {
			msg.SetBodyString(mail.TypeTextHTML, htmlBody)
		}
	}

	if err := e.client.DialAndSend(msg); err != nil {
		slog.Error("Failed to send email", "to", notification.To, "err", err)
		return err
	}

	slog.Info("Email sent", "to", notification.To, "type", noticeType)
	return nil
}

func render(name, text string, data map[string]string) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
