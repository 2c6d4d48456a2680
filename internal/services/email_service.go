package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrEmailNotConfigured is reported when no SMTP host is set.
var ErrEmailNotConfigured = errors.New("smtp is not configured")

// EmailConfig holds the SMTP credentials.
type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// EmailService sends plain-text emails over SMTP.
type EmailService struct {
	cfg EmailConfig
	log *zap.Logger
}

// NewEmailService creates a new EmailService.
func NewEmailService(cfg EmailConfig, log *zap.Logger) *EmailService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &EmailService{cfg: cfg, log: log}
}

// Send implements Notifier for the email channel.
func (s *EmailService) Send(ctx context.Context, kind NotificationKind, recipient string, payload Payload) Result {
	if s.cfg.Host == "" {
		s.log.Warn("smtp host not configured, email dropped", zap.String("kind", string(kind)))
		return Result{Err: ErrEmailNotConfigured}
	}

	subject, body := renderEmail(kind, payload)
	if err := s.deliver(ctx, recipient, subject, body); err != nil {
		return Result{Err: fmt.Errorf("send %s email: %w", kind, err)}
	}
	return Result{Success: true}
}

func (s *EmailService) deliver(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: s.cfg.Host}
	if s.cfg.Port == "465" {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok && s.cfg.Port != "465" {
		if err := client.StartTLS(tlsConfig); err != nil {
			return err
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(s.cfg.From, to, subject, body)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func renderEmail(kind NotificationKind, p Payload) (string, string) {
	switch kind {
	case NotifyVerificationCode:
		return "Verify your email",
			fmt.Sprintf("Hello %s,\n\nYour verification code is %s.\nIt expires in %s minutes.\n", p["name"], p["code"], p["expires_in_minutes"])
	case NotifyPasswordReset:
		return "Password reset code",
			fmt.Sprintf("Hello %s,\n\nYour password reset code is %s.\nIt expires in %s minutes.\nIf you did not request a reset, ignore this email.\n", p["name"], p["code"], p["expires_in_minutes"])
	case NotifyAppointmentCreated:
		return "Appointment scheduled: " + p["client_name"],
			fmt.Sprintf("Hello %s,\n\nYour %s appointment with %s (%s) is scheduled for %s.\n", p["name"], p["type"], p["client_name"], p["client_company"], p["scheduled_date"])
	default:
		return p["title"], p["message"]
	}
}
