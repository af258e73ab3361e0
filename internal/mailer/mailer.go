package mailer

import (
	"context"
	"fmt"
	"log"
	"mime"
	"net"
	"net/smtp"
	"strings"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// New returns an SMTP sender, or a sender that only logs when no host is
// configured.
func New(cfg Config) Sender {
	if strings.TrimSpace(cfg.Host) == "" {
		log.Println("[MAIL] [WARN] SMTP_HOST not set, emails are logged only")
		return LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

type SMTPSender struct {
	cfg Config
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mailer: empty recipient")
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, buildMessage(s.cfg.From, msg)); err != nil {
		log.Printf("[MAIL] [ERROR] send to %s failed: %v", msg.To, err)
		return err
	}

	log.Printf("[MAIL] [INFO] sent %q to %s", msg.Subject, msg.To)
	return nil
}

func buildMessage(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")
	return []byte(b.String())
}

type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("[MAIL] [INFO] (log only) to=%s subject=%q", msg.To, msg.Subject)
	return nil
}
