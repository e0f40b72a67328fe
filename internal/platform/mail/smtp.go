// Package mail delivers assembled order emails over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/config"
	"github.com/byceps/byceps-sub001/internal/platform/jobs"
	"github.com/byceps/byceps-sub001/internal/services"
)

const dialTimeout = 10 * time.Second

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, message domain.EmailMessage) error
}

// SMTPSender speaks SMTP to the configured relay. With SuppressSend set it
// only logs what it would have sent.
type SMTPSender struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
	clock  func() time.Time
}

// NewSMTPSender constructs a sender for cfg.
func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg, logger: logger, clock: time.Now}
}

func (s *SMTPSender) Send(ctx context.Context, message domain.EmailMessage) error {
	if len(message.Recipients) == 0 {
		return errors.New("smtp: no recipients")
	}
	if s.cfg.SuppressSend {
		s.logger.Info("email suppressed",
			zap.String("sender", message.Sender.Address),
			zap.Strings("recipients", message.Recipients),
			zap.String("subject", message.Subject),
			zap.String("body", message.Body),
		)
		return nil
	}

	data, err := buildMessage(message, s.clock())
	if err != nil {
		return err
	}

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp: auth: %w", err)
		}
	}
	if err := client.Mail(message.Sender.Address); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range message.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: end data: %w", err)
	}
	s.logger.Info("email sent",
		zap.Strings("recipients", message.Recipients),
		zap.String("subject", message.Subject))
	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.UseSSL {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp: greeting: %w", err)
	}
	if s.cfg.StartTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("smtp: starttls: %w", err)
		}
	}
	return client, nil
}

// buildMessage renders a UTF-8 plain text message with quoted-printable body.
func buildMessage(message domain.EmailMessage, now time.Time) ([]byte, error) {
	from := mail.Address{Name: message.Sender.Name, Address: message.Sender.Address}
	to := make([]string, 0, len(message.Recipients))
	for _, rcpt := range message.Recipients {
		addr, err := mail.ParseAddress(rcpt)
		if err != nil {
			return nil, fmt.Errorf("smtp: recipient %q: %w", rcpt, err)
		}
		to = append(to, addr.String())
	}
	domainPart := "localhost"
	if _, host, ok := strings.Cut(message.Sender.Address, "@"); ok && host != "" {
		domainPart = host
	}

	var buf bytes.Buffer
	header := func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}
	header("From", from.String())
	header("To", strings.Join(to, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", message.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", "<"+strings.ToLower(ulid.Make().String())+"@"+domainPart+">")
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	body := strings.ReplaceAll(message.Body, "\r\n", "\n")
	if _, err := qp.Write([]byte(strings.ReplaceAll(body, "\n", "\r\n"))); err != nil {
		return nil, fmt.Errorf("smtp: encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("smtp: encode body: %w", err)
	}
	return buf.Bytes(), nil
}

// NewSendEmailHandler adapts a sender to the email.send job. Arguments that
// cannot be turned into a message are a permanent failure.
func NewSendEmailHandler(sender Sender) jobs.Handler {
	return func(ctx context.Context, env jobs.Envelope) error {
		message, err := services.EmailFromJobArgs(env.Args)
		if err != nil {
			return fmt.Errorf("%w: %v", jobs.ErrPermanent, err)
		}
		return sender.Send(ctx, message)
	}
}
