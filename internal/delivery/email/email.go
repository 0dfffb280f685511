// Package email implements the email delivery adapter using net/smtp
// directly: the message here is a single-part HTML/text body, well within
// net/smtp's plain RFC 5321 envelope + DATA support.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/trekops/unifi-reporter/internal/model"
)

// Config holds SMTP connection and recipient details. Recipients are
// delivered as BCC, so no individual recipient learns who else received
// the report.
type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	Recipients []string
	TLS        bool
}

// Delivery sends a rendered report body over SMTP.
type Delivery struct {
	cfg    Config
	render func(model.Report) (subject, body string, err error)
}

// New constructs an email Delivery. render formats the report into a
// subject and body; callers supply it (defaulting to a minimal plain-text
// summary here is reasonable for tests, but production wiring passes a
// real renderer).
func New(cfg Config, render func(model.Report) (string, string, error)) *Delivery {
	if render == nil {
		render = defaultRender
	}
	return &Delivery{cfg: cfg, render: render}
}

func defaultRender(report model.Report) (string, string, error) {
	subject := fmt.Sprintf("UniFi report: %s (%d severe, %d medium, %d low)",
		report.SiteName, report.SevereCount(), report.MediumCount(), report.LowCount())
	var body strings.Builder
	fmt.Fprintf(&body, "Site: %s\nWindow: %s - %s\n\n", report.SiteName, report.PeriodStart, report.PeriodEnd)
	for _, f := range report.Findings {
		fmt.Fprintf(&body, "[%s] %s: %s (x%d)\n", f.Severity, f.RuleName, f.Title, f.OccurrenceCount)
	}
	return subject, body.String(), nil
}

// Deliver sends the rendered report to every recipient via BCC. The
// provided ctx bounds connection setup; net/smtp has no native context
// support, so the dial is raced against ctx in a goroutine.
func (d *Delivery) Deliver(ctx context.Context, report model.Report) error {
	subject, body, err := d.render(report)
	if err != nil {
		return fmt.Errorf("email: render report: %w", err)
	}

	msg := buildMessage(d.cfg.From, d.cfg.Recipients, subject, body)

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.send(addr, msg)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("email: %w", ctx.Err())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("email: %w", err)
		}
		return nil
	}
}

func (d *Delivery) send(addr string, msg []byte) error {
	var auth smtp.Auth
	if d.cfg.User != "" {
		auth = smtp.PlainAuth("", d.cfg.User, d.cfg.Password, d.cfg.Host)
	}

	if d.cfg.TLS {
		return d.sendTLS(addr, auth, msg)
	}
	return smtp.SendMail(addr, auth, d.cfg.From, d.cfg.Recipients, msg)
}

func (d *Delivery) sendTLS(addr string, auth smtp.Auth, msg []byte) error {
	tlsCfg := &tls.Config{ServerName: d.cfg.Host, MinVersion: tls.VersionTLS12}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, d.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(d.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range d.cfg.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return w.Close()
}

func buildMessage(from string, recipients []string, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}
