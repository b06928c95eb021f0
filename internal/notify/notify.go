// Package notify tells an operator when a scheduled scrape fails.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"simstats-backend/internal/components/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("simstats.internal.notify")

const report_notify_send = "notify.send"

// Notifier is called once per failed update.
//
// note: fault injection point
type Notifier interface {
	NotifyFailure(ctx context.Context, failure Failure) error
}

type Failure struct {
	Provider string
	Trigger  string
	Message  string
	At       time.Time
}

func (f Failure) subject() string {
	return fmt.Sprintf("[simstats] %s update failed", f.Provider)
}

func (f Failure) body() string {
	return fmt.Sprintf(`The %s usage update triggered by %s failed at %s.

%s

Usage figures for this provider will not be updated until the next successful run.`,
		f.Provider,
		f.Trigger,
		f.At.Format(time.RFC3339),
		f.Message,
	)
}

// Nop drops every notification, it is used when smtp is not configured.
type Nop struct{}

func (Nop) NotifyFailure(context.Context, Failure) error {
	return nil
}

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && len(c.To) > 0
}

type Email struct {
	config SmtpConfig
	tel    telemetry.API
}

func NewEmail(config SmtpConfig, tel telemetry.API) Email {
	return Email{config: config, tel: telemetry.NewScopedAPI("notify", tel)}
}

// New returns an Email notifier when smtp is configured and Nop otherwise.
func New(config SmtpConfig, tel telemetry.API) Notifier {
	if !config.Enabled() {
		return Nop{}
	}
	return NewEmail(config, tel)
}

func (e Email) NotifyFailure(ctx context.Context, failure Failure) error {
	_, span := tracer.Start(ctx, "NotifyFailure")
	defer span.End()
	span.SetAttributes(attribute.String("provider", failure.Provider))

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("simstats <%s>", e.config.EmailAddress)
	mail.To = e.config.To
	mail.Subject = failure.subject()
	mail.Text = []byte(failure.body())

	addr := fmt.Sprintf("%s:%d", e.config.Server, e.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", e.config.EmailAddress, e.config.Password, e.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		e.tel.ReportBroken(report_notify_send, err, failure.Provider)
		return err
	}
	return nil
}
