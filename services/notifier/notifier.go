package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/url"
	"strings"

	"fuelalert/lib/cities"
	"fuelalert/lib/phase"
	"fuelalert/lib/token"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/notifier")

type Message struct {
	To      string
	Subject string
	Text    string
	Html    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
	FromName     string `json:"from_name"`
}

type SmtpSender struct {
	config SmtpConfig
}

func NewSmtpSender(config SmtpConfig) SmtpSender {
	if config.FromName == "" {
		config.FromName = "Fuel Alert"
	}
	return SmtpSender{config: config}
}

func (s SmtpSender) Send(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "SmtpSender.Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.EmailAddress)
	mail.To = []string{msg.To}
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Text)
	if msg.Html != "" {
		mail.HTML = []byte(msg.Html)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server, s.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", s.config.EmailAddress, s.config.Password, s.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}

	return nil
}

// DrySender logs intended sends without touching the network, for runs
// without transport credentials.
type DrySender struct{}

func (DrySender) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "dry run, would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}

type Failure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// DeliveryReport summarizes one city's notification attempt.
type DeliveryReport struct {
	City     string
	Sent     int
	Failures []Failure
}

type Options struct {
	SiteUrl string
	Secret  string
}

type Service struct {
	sender Sender
	dry    bool
	opts   Options
}

func NewService(sender Sender, opts Options) Service {
	_, dry := sender.(DrySender)
	return Service{
		sender: sender,
		dry:    dry,
		opts:   opts,
	}
}

// NewFromConfig builds a Service over SMTP, falling back to the dry
// sender when no transport credentials are configured.
func NewFromConfig(config SmtpConfig, opts Options) Service {
	if config.Server == "" || config.EmailAddress == "" {
		slog.Warn("no smtp credentials configured, running notifier in dry mode")
		return NewService(DrySender{}, opts)
	}
	return NewService(NewSmtpSender(config), opts)
}

// Dry reports whether sends are simulated rather than delivered.
func (s Service) Dry() bool {
	return s.dry
}

// NotifyBuy sends the buy alert to every subscriber of a city. One
// recipient failing never blocks the rest; failures come back in the
// report instead of as an error.
func (s Service) NotifyBuy(ctx context.Context, city string, subscribers []string) DeliveryReport {
	ctx, span := tracer.Start(ctx, "NotifyBuy")
	defer span.End()
	span.SetAttributes(
		attribute.String("city", city),
		attribute.Int("subscribers", len(subscribers)),
	)

	report := DeliveryReport{City: city}
	for _, addr := range subscribers {
		err := s.sender.Send(ctx, s.buyAlert(addr, city))
		if err != nil {
			span.RecordError(err)
			report.Failures = append(report.Failures, Failure{
				Email:  addr,
				Reason: err.Error(),
			})
			continue
		}
		report.Sent++
	}

	if len(report.Failures) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d deliveries failed", len(report.Failures), len(subscribers)))
	}
	return report
}

// SendConfirmation sends the double-opt-in email for a pending
// subscription, with a note on where the city's cycle currently sits.
func (s Service) SendConfirmation(ctx context.Context, addr, city string, current phase.Phase) error {
	ctx, span := tracer.Start(ctx, "SendConfirmation")
	defer span.End()
	span.SetAttributes(attribute.String("city", city))

	err := s.sender.Send(ctx, s.confirmation(addr, city, current))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send confirmation email")
		return err
	}
	return nil
}

func (s Service) actionUrl(page, addr, city, action string) string {
	query := url.Values{}
	query.Set("email", addr)
	query.Set("city", city)
	query.Set("token", token.Generate(s.opts.Secret, addr, city, action))
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(s.opts.SiteUrl, "/"), page, query.Encode())
}

func (s Service) buyAlert(addr, city string) Message {
	display := cities.Display(city)
	unsubscribe := s.actionUrl("unsubscribe.html", addr, city, token.ActionUnsubscribe)

	text := fmt.Sprintf(`Prices have hit the low point of the cycle in %s.

Fill up within 24 hours.

Unsubscribe: %s`, display, unsubscribe)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 480px; margin: 0 auto; padding: 24px; color: #1a1a1a;">
    <p style="font-size: 18px; line-height: 1.6; margin: 0 0 24px 0;">
        Prices have hit the low point of the cycle in %s.
    </p>
    <p style="font-size: 24px; font-weight: 600; margin: 0 0 24px 0; color: #16a34a;">
        Fill up within 24 hours.
    </p>
    <hr style="border: none; border-top: 1px solid #e5e5e5; margin: 32px 0;">
    <p style="font-size: 13px; color: #666; margin: 0;">
        <a href="%s" style="color: #666;">Unsubscribe</a>
    </p>
</body>
</html>`, display, unsubscribe)

	return Message{
		To:      addr,
		Subject: fmt.Sprintf("⛽ %s petrol prices are at the bottom", display),
		Text:    text,
		Html:    html,
	}
}

func (s Service) confirmation(addr, city string, current phase.Phase) Message {
	display := cities.Display(city)
	confirm := s.actionUrl("confirm.html", addr, city, token.ActionConfirm)

	var statusNote string
	switch current {
	case phase.Buy:
		statusNote = fmt.Sprintf("%s prices are currently at the bottom, fill up today if you can.", display)
	case phase.Wait:
		statusNote = fmt.Sprintf("%s prices are not yet at the bottom. We'll email you when they are.", display)
	default:
		statusNote = fmt.Sprintf("We'll email you when %s prices hit the bottom of the cycle.", display)
	}

	text := fmt.Sprintf(`Click to confirm your Fuel Alert subscription:

%s

%s

You'll only hear from us when prices hit bottom. That's it.`, confirm, statusNote)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 480px; margin: 0 auto; padding: 24px; color: #1a1a1a;">
    <p style="font-size: 16px; line-height: 1.6; margin: 0 0 24px 0;">
        Click to confirm your subscription:
    </p>
    <p style="margin: 0 0 32px 0;">
        <a href="%s"
           style="display: inline-block; background: #16a34a; color: white; padding: 12px 24px;
                  text-decoration: none; border-radius: 6px; font-weight: 500;">
            Confirm subscription
        </a>
    </p>
    <p style="font-size: 14px; color: #666; line-height: 1.6; margin: 0 0 24px 0;">
        %s
    </p>
    <p style="font-size: 14px; color: #666; line-height: 1.6; margin: 0;">
        You'll only hear from us when prices hit bottom. That's it.
    </p>
</body>
</html>`, confirm, statusNote)

	return Message{
		To:      addr,
		Subject: "Confirm your Fuel Alert subscription",
		Text:    text,
		Html:    html,
	}
}
