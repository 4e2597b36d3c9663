package notifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fuelalert/lib/phase"

	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent     []Message
	failWith map[string]error
}

func (f *fakeSender) Send(ctx context.Context, msg Message) error {
	if err := f.failWith[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestNotifyBuy(t *testing.T) {
	sender := &fakeSender{}
	service := NewService(sender, Options{
		SiteUrl: "https://example.com/fuel-alert",
		Secret:  "test-secret",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	report := service.NotifyBuy(ctx, "sydney", []string{"a@x.com", "b@x.com"})
	require.Equal(t, 2, report.Sent)
	require.Len(t, report.Failures, 0)
	require.Len(t, sender.sent, 2)

	msg := sender.sent[0]
	require.Equal(t, "a@x.com", msg.To)
	require.Contains(t, msg.Subject, "Sydney")
	require.Contains(t, msg.Text, "Fill up within 24 hours")
	require.Contains(t, msg.Text, "unsubscribe")
	require.Contains(t, msg.Html, "Unsubscribe")
}

func TestNotifyBuyFailureIsolation(t *testing.T) {
	sender := &fakeSender{
		failWith: map[string]error{
			"broken@x.com": fmt.Errorf("mailbox unavailable"),
		},
	}
	service := NewService(sender, Options{SiteUrl: "https://example.com", Secret: "s"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	report := service.NotifyBuy(ctx, "perth", []string{"a@x.com", "broken@x.com", "c@x.com"})
	require.Equal(t, 2, report.Sent)
	require.Len(t, report.Failures, 1)
	require.Equal(t, "broken@x.com", report.Failures[0].Email)
	require.Equal(t, "mailbox unavailable", report.Failures[0].Reason)
}

func TestNotifyBuyNoSubscribers(t *testing.T) {
	sender := &fakeSender{}
	service := NewService(sender, Options{SiteUrl: "https://example.com", Secret: "s"})

	report := service.NotifyBuy(context.Background(), "adelaide", nil)
	require.Equal(t, 0, report.Sent)
	require.Len(t, report.Failures, 0)
	require.Len(t, sender.sent, 0)
}

func TestSendConfirmation(t *testing.T) {
	sender := &fakeSender{}
	service := NewService(sender, Options{SiteUrl: "https://example.com", Secret: "s"})

	err := service.SendConfirmation(context.Background(), "a@x.com", "melbourne", phase.Wait)
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0].Text, "confirm.html")
	require.Contains(t, sender.sent[0].Text, "not yet at the bottom")
}

func TestDryModeDetection(t *testing.T) {
	dry := NewFromConfig(SmtpConfig{}, Options{})
	require.True(t, dry.Dry())

	live := NewFromConfig(SmtpConfig{
		Server:       "smtp.example.com",
		Port:         587,
		EmailAddress: "alerts@example.com",
		Password:     "hunter2",
	}, Options{})
	require.False(t, live.Dry())
}
