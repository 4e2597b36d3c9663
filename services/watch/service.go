// Package watch runs the scheduled advisory check: fetch each city's
// buying tip, classify it, diff against the stored phase, and alert
// subscribers on a WAIT to BUY transition.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fuelalert/lib/cities"
	"fuelalert/lib/filestore"
	"fuelalert/lib/phase"
	"fuelalert/lib/timezone"
	"fuelalert/services/notifier"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/watch")

// CityState is the one durable record per city.
type CityState struct {
	Phase     phase.Phase `json:"phase"`
	CheckedAt time.Time   `json:"checked_at"`
}

// StateDoc is the whole state store document, keyed by city.
type StateDoc map[string]CityState

// Source provides the raw advisory text per city.
type Source interface {
	FetchBuyingTips(ctx context.Context) (map[string]string, error)
}

// Notifier delivers buy alerts for one city at a time.
type Notifier interface {
	NotifyBuy(ctx context.Context, city string, subscribers []string) notifier.DeliveryReport
	Dry() bool
}

// SubscriberDirectory reads the whole subscriber store.
type SubscriberDirectory interface {
	ByCity(ctx context.Context) (map[string][]string, error)
}

// Evaluation is the outcome of classifying one advisory text against a
// city's previously stored phase.
type Evaluation struct {
	Previous phase.Phase
	Phase    phase.Phase
	Notify   bool
	// Unparsed marks a classification failure: the stored phase is
	// retained and nothing fires.
	Unparsed bool
}

// Evaluate is the transition rule. Only WAIT to BUY fires; an
// unclassifiable text keeps the previous phase.
func Evaluate(text string, previous phase.Phase) Evaluation {
	next := phase.Classify(text)
	if next == phase.Unknown {
		return Evaluation{
			Previous: previous,
			Phase:    previous,
			Unparsed: true,
		}
	}
	return Evaluation{
		Previous: previous,
		Phase:    next,
		Notify:   previous == phase.Wait && next == phase.Buy,
	}
}

type Options struct {
	// CommitWithoutDelivery lets a dry-run transport commit fired
	// transitions anyway. Off by default: an alert that never left the
	// machine should not be marked handled.
	CommitWithoutDelivery bool
}

type Service struct {
	source      Source
	notifier    Notifier
	states      *filestore.Store[StateDoc]
	subscribers SubscriberDirectory
	opts        Options
}

func NewService(source Source, n Notifier, states *filestore.Store[StateDoc], subscribers SubscriberDirectory, opts Options) Service {
	return Service{
		source:      source,
		notifier:    n,
		states:      states,
		subscribers: subscribers,
		opts:        opts,
	}
}

// Current reads a city's stored phase. A city never seen before reads
// as WAIT.
func (s Service) Current(ctx context.Context, city string) (phase.Phase, error) {
	current := phase.Wait
	err := s.states.View(ctx, func(doc StateDoc) error {
		if state, ok := doc[city]; ok {
			current = state.Phase
		}
		return nil
	})
	if err != nil {
		return phase.Unknown, err
	}
	return current, nil
}

// States reads the whole state store.
func (s Service) States(ctx context.Context) (StateDoc, error) {
	var out StateDoc
	err := s.states.View(ctx, func(doc StateDoc) error {
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Run performs one scheduled batch check over every monitored city.
// Store failures abort the run before any email goes out; everything
// per-city or per-recipient lands in the report instead.
func (s Service) Run(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	report := Report{
		ID:        uuid.NewString(),
		StartedAt: timezone.Now(),
	}
	span.SetAttributes(attribute.String("run_id", report.ID))

	var states StateDoc
	err := s.states.View(ctx, func(doc StateDoc) error {
		states = doc
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read state store")
		return report, fmt.Errorf("read state store: %w", err)
	}

	subscribers, err := s.subscribers.ByCity(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read subscriber store")
		return report, fmt.Errorf("read subscriber store: %w", err)
	}

	tips, err := s.source.FetchBuyingTips(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch advisory text")
		return report, fmt.Errorf("fetch advisory: %w", err)
	}

	for _, city := range cities.All {
		result, err := s.checkCity(ctx, city, tips, states, subscribers[city])
		report.Cities = append(report.Cities, result)
		if err != nil {
			// a state store that stopped taking writes mid-run: give
			// up rather than keep deciding transitions we cannot
			// record. already-sent alerts simply re-send next run.
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to persist state")
			report.FinishedAt = timezone.Now()
			return report, fmt.Errorf("persist state for %s: %w", city, err)
		}
	}

	report.FinishedAt = timezone.Now()
	span.SetAttributes(
		attribute.Int("notified", report.NotifiedTotal()),
		attribute.Int("delivery_failures", report.FailureTotal()),
	)
	return report, nil
}

func (s Service) checkCity(ctx context.Context, city string, tips map[string]string, states StateDoc, subscribers []string) (CityResult, error) {
	ctx, span := tracer.Start(ctx, "checkCity")
	defer span.End()
	span.SetAttributes(attribute.String("city", city))

	result := CityResult{City: city, Previous: phase.Wait}
	if state, known := states[city]; known {
		result.Previous = state.Phase
	}

	tip, ok := tips[city]
	if !ok || strings.TrimSpace(tip) == "" {
		result.Phase = result.Previous
		result.Skipped = "no advisory text found for city"
		slog.WarnContext(ctx, "skipping city, no advisory text", "city", city)
		return result, nil
	}
	result.Tip = tip

	eval := Evaluate(tip, result.Previous)
	result.Phase = eval.Phase
	if eval.Unparsed {
		result.Warning = "advisory text did not classify, keeping stored phase"
		slog.WarnContext(ctx, "could not classify advisory text", "city", city, "tip", tip)
		return result, nil
	}

	if eval.Notify {
		delivery := s.notifier.NotifyBuy(ctx, city, subscribers)
		result.Notified = delivery.Sent
		result.Failures = delivery.Failures
		slog.InfoContext(ctx, "buy transition detected",
			"city", city,
			"notified", delivery.Sent,
			"failed", len(delivery.Failures),
		)
		if s.notifier.Dry() && !s.opts.CommitWithoutDelivery {
			result.Warning = "dry-run transport, transition left uncommitted"
			return result, nil
		}
	}

	// the phase only commits after delivery was attempted. a crash in
	// between re-sends on the next run, which beats losing the alert.
	err := s.states.Update(ctx, func(doc *StateDoc) error {
		if *doc == nil {
			*doc = StateDoc{}
		}
		(*doc)[city] = CityState{
			Phase:     eval.Phase,
			CheckedAt: timezone.Now(),
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	result.Committed = true
	return result, nil
}
