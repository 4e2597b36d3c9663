// Package subscriptions manages the city to subscriber-email mapping
// and the double-opt-in lifecycle around it. Storage holds email and
// city only; nothing else about a subscriber is ever recorded.
package subscriptions

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"fuelalert/lib/cities"
	"fuelalert/lib/filestore"
	"fuelalert/lib/phase"
	"fuelalert/lib/token"
	"fuelalert/services/notifier"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/subscriptions")

// Doc is the whole subscriber store document: city to email set.
type Doc map[string][]string

// PhaseDirectory reads a city's current stored phase, for the status
// note in confirmation emails.
type PhaseDirectory interface {
	Current(ctx context.Context, city string) (phase.Phase, error)
}

// ValidationError marks input rejected at the boundary, before it
// reaches any store.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return e.Reason
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func normalizeEmail(addr string) string {
	return strings.Trim(strings.ToLower(addr), " \t\n")
}

func validateEmail(addr string) error {
	if len(addr) > 254 || !emailRegex.MatchString(addr) {
		return ValidationError{Reason: "invalid email address"}
	}
	return nil
}

func validateCity(city string) error {
	if cities.Valid(city) {
		return nil
	}
	if suggestion, ok := cities.Closest(city); ok {
		return ValidationError{Reason: fmt.Sprintf("unknown city %q, did you mean %q?", city, suggestion)}
	}
	return ValidationError{Reason: fmt.Sprintf(
		"unknown city %q, choose from: %s", city, strings.Join(cities.All, ", "),
	)}
}

type Service struct {
	store  *filestore.Store[Doc]
	mailer notifier.Service
	phases PhaseDirectory
	secret string
}

func NewService(store *filestore.Store[Doc], mailer notifier.Service, phases PhaseDirectory, secret string) Service {
	return Service{
		store:  store,
		mailer: mailer,
		phases: phases,
		secret: secret,
	}
}

// Subscribe adds an (email, city) record. Subscribing twice is a no-op,
// not an error.
func (s Service) Subscribe(ctx context.Context, addr, city string) error {
	ctx, span := tracer.Start(ctx, "Subscribe")
	defer span.End()

	addr = normalizeEmail(addr)
	city = cities.Normalize(city)
	if err := validateEmail(addr); err != nil {
		return err
	}
	if err := validateCity(city); err != nil {
		return err
	}
	span.SetAttributes(attribute.String("city", city))

	err := s.store.Update(ctx, func(doc *Doc) error {
		if *doc == nil {
			*doc = Doc{}
		}
		if slices.Contains((*doc)[city], addr) {
			return nil
		}
		(*doc)[city] = append((*doc)[city], addr)
		slices.Sort((*doc)[city])
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update subscriber store")
		return err
	}
	return nil
}

// Unsubscribe removes an (email, city) record. Removing a record that
// does not exist is a no-op.
func (s Service) Unsubscribe(ctx context.Context, addr, city string) error {
	ctx, span := tracer.Start(ctx, "Unsubscribe")
	defer span.End()

	addr = normalizeEmail(addr)
	city = cities.Normalize(city)
	if err := validateCity(city); err != nil {
		return err
	}
	span.SetAttributes(attribute.String("city", city))

	err := s.store.Update(ctx, func(doc *Doc) error {
		if *doc == nil {
			return nil
		}
		(*doc)[city] = slices.DeleteFunc((*doc)[city], func(existing string) bool {
			return existing == addr
		})
		if len((*doc)[city]) == 0 {
			delete(*doc, city)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update subscriber store")
		return err
	}
	return nil
}

// UnsubscribeAll removes an email from every city.
func (s Service) UnsubscribeAll(ctx context.Context, addr string) error {
	ctx, span := tracer.Start(ctx, "UnsubscribeAll")
	defer span.End()

	addr = normalizeEmail(addr)

	err := s.store.Update(ctx, func(doc *Doc) error {
		for city := range *doc {
			(*doc)[city] = slices.DeleteFunc((*doc)[city], func(existing string) bool {
				return existing == addr
			})
			if len((*doc)[city]) == 0 {
				delete(*doc, city)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update subscriber store")
		return err
	}
	return nil
}

// IsSubscribed reports whether the (email, city) record exists.
func (s Service) IsSubscribed(ctx context.Context, addr, city string) (bool, error) {
	addr = normalizeEmail(addr)
	city = cities.Normalize(city)

	subscribed := false
	err := s.store.View(ctx, func(doc Doc) error {
		subscribed = slices.Contains(doc[city], addr)
		return nil
	})
	if err != nil {
		return false, err
	}
	return subscribed, nil
}

// ByCity reads the whole subscriber store, for the batch run.
func (s Service) ByCity(ctx context.Context) (map[string][]string, error) {
	var out map[string][]string
	err := s.store.View(ctx, func(doc Doc) error {
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string][]string{}
	}
	return out, nil
}

// RequestSubscription validates a signup and sends the confirmation
// email. Nothing is stored until the link in it is followed.
func (s Service) RequestSubscription(ctx context.Context, addr, city string) error {
	ctx, span := tracer.Start(ctx, "RequestSubscription")
	defer span.End()

	addr = normalizeEmail(addr)
	city = cities.Normalize(city)
	if err := validateEmail(addr); err != nil {
		return err
	}
	if err := validateCity(city); err != nil {
		return err
	}
	span.SetAttributes(attribute.String("city", city))

	already, err := s.IsSubscribed(ctx, addr, city)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read subscriber store")
		return err
	}
	if already {
		return ValidationError{Reason: "this email is already subscribed"}
	}

	current := phase.Unknown
	if s.phases != nil {
		current, err = s.phases.Current(ctx, city)
		if err != nil {
			// the status note is best effort, the signup still works
			span.RecordError(err)
			current = phase.Unknown
		}
	}

	err = s.mailer.SendConfirmation(ctx, addr, city, current)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send confirmation email")
		return err
	}
	return nil
}

// Confirm finishes a signup begun by RequestSubscription.
func (s Service) Confirm(ctx context.Context, addr, city, presented string) error {
	ctx, span := tracer.Start(ctx, "Confirm")
	defer span.End()

	addr = normalizeEmail(addr)
	city = cities.Normalize(city)
	if err := validateCity(city); err != nil {
		return err
	}
	if !token.Verify(s.secret, addr, city, token.ActionConfirm, presented) {
		return ValidationError{Reason: "invalid or expired confirmation link"}
	}

	return s.Subscribe(ctx, addr, city)
}

// VerifyUnsubscribe checks a one-click unsubscribe token.
func (s Service) VerifyUnsubscribe(addr, city, presented string) bool {
	return token.Verify(s.secret, normalizeEmail(addr), cities.Normalize(city), token.ActionUnsubscribe, presented)
}
