package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fuelalert/lib/filestore"
	"fuelalert/lib/phase"
	"fuelalert/services/notifier"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		previous phase.Phase
		expected Evaluation
	}{
		{
			name:     "wait to buy fires",
			text:     "Prices are at their lowest point, good time to buy",
			previous: phase.Wait,
			expected: Evaluation{Previous: phase.Wait, Phase: phase.Buy, Notify: true},
		},
		{
			name:     "still waiting",
			text:     "Prices are now decreasing and may decrease further",
			previous: phase.Wait,
			expected: Evaluation{Previous: phase.Wait, Phase: phase.Wait},
		},
		{
			name:     "already notified",
			text:     "Prices are at their lowest point",
			previous: phase.Buy,
			expected: Evaluation{Previous: phase.Buy, Phase: phase.Buy},
		},
		{
			name:     "unparseable keeps stored phase",
			text:     "Unusual market conditions reported",
			previous: phase.Wait,
			expected: Evaluation{Previous: phase.Wait, Phase: phase.Wait, Unparsed: true},
		},
		{
			name:     "buy back to wait never fires",
			text:     "prices are increasing",
			previous: phase.Buy,
			expected: Evaluation{Previous: phase.Buy, Phase: phase.Wait},
		},
		{
			name:     "unknown previous never fires",
			text:     "now is a good time to buy petrol",
			previous: phase.Unknown,
			expected: Evaluation{Previous: phase.Unknown, Phase: phase.Buy},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			got := Evaluate(test.text, test.previous)
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Fatalf("unexpected evaluation (-want +got):\n%s", diff)
			}
		})
	}
}

// shouldNotify must hold for exactly one (previous, next) pair
func TestEvaluateFiresOnlyOnWaitToBuy(t *testing.T) {
	texts := map[phase.Phase]string{
		phase.Buy:     "now is a good time to buy",
		phase.Wait:    "prices are increasing",
		phase.Unknown: "nothing recognizable",
	}
	for previous := range texts {
		for next, text := range texts {
			eval := Evaluate(text, previous)
			expected := previous == phase.Wait && next == phase.Buy
			require.Equal(t, expected, eval.Notify, "previous=%s next=%s", previous, next)
		}
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	first := Evaluate("now is a good time to buy", phase.Wait)
	second := Evaluate("now is a good time to buy", phase.Wait)
	require.Equal(t, first, second)
}

type fakeSource struct {
	tips map[string]string
	err  error
}

func (f *fakeSource) FetchBuyingTips(ctx context.Context) (map[string]string, error) {
	return f.tips, f.err
}

type fakeNotifier struct {
	dry      bool
	calls    []string
	sent     map[string][]string
	failWith map[string]string
}

func (f *fakeNotifier) NotifyBuy(ctx context.Context, city string, subscribers []string) notifier.DeliveryReport {
	f.calls = append(f.calls, city)
	report := notifier.DeliveryReport{City: city}
	for _, addr := range subscribers {
		if reason, bad := f.failWith[addr]; bad {
			report.Failures = append(report.Failures, notifier.Failure{Email: addr, Reason: reason})
			continue
		}
		if f.sent == nil {
			f.sent = map[string][]string{}
		}
		f.sent[city] = append(f.sent[city], addr)
		report.Sent++
	}
	return report
}

func (f *fakeNotifier) Dry() bool {
	return f.dry
}

type fakeDirectory struct {
	byCity map[string][]string
	err    error
}

func (f *fakeDirectory) ByCity(ctx context.Context) (map[string][]string, error) {
	return f.byCity, f.err
}

func newTestService(t *testing.T, source Source, n Notifier, directory SubscriberDirectory, opts Options) (Service, *filestore.Store[StateDoc]) {
	t.Helper()
	states := filestore.New[StateDoc](filepath.Join(t.TempDir(), "state.json"))
	return NewService(source, n, states, directory, opts), states
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	t.Cleanup(cancel)
	return ctx
}

func seedState(t *testing.T, states *filestore.Store[StateDoc], doc StateDoc) {
	t.Helper()
	err := states.Update(testContext(t), func(out *StateDoc) error {
		*out = doc
		return nil
	})
	require.NoError(t, err)
}

func TestRunNotifiesOnTransition(t *testing.T) {
	source := &fakeSource{tips: map[string]string{
		"sydney":    "prices appear to be around the lowest point, now is a good time to buy",
		"melbourne": "the price cycle is around a high point",
		"brisbane":  "prices are increasing",
		"adelaide":  "prices are decreasing and may decrease further",
		"perth":     "prices are decreasing",
	}}
	n := &fakeNotifier{}
	directory := &fakeDirectory{byCity: map[string][]string{
		"sydney":    {"a@x.com", "b@x.com"},
		"melbourne": {"c@x.com"},
	}}
	service, states := newTestService(t, source, n, directory, Options{})
	seedState(t, states, StateDoc{
		"sydney": {Phase: phase.Wait},
	})

	report, err := service.Run(testContext(t))
	require.NoError(t, err)
	require.Len(t, report.Cities, 5)
	require.Equal(t, 2, report.NotifiedTotal())
	require.Equal(t, []string{"sydney"}, n.calls)
	require.Equal(t, []string{"a@x.com", "b@x.com"}, n.sent["sydney"])

	// the committed phase reflects the new classification
	current, err := service.Current(testContext(t), "sydney")
	require.NoError(t, err)
	require.Equal(t, phase.Buy, current)
}

func TestRunDoesNotRenotifyWhileBuy(t *testing.T) {
	source := &fakeSource{tips: map[string]string{
		"sydney": "now is a good time to buy petrol",
	}}
	n := &fakeNotifier{}
	directory := &fakeDirectory{byCity: map[string][]string{
		"sydney": {"a@x.com"},
	}}
	service, states := newTestService(t, source, n, directory, Options{})
	seedState(t, states, StateDoc{})

	// first run fires exactly once
	report, err := service.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, 1, report.NotifiedTotal())

	// repeat run with unchanged advisory text must stay quiet
	report, err = service.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, 0, report.NotifiedTotal())
	require.Len(t, n.calls, 1)
}

func TestRunUnknownKeepsStoredPhase(t *testing.T) {
	source := &fakeSource{tips: map[string]string{
		"sydney": "Unusual market conditions reported",
	}}
	n := &fakeNotifier{}
	service, states := newTestService(t, source, n, &fakeDirectory{}, Options{})
	seedState(t, states, StateDoc{
		"sydney": {Phase: phase.Wait, CheckedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
	})

	report, err := service.Run(testContext(t))
	require.NoError(t, err)
	require.Len(t, n.calls, 0)

	var row CityResult
	for _, c := range report.Cities {
		if c.City == "sydney" {
			row = c
		}
	}
	require.NotEmpty(t, row.Warning)
	require.Equal(t, phase.Wait, row.Phase)

	// the stored record was not overwritten
	doc, err := service.States(testContext(t))
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), doc["sydney"].CheckedAt)
}

func TestRunMissingCityIsSkipped(t *testing.T) {
	source := &fakeSource{tips: map[string]string{
		"perth": "now is a good time to buy",
	}}
	n := &fakeNotifier{}
	service, states := newTestService(t, source, n, &fakeDirectory{}, Options{})
	seedState(t, states, StateDoc{})

	report, err := service.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, 4, report.SkippedTotal())
	require.Equal(t, []string{"perth"}, n.calls)
}

func TestRunSubscriberFailureIsolation(t *testing.T) {
	source := &fakeSource{tips: map[string]string{
		"sydney": "now is a good time to buy",
		"perth":  "now is a good time to buy",
	}}
	n := &fakeNotifier{failWith: map[string]string{"broken@x.com": "mailbox full"}}
	directory := &fakeDirectory{byCity: map[string][]string{
		"sydney": {"a@x.com", "broken@x.com"},
		"perth":  {"b@x.com"},
	}}
	service, states := newTestService(t, source, n, directory, Options{})
	seedState(t, states, StateDoc{})

	report, err := service.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, 2, report.NotifiedTotal())
	require.Equal(t, 1, report.FailureTotal())
	require.Equal(t, []string{"a@x.com"}, n.sent["sydney"])
	require.Equal(t, []string{"b@x.com"}, n.sent["perth"])
}

func TestRunSourceFailureAborts(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("connection refused")}
	n := &fakeNotifier{}
	service, _ := newTestService(t, source, n, &fakeDirectory{}, Options{})

	_, err := service.Run(testContext(t))
	require.Error(t, err)
	require.Len(t, n.calls, 0)
}

func TestRunSubscriberStoreFailureAbortsBeforeSending(t *testing.T) {
	source := &fakeSource{tips: map[string]string{
		"sydney": "now is a good time to buy",
	}}
	n := &fakeNotifier{}
	directory := &fakeDirectory{err: fmt.Errorf("permission denied")}
	service, states := newTestService(t, source, n, directory, Options{})
	seedState(t, states, StateDoc{})

	_, err := service.Run(testContext(t))
	require.Error(t, err)
	require.Len(t, n.calls, 0)
}

func TestRunStateStoreFailureAbortsBeforeSending(t *testing.T) {
	source := &fakeSource{tips: map[string]string{
		"sydney": "now is a good time to buy",
	}}
	n := &fakeNotifier{}
	directory := &fakeDirectory{byCity: map[string][]string{"sydney": {"a@x.com"}}}
	service, states := newTestService(t, source, n, directory, Options{})

	err := os.WriteFile(states.Path(), []byte("{corrupt"), 0644)
	require.NoError(t, err)

	_, err = service.Run(testContext(t))
	require.Error(t, err)
	require.Len(t, n.calls, 0)
}

func TestRunDryModeDoesNotCommitFiredTransition(t *testing.T) {
	source := &fakeSource{tips: map[string]string{
		"sydney": "now is a good time to buy",
	}}
	n := &fakeNotifier{dry: true}
	directory := &fakeDirectory{byCity: map[string][]string{"sydney": {"a@x.com"}}}
	service, states := newTestService(t, source, n, directory, Options{})
	seedState(t, states, StateDoc{})

	report, err := service.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, 1, report.NotifiedTotal())

	// the transition stays pending, so the next live run still fires
	current, err := service.Current(testContext(t), "sydney")
	require.NoError(t, err)
	require.Equal(t, phase.Wait, current)

	// unless the operator opted into committing anyway
	service2, states2 := newTestService(t, source, n, directory, Options{CommitWithoutDelivery: true})
	seedState(t, states2, StateDoc{})
	_, err = service2.Run(testContext(t))
	require.NoError(t, err)
	current, err = service2.Current(testContext(t), "sydney")
	require.NoError(t, err)
	require.Equal(t, phase.Buy, current)
}

func TestRunColdStartDefaultsToWait(t *testing.T) {
	source := &fakeSource{tips: map[string]string{
		"sydney": "now is a good time to buy",
	}}
	n := &fakeNotifier{}
	directory := &fakeDirectory{byCity: map[string][]string{"sydney": {"a@x.com"}}}
	service, _ := newTestService(t, source, n, directory, Options{})

	// no seeded state at all: the first observed bottom alerts
	report, err := service.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, 1, report.NotifiedTotal())
}
