package phase

import (
	"strings"

	"fuelalert/lib/textutil"
)

// Phase is the classification of a city's position in the petrol price cycle.
type Phase int

const (
	// Unknown means the advisory text matched no known phrasing.
	Unknown Phase = iota
	// Wait means prices are not at the bottom of the cycle.
	Wait
	// Buy means prices are at or around the bottom of the cycle.
	Buy
)

func (p Phase) String() string {
	switch p {
	case Buy:
		return "BUY"
	case Wait:
		return "WAIT"
	default:
		return "UNKNOWN"
	}
}

// Parse maps the persisted form back to a Phase. Anything
// unrecognized comes back as Unknown.
func Parse(s string) Phase {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy
	case "WAIT":
		return Wait
	default:
		return Unknown
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	*p = Parse(string(text))
	return nil
}

// wait phrases are checked first: the ACCC sometimes mentions "the lowest
// prices" while telling motorists to shop around, and a missed alert is
// cheaper than a false one.
var waitPhrases = []string{
	"decreasing",
	"may decrease",
	"shop around",
	"high point",
	"increasing",
	"around a high",
}

var buyPhrases = []string{
	"lowest point",
	"good time to buy",
	"now is a good time",
	"around the lowest",
	"at the lowest",
}

// Classify maps a free-text buying tip to a Phase by case- and
// whitespace-insensitive substring matching. It is pure and
// deterministic.
func Classify(text string) Phase {
	if textutil.ContainsAny(text, waitPhrases) {
		return Wait
	}
	if textutil.ContainsAny(text, buyPhrases) {
		return Buy
	}
	return Unknown
}
