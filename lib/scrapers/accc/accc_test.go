package accc

import (
	"testing"

	"fuelalert/lib/phase"

	"github.com/stretchr/testify/require"
)

const samplePage = `
<html>
<body>
<h2>Petrol prices in Sydney</h2>
<p><strong>Buying tip</strong> (updated on Friday):</p>
<ul>
<li>prices appear to be around the <strong>lowest</strong> point of the cycle</li>
<li>now is a good time for motorists to <strong>buy</strong> petrol.</li>
</ul>
<p>This chart shows daily average regular unleaded petrol prices in Sydney over the past 45 days.</p>
<h2>Petrol prices in Melbourne</h2>
<p><strong>Buying tip</strong> (updated on Friday):</p>
<ul>
<li>while the price cycle is around a high point we encourage motorists to use
fuel price apps and websites to find lower priced retailers.</li>
</ul>
<p>This chart shows daily average regular unleaded petrol prices in Melbourne over the past 45 days.</p>
<h2>Petrol prices in Brisbane</h2>
<p><strong>Buying tip</strong>:</p>
<p>while the price cycle is around a high point we encourage motorists to use
fuel price apps and websites to find lower priced retailers.</p>
<p>Source: FUELtrac</p>
<h2>Petrol prices in Adelaide</h2>
<p><strong>Buying tip</strong>:</p>
<p>prices appear to be around the lowest point of the cycle, now is a good
time for motorists to buy petrol.</p>
<h2>Petrol prices in Perth</h2>
<p><strong>Buying tip</strong>:</p>
<p>prices are decreasing and may decrease further, motorists looking to buy
petrol can shop around for the lowest prices.</p>
</body>
</html>`

func TestExtractBuyingTips(t *testing.T) {
	tips := ExtractBuyingTips(samplePage)
	require.Len(t, tips, 5)

	expected := map[string]phase.Phase{
		"sydney":    phase.Buy,
		"melbourne": phase.Wait,
		"brisbane":  phase.Wait,
		"adelaide":  phase.Buy,
		"perth":     phase.Wait,
	}
	for city, want := range expected {
		require.NotEmpty(t, tips[city], "city: %s", city)
		require.Equal(t, want, phase.Classify(tips[city]), "city: %s, tip: %q", city, tips[city])
	}
}

// a missing section should not take the other cities down with it
func TestExtractBuyingTipsPartialPage(t *testing.T) {
	partial := `
<h2>Petrol prices in Sydney</h2>
<p>Buying tip:</p>
<p>now is a good time for motorists to buy petrol.</p>`

	tips := ExtractBuyingTips(partial)
	require.Len(t, tips, 1)
	require.Contains(t, tips, "sydney")
}

func TestExtractBuyingTipsRegexFallback(t *testing.T) {
	// no heading elements at all, only raw text structure
	raw := `<div>Petrol prices in Perth</div>
<div>Buying tip: prices are decreasing and may decrease further.</div>
<div>This chart shows daily average prices.</div>`

	tips := ExtractBuyingTips(raw)
	require.Equal(t, phase.Wait, phase.Classify(tips["perth"]))
}

func TestExtractBuyingTipsEmptyPage(t *testing.T) {
	require.Len(t, ExtractBuyingTips(""), 0)
	require.Len(t, ExtractBuyingTips("<html><body>maintenance</body></html>"), 0)
}
