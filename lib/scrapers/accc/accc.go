// Package accc scrapes the ACCC petrol price cycles page and extracts
// the per-city buying tip text.
package accc

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"fuelalert/lib/cities"
	"fuelalert/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/accc")

const DefaultUrl = "https://www.accc.gov.au/consumers/petrol-and-fuel/petrol-price-cycles-in-the-5-largest-cities"
const defaultUserAgent = "FuelPriceAlert/1.0 (consumer savings tool)"

type ClientOptions struct {
	Url            string `json:"url"`
	UserAgent      string `json:"user_agent"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type Client struct {
	url  string
	http *resty.Client
}

func NewClient(opts ClientOptions) Client {
	if opts.Url == "" {
		opts.Url = DefaultUrl
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = 30
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(time.Second * time.Duration(opts.TimeoutSeconds))

	telemetry.InstrumentResty(client, "scrapers/accc/http")

	return Client{
		url:  opts.Url,
		http: client,
	}
}

// FetchBuyingTips fetches the advisory page once and returns the buying
// tip text keyed by city. A city whose section could not be found is
// simply absent from the result; only a failed page fetch is an error.
func (c Client) FetchBuyingTips(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "FetchBuyingTips")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(c.url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch advisory page")
		return nil, err
	}
	if res.StatusCode() != 200 {
		err := fmt.Errorf("advisory page returned status %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tips := ExtractBuyingTips(res.String())
	span.SetAttributes(attribute.Int("cities_found", len(tips)))
	return tips, nil
}

// ExtractBuyingTips pulls the per-city buying tip out of the page HTML.
// It walks the document structure first and falls back to a regex pass
// per city, since the page layout has shifted under us before.
func ExtractBuyingTips(html string) map[string]string {
	tips := map[string]string{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		doc.Find("h2, h3").Each(func(_ int, heading *goquery.Selection) {
			city, ok := cityFromHeading(heading.Text())
			if !ok {
				return
			}
			tip := collectTip(heading)
			if tip != "" {
				tips[city] = tip
			}
		})
	}

	for _, city := range cities.All {
		if tips[city] != "" {
			continue
		}
		if tip := extractTipRegex(html, city); tip != "" {
			tips[city] = tip
		}
	}

	return tips
}

// headings look like "Petrol prices in Sydney"
func cityFromHeading(heading string) (string, bool) {
	heading = strings.ToLower(normalizeSpace(heading))
	rest, found := strings.CutPrefix(heading, "petrol prices in ")
	if !found {
		return "", false
	}
	city := cities.Normalize(rest)
	if !cities.Valid(city) {
		return "", false
	}
	return city, true
}

// collectTip gathers the text of the "Buying tip" block that follows a
// city heading, stopping at the next heading or at the chart caption.
func collectTip(heading *goquery.Selection) string {
	var parts []string
	seenTip := false

	for sib := heading.Next(); sib.Length() > 0; sib = sib.Next() {
		switch goquery.NodeName(sib) {
		case "h2", "h3":
			return strings.TrimSpace(strings.Join(parts, " "))
		}

		text := normalizeSpace(sib.Text())
		lowered := strings.ToLower(text)
		if strings.Contains(lowered, "this chart") || strings.Contains(lowered, "source:") {
			break
		}
		if !seenTip {
			if strings.Contains(lowered, "buying tip") {
				seenTip = true
				if _, after, found := strings.Cut(text, ":"); found {
					if trimmed := strings.TrimSpace(after); trimmed != "" {
						parts = append(parts, trimmed)
					}
				}
			}
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}

var tagRegex = regexp.MustCompile(`<[^>]+>`)
var spaceRegex = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

func extractTipRegex(html, city string) string {
	pattern, err := regexp.Compile(fmt.Sprintf(
		`(?is)petrol prices in %s.*?buying tip.*?:(.*?)(?:this chart|source:|\z)`,
		regexp.QuoteMeta(city),
	))
	if err != nil {
		return ""
	}
	groups := pattern.FindStringSubmatch(html)
	if len(groups) < 2 {
		return ""
	}
	return normalizeSpace(tagRegex.ReplaceAllString(groups[1], " "))
}
