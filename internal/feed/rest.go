package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pricewatch/internal/model"
)

// RESTFeed polls a candle HTTP API for the latest price of an asset.
// The upstream answers GET {base}?asset=SYM&frames=1m:1 with the most
// recent one-minute candle per asset.
type RESTFeed struct {
	base   string
	client *http.Client
	now    func() time.Time
}

// NewRESTFeed creates a REST feed against the given base URL.
func NewRESTFeed(base string) *RESTFeed {
	return &RESTFeed{
		base: base,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

type restCandle struct {
	TS           int64    `json:"ts"`
	Close        *float64 `json:"close"`
	CurrentPrice *float64 `json:"current_price"`
}

type restResponse struct {
	Data map[string][]restCandle `json:"data"`
}

// GetLatest fetches the newest candle for the asset. Transport errors, bad
// payloads and non-2xx statuses all surface as ErrFeedUnavailable so the
// evaluator treats them uniformly as a transient per-asset failure.
func (f *RESTFeed) GetLatest(ctx context.Context, asset string) (model.Sample, error) {
	q := url.Values{}
	q.Set("asset", asset)
	q.Set("frames", "1m:1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base+"?"+q.Encode(), nil)
	if err != nil {
		return model.Sample{}, fmt.Errorf("feed %s: %w: %v", asset, model.ErrFeedUnavailable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return model.Sample{}, fmt.Errorf("feed %s: %w: %v", asset, model.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Sample{}, fmt.Errorf("feed %s: %w: status %d", asset, model.ErrFeedUnavailable, resp.StatusCode)
	}

	var body restResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Sample{}, fmt.Errorf("feed %s: %w: decode: %v", asset, model.ErrFeedUnavailable, err)
	}

	candles := body.Data["1m"]
	if len(candles) == 0 {
		return model.Sample{}, fmt.Errorf("feed %s: %w: empty candle list", asset, model.ErrFeedUnavailable)
	}

	latest := candles[len(candles)-1]
	price := latest.CurrentPrice
	if price == nil {
		price = latest.Close
	}
	if price == nil {
		return model.Sample{}, fmt.Errorf("feed %s: %w: candle without price", asset, model.ErrFeedUnavailable)
	}

	ts := f.now().UTC()
	if latest.TS > 0 {
		ts = time.Unix(latest.TS, 0).UTC()
	}
	return model.Sample{TS: ts, Price: *price}, nil
}
