// Package engine drives alert evaluation: a scheduler ticks at a fixed
// cadence and an evaluator walks every asset with active alerts, pulling
// fresh prices, deriving indicators and firing crossed conditions.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pricewatch/internal/feed"
	"pricewatch/internal/indicator"
	"pricewatch/internal/metrics"
	"pricewatch/internal/model"
	"pricewatch/internal/notification"
	"pricewatch/internal/registry"
)

const (
	// DefaultWorkers bounds per-asset parallelism within a cycle.
	DefaultWorkers = 4

	// DefaultFeedTimeout bounds one upstream fetch so a single unresponsive
	// asset cannot stall the whole cycle.
	DefaultFeedTimeout = 5 * time.Second

	// feedFailureWarnAfter is how many consecutive per-asset feed failures
	// escalate the log level. The asset is never auto-cancelled; a symbol
	// the upstream rejects permanently just keeps degrading gracefully.
	feedFailureWarnAfter = 10
)

// Evaluator tests every registered alert against fresh market data.
// One EvaluateCycle call is one tick; assets are evaluated by a bounded
// worker pool since they share no state beyond the registry and store.
type Evaluator struct {
	reg   *registry.Registry
	store *indicator.Store
	feed  feed.PriceFeed
	sink  notification.Sink
	met   *metrics.Metrics
	log   *slog.Logger

	workers     int
	feedTimeout time.Duration

	failMu   sync.Mutex
	failures map[string]int // consecutive feed failures per asset
}

// EvaluatorOptions tunes the evaluator. Zero values select defaults.
type EvaluatorOptions struct {
	Workers     int
	FeedTimeout time.Duration
}

// NewEvaluator wires an evaluator over its collaborators.
func NewEvaluator(reg *registry.Registry, store *indicator.Store, pf feed.PriceFeed,
	sink notification.Sink, met *metrics.Metrics, log *slog.Logger, opts EvaluatorOptions) *Evaluator {

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = DefaultFeedTimeout
	}
	return &Evaluator{
		reg:         reg,
		store:       store,
		feed:        pf,
		sink:        sink,
		met:         met,
		log:         log,
		workers:     opts.Workers,
		feedTimeout: opts.FeedTimeout,
		failures:    make(map[string]int),
	}
}

// EvaluateCycle runs one full tick over every asset with active alerts.
// Per-asset failures are contained: they never abort the cycle or touch
// other assets' alerts.
func (e *Evaluator) EvaluateCycle(ctx context.Context) {
	start := time.Now()
	assets := e.reg.ListActiveAssets()

	c := e.reg.Count()
	e.met.ActiveAlerts.Set(float64(c.Active))
	e.met.ActiveAssets.Set(float64(len(assets)))

	if len(assets) == 0 {
		return
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	workers := e.workers
	if workers > len(assets) {
		workers = len(assets)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range jobs {
				e.evaluateAsset(ctx, asset)
			}
		}()
	}
	for _, asset := range assets {
		jobs <- asset
	}
	close(jobs)
	wg.Wait()

	e.met.CycleDur.Observe(time.Since(start).Seconds())
	e.log.Debug("cycle complete", "assets", len(assets), "took", time.Since(start))
}

// evaluateAsset fetches one asset's price and tests all its active alerts.
func (e *Evaluator) evaluateAsset(ctx context.Context, asset string) {
	e.met.AssetsEvaluated.Inc()

	fctx, cancel := context.WithTimeout(ctx, e.feedTimeout)
	fetchStart := time.Now()
	sample, err := e.feed.GetLatest(fctx, asset)
	cancel()
	e.met.FeedLatency.Observe(time.Since(fetchStart).Seconds())

	if err != nil {
		// Transient by policy: no alert state changes on a dead feed.
		e.met.FeedErrors.Inc()
		n := e.bumpFailures(asset)
		if n >= feedFailureWarnAfter {
			e.log.Warn("feed failing persistently", "asset", asset, "consecutive", n, "err", err)
		} else {
			e.log.Info("feed unavailable, skipping asset", "asset", asset, "err", err)
		}
		return
	}
	e.resetFailures(asset)

	e.store.Ingest(asset, sample)

	for _, alert := range e.reg.ListActiveFor(asset) {
		e.evaluateAlert(ctx, alert, sample)
	}
}

// evaluateAlert applies the crossing rule to one alert and fires it when
// the observed value moved from the non-satisfying to the satisfying side.
func (e *Evaluator) evaluateAlert(ctx context.Context, alert model.Alert, sample model.Sample) {
	e.met.AlertsEvaluated.Inc()

	value, ok := e.observedValue(alert, sample)
	if !ok {
		return // not yet evaluable, no state change
	}

	side := sideOf(value, alert.Condition.Threshold)
	fires := crossed(alert.Condition, alert.LastSide, side)

	// The side is recorded every evaluation, fire or not, so the next tick
	// detects a crossing rather than re-triggering on a value that merely
	// stays past the threshold.
	if !fires {
		e.reg.UpdateObservedSide(alert.ID, side)
		return
	}

	if alert.OneShot {
		if !e.reg.MarkFired(alert.ID) {
			// Someone resolved the alert since we listed it (cancel or a
			// concurrent fire). Do not notify.
			return
		}
		alert.State = model.StateFired
	} else {
		if !e.reg.MarkTriggered(alert.ID) {
			return
		}
		e.reg.UpdateObservedSide(alert.ID, side)
	}
	alert.TriggeredAt = sample.TS
	alert.LastSide = side

	e.met.AlertsFired.Inc()
	e.log.Info("alert fired",
		"alert", alert.ID, "owner", alert.Owner, "asset", alert.Asset,
		"type", alert.Condition.Type, "value", value)

	ev := model.Event{Alert: alert, Value: value, TS: sample.TS}
	if err := e.sink.Notify(ctx, ev); err != nil {
		// Best-effort notify: the state transition already happened and is
		// never rolled back, so a sink failure can under-deliver but never
		// double-fire.
		e.log.Warn("notify failed", "alert", alert.ID, "err", err)
	}
}

// observedValue resolves the value an alert's condition is tested against:
// the raw price, or the requested indicator. ok=false means the condition
// is not evaluable this tick (insufficient history).
func (e *Evaluator) observedValue(alert model.Alert, sample model.Sample) (float64, bool) {
	c := alert.Condition
	switch c.Type {
	case model.PriceAbove, model.PriceBelow:
		return sample.Price, true
	case model.IndicatorCross:
		v, err := e.store.Compute(alert.Asset, c.Kind, c.Period)
		if err != nil {
			if errors.Is(err, model.ErrInsufficientHistory) {
				e.met.HistorySkips.Inc()
				return 0, false
			}
			e.log.Warn("indicator compute failed", "alert", alert.ID, "err", err)
			return 0, false
		}
		return v.Value, true
	default:
		return 0, false
	}
}

// sideOf classifies a value relative to a threshold. A value exactly on the
// threshold counts as below: crossing requires strictly exceeding it.
func sideOf(value, threshold float64) model.Side {
	if value > threshold {
		return model.SideAbove
	}
	return model.SideBelow
}

// crossed implements the crossing rule: a condition fires only when the
// observation moved from the non-satisfying side to the satisfying side.
// A first observation (side unknown) never fires, preventing a spurious
// fire when an alert is created with the price already past its threshold.
func crossed(c model.Condition, prev, cur model.Side) bool {
	if prev == model.SideUnknown {
		return false
	}
	switch c.Type {
	case model.PriceAbove:
		return prev == model.SideBelow && cur == model.SideAbove
	case model.PriceBelow:
		return prev == model.SideAbove && cur == model.SideBelow
	case model.IndicatorCross:
		if c.Direction == model.CrossAbove {
			return prev == model.SideBelow && cur == model.SideAbove
		}
		return prev == model.SideAbove && cur == model.SideBelow
	default:
		return false
	}
}

func (e *Evaluator) bumpFailures(asset string) int {
	e.failMu.Lock()
	defer e.failMu.Unlock()
	e.failures[asset]++
	return e.failures[asset]
}

func (e *Evaluator) resetFailures(asset string) {
	e.failMu.Lock()
	defer e.failMu.Unlock()
	delete(e.failures, asset)
}
