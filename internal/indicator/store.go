// Package indicator maintains per-asset rolling price series and derives
// indicator values (SMA, EMA, RSI) from them on demand.
//
// Values are recomputed from the retained series on every request; series
// are small, so recomputation beats caching in both simplicity and
// correctness under out-of-order ingestion.
package indicator

import (
	"fmt"
	"sync"
	"time"

	"pricewatch/internal/model"
	"pricewatch/internal/window"
)

// DefaultCapacity retains enough samples for a 200-period SMA with headroom.
const DefaultCapacity = 256

// Value is a computed indicator scalar tied to the sample it came from.
type Value struct {
	Asset  string              `json:"asset"`
	Kind   model.IndicatorKind `json:"kind"`
	Period int                 `json:"period"`
	Value  float64             `json:"value"`
	TS     time.Time           `json:"ts"`
}

// Store owns the per-asset sample windows. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*window.Window
}

// NewStore creates a store whose windows retain capacity samples each.
// capacity <= 0 selects DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		series:   make(map[string]*window.Window, 64),
	}
}

// Ingest appends a sample to the asset's series, creating the series on
// first sight. Out-of-order samples are deduplicated by the window.
func (s *Store) Ingest(asset string, sample model.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.series[asset]
	if !ok {
		w = window.New(s.capacity)
		s.series[asset] = w
	}
	w.Append(sample)
}

// Latest returns the newest retained sample for the asset.
func (s *Store) Latest(asset string) (model.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.series[asset]
	if !ok {
		return model.Sample{}, false
	}
	return w.Last()
}

// Compute derives the requested indicator from the asset's retained series.
// Returns ErrInsufficientHistory when fewer samples than the period (plus
// one for RSI, which needs period deltas) are retained.
func (s *Store) Compute(asset string, kind model.IndicatorKind, period int) (Value, error) {
	if period <= 0 {
		return Value{}, fmt.Errorf("compute %s(%d): %w", kind, period, model.ErrInvalidCondition)
	}

	s.mu.RLock()
	w, ok := s.series[asset]
	var samples []model.Sample
	if ok {
		samples = w.Slice()
	}
	s.mu.RUnlock()

	var v float64
	var err error
	switch kind {
	case model.KindSMA:
		v, err = sma(samples, period)
	case model.KindEMA:
		v, err = ema(samples, period)
	case model.KindRSI:
		v, err = rsi(samples, period)
	default:
		return Value{}, fmt.Errorf("compute %q: %w", kind, model.ErrInvalidCondition)
	}
	if err != nil {
		return Value{}, fmt.Errorf("compute %s(%d) for %s: %w", kind, period, asset, err)
	}

	return Value{
		Asset:  asset,
		Kind:   kind,
		Period: period,
		Value:  v,
		TS:     samples[len(samples)-1].TS,
	}, nil
}

// SnapshotSeries copies the asset's retained samples, oldest first.
// Returns nil for an unknown asset.
func (s *Store) SnapshotSeries(asset string) []model.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.series[asset]
	if !ok {
		return nil
	}
	return w.Slice()
}

// RestoreSeries replaces the asset's series with the given samples.
// Intended for process start; samples are replayed through the window so
// ordering and dedup invariants hold regardless of the snapshot's origin.
func (s *Store) RestoreSeries(asset string, samples []model.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := window.New(s.capacity)
	for _, sample := range samples {
		w.Append(sample)
	}
	s.series[asset] = w
}

// Assets lists the assets with at least one retained sample.
func (s *Store) Assets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for asset := range s.series {
		out = append(out, asset)
	}
	return out
}
