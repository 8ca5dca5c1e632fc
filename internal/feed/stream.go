package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"pricewatch/internal/model"
)

// DefaultStaleness is how old a cached tick may be before GetLatest refuses
// to serve it.
const DefaultStaleness = 30 * time.Second

// tickMessage is one upstream price update frame.
type tickMessage struct {
	Asset string  `json:"asset"`
	Price float64 `json:"price"`
	TS    int64   `json:"ts"` // unix seconds
}

// StreamFeed maintains a latest-price cache fed by a websocket read loop.
// GetLatest serves from the cache; a missing or stale entry is reported as
// FeedUnavailable, same as a REST failure.
type StreamFeed struct {
	url       string
	staleness time.Duration
	log       *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	latest map[string]model.Sample
	subs   map[string]struct{}

	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewStreamFeed creates a streaming feed for the given websocket URL.
// Run must be started before GetLatest returns anything useful.
func NewStreamFeed(url string, log *slog.Logger) *StreamFeed {
	return &StreamFeed{
		url:       url,
		staleness: DefaultStaleness,
		log:       log,
		now:       time.Now,
		latest:    make(map[string]model.Sample, 64),
		subs:      make(map[string]struct{}, 64),
	}
}

// GetLatest serves the cached sample for the asset, subscribing to it on
// first sight so the upstream starts streaming it.
func (f *StreamFeed) GetLatest(ctx context.Context, asset string) (model.Sample, error) {
	f.ensureSubscribed(asset)

	f.mu.RLock()
	s, ok := f.latest[asset]
	f.mu.RUnlock()

	if !ok {
		return model.Sample{}, fmt.Errorf("stream %s: %w: no tick received yet", asset, model.ErrFeedUnavailable)
	}
	if f.now().Sub(s.TS) > f.staleness {
		return model.Sample{}, fmt.Errorf("stream %s: %w: last tick stale (%s)", asset, model.ErrFeedUnavailable, f.now().Sub(s.TS))
	}
	return s, nil
}

// Run connects and consumes tick frames until ctx is done, reconnecting
// with exponential backoff and resubscribing after each reconnect.
func (f *StreamFeed) Run(ctx context.Context) {
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			d := b.Duration()
			f.log.Warn("stream dial failed", "url", f.url, "err", err, "retry_in", d)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
			continue
		}
		b.Reset()
		f.log.Info("stream connected", "url", f.url)

		f.connMu.Lock()
		f.conn = conn
		f.connMu.Unlock()
		f.resubscribe()

		f.readLoop(ctx, conn)
		conn.Close()

		f.connMu.Lock()
		f.conn = nil
		f.connMu.Unlock()
	}
}

func (f *StreamFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn("stream read failed", "err", err)
			}
			return
		}

		var msg tickMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Asset == "" {
			continue // skip heartbeats and control frames
		}

		ts := time.Unix(msg.TS, 0).UTC()
		if msg.TS == 0 {
			ts = f.now().UTC()
		}
		f.mu.Lock()
		f.latest[msg.Asset] = model.Sample{TS: ts, Price: msg.Price}
		f.mu.Unlock()
	}
}

// ensureSubscribed tracks the asset and, when connected, sends a subscribe
// frame for it. The tracked set is replayed after every reconnect.
func (f *StreamFeed) ensureSubscribed(asset string) {
	f.mu.Lock()
	_, known := f.subs[asset]
	if !known {
		f.subs[asset] = struct{}{}
	}
	f.mu.Unlock()
	if known {
		return
	}
	f.sendSubscribe([]string{asset})
}

func (f *StreamFeed) resubscribe() {
	f.mu.RLock()
	assets := make([]string, 0, len(f.subs))
	for a := range f.subs {
		assets = append(assets, a)
	}
	f.mu.RUnlock()
	if len(assets) > 0 {
		f.sendSubscribe(assets)
	}
}

func (f *StreamFeed) sendSubscribe(assets []string) {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return
	}
	msg := map[string]interface{}{"action": "subscribe", "assets": assets}
	if err := f.conn.WriteJSON(msg); err != nil {
		f.log.Warn("stream subscribe failed", "assets", assets, "err", err)
	}
}
