// Package registry is the authoritative, concurrently-mutable set of alert
// definitions, partitioned by asset. It owns the alert lifecycle: user
// handlers add and cancel alerts while evaluation cycles read and resolve
// them, so every state change goes through the registry's lock.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricewatch/internal/model"
)

// Registry holds alerts keyed by id with a per-asset index for scheduling
// fan-out. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	alerts  map[string]*model.Alert
	byAsset map[string]map[string]struct{}

	now func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		alerts:  make(map[string]*model.Alert, 256),
		byAsset: make(map[string]map[string]struct{}, 64),
		now:     time.Now,
	}
}

// Add validates and registers a new alert, returning its id.
// The alert starts Active with an unknown observed side.
func (r *Registry) Add(a model.Alert) (string, error) {
	a.Asset = NormalizeAsset(a.Asset)
	if a.Asset == "" {
		return "", fmt.Errorf("add: empty asset: %w", model.ErrInvalidCondition)
	}
	if err := a.Condition.Validate(); err != nil {
		return "", fmt.Errorf("add: %w", err)
	}

	a.ID = uuid.NewString()
	a.State = model.StateActive
	a.LastSide = model.SideUnknown
	a.CreatedAt = r.now().UTC()
	a.TriggeredAt = time.Time{}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(&a)
	return a.ID, nil
}

// Cancel transitions an alert to Cancelled. Fails with ErrNotFound if the
// id is unknown or owned by someone else. Cancelling an already-terminal
// alert is a no-op success (idempotent).
func (r *Registry) Cancel(id, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok || a.Owner != owner {
		return fmt.Errorf("cancel %s: %w", id, model.ErrNotFound)
	}
	if a.State.Terminal() {
		return nil
	}
	a.State = model.StateCancelled
	r.unindexLocked(a)
	return nil
}

// ListActiveAssets returns the distinct assets with at least one Active
// alert. Drives the scheduler's per-asset fan-out.
func (r *Registry) ListActiveAssets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byAsset))
	for asset, ids := range r.byAsset {
		if len(ids) > 0 {
			out = append(out, asset)
		}
	}
	sort.Strings(out)
	return out
}

// ListActiveFor returns copies of all Active alerts for one asset, ordered
// by creation time then id so evaluation order is stable within a tick.
func (r *Registry) ListActiveFor(asset string) []model.Alert {
	asset = NormalizeAsset(asset)

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.byAsset[asset]
	if !ok {
		return nil
	}
	out := make([]model.Alert, 0, len(ids))
	for id := range ids {
		if a := r.alerts[id]; a != nil && a.State == model.StateActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListByOwner returns copies of all non-terminal alerts owned by owner.
func (r *Registry) ListByOwner(owner string) []model.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Alert
	for _, a := range r.alerts {
		if a.Owner == owner && a.State == model.StateActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// MarkFired atomically transitions an alert Active→Fired and stamps
// TriggeredAt. Returns false when the alert is no longer Active — the
// caller must treat that as "someone else resolved it, do not notify".
func (r *Registry) MarkFired(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok || a.State != model.StateActive {
		return false
	}
	a.State = model.StateFired
	a.TriggeredAt = r.now().UTC()
	r.unindexLocked(a)
	return true
}

// MarkTriggered records a trigger on a recurring alert without resolving
// it: TriggeredAt is stamped and the alert stays Active so the crossing
// rule can re-arm it. Returns false when the alert is no longer Active.
func (r *Registry) MarkTriggered(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok || a.State != model.StateActive {
		return false
	}
	a.TriggeredAt = r.now().UTC()
	return true
}

// UpdateObservedSide records which side of the threshold the latest
// observation landed on. No-op for non-Active alerts.
func (r *Registry) UpdateObservedSide(id string, side model.Side) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.alerts[id]; ok && a.State == model.StateActive {
		a.LastSide = side
	}
}

// Snapshot copies every alert for external durable storage.
func (r *Registry) Snapshot() []model.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore replaces the registry contents with a previously snapshotted
// alert set. Used once at process start.
func (r *Registry) Restore(alerts []model.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts = make(map[string]*model.Alert, len(alerts))
	r.byAsset = make(map[string]map[string]struct{}, 64)
	for i := range alerts {
		a := alerts[i]
		a.Asset = NormalizeAsset(a.Asset)
		if a.ID == "" || a.Asset == "" {
			continue
		}
		r.insertLocked(&a)
	}
}

// Counts summarizes alert lifecycle states for admin stats and metrics.
type Counts struct {
	Total     int
	Active    int
	Fired     int
	Cancelled int
}

// Count returns current lifecycle counts.
func (r *Registry) Count() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := Counts{Total: len(r.alerts)}
	for _, a := range r.alerts {
		switch a.State {
		case model.StateActive:
			c.Active++
		case model.StateFired:
			c.Fired++
		case model.StateCancelled:
			c.Cancelled++
		}
	}
	return c
}

// NormalizeAsset canonicalizes an asset symbol for use as a partition key.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// insertLocked stores the alert and indexes it by asset when Active.
func (r *Registry) insertLocked(a *model.Alert) {
	r.alerts[a.ID] = a
	if a.State != model.StateActive {
		return
	}
	ids, ok := r.byAsset[a.Asset]
	if !ok {
		ids = make(map[string]struct{}, 4)
		r.byAsset[a.Asset] = ids
	}
	ids[a.ID] = struct{}{}
}

// unindexLocked drops the alert from the per-asset index once terminal.
func (r *Registry) unindexLocked(a *model.Alert) {
	ids, ok := r.byAsset[a.Asset]
	if !ok {
		return
	}
	delete(ids, a.ID)
	if len(ids) == 0 {
		delete(r.byAsset, a.Asset)
	}
}
