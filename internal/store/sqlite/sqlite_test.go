package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pricewatch/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "alerts.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	alerts := []model.Alert{
		{
			ID: "a1", Owner: "u1", Asset: "BTCUSD",
			Condition: model.Condition{Type: model.PriceAbove, Threshold: 42000},
			State:     model.StateActive, OneShot: true,
			CreatedAt: time.Unix(1700000000, 0).UTC(),
			LastSide:  model.SideBelow,
		},
		{
			ID: "a2", Owner: "u2", Asset: "ETHUSD",
			Condition: model.Condition{
				Type: model.IndicatorCross, Threshold: 70,
				Kind: model.KindRSI, Period: 14, Direction: model.CrossAbove,
			},
			State: model.StateFired, OneShot: true,
			CreatedAt:   time.Unix(1700000100, 0).UTC(),
			TriggeredAt: time.Unix(1700000200, 0).UTC(),
			LastSide:    model.SideAbove,
		},
	}

	if err := s.SaveAlerts(ctx, alerts); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadAlerts(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(got))
	}
	for i := range alerts {
		if got[i] != alerts[i] {
			t.Errorf("round-trip mismatch at %d:\nwant %+v\ngot  %+v", i, alerts[i], got[i])
		}
	}
}

func TestSaveAlerts_UpsertOverwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := model.Alert{
		ID: "a1", Owner: "u1", Asset: "BTCUSD",
		Condition: model.Condition{Type: model.PriceAbove, Threshold: 100},
		State:     model.StateActive, OneShot: true,
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
	if err := s.SaveAlerts(ctx, []model.Alert{a}); err != nil {
		t.Fatalf("save: %v", err)
	}

	a.State = model.StateFired
	a.TriggeredAt = time.Unix(1700000300, 0).UTC()
	a.LastSide = model.SideAbove
	if err := s.SaveAlerts(ctx, []model.Alert{a}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.LoadAlerts(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].State != model.StateFired {
		t.Fatalf("expected upserted Fired alert, got %+v", got)
	}
}

func TestPruneTerminal(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := time.Unix(1600000000, 0).UTC()
	recent := time.Unix(1700000000, 0).UTC()
	alerts := []model.Alert{
		{ID: "old-fired", Owner: "u", Asset: "A", State: model.StateFired, OneShot: true,
			Condition: model.Condition{Type: model.PriceAbove, Threshold: 1}, CreatedAt: old},
		{ID: "old-active", Owner: "u", Asset: "A", State: model.StateActive, OneShot: true,
			Condition: model.Condition{Type: model.PriceAbove, Threshold: 1}, CreatedAt: old},
		{ID: "new-fired", Owner: "u", Asset: "A", State: model.StateFired, OneShot: true,
			Condition: model.Condition{Type: model.PriceAbove, Threshold: 1}, CreatedAt: recent},
	}
	if err := s.SaveAlerts(ctx, alerts); err != nil {
		t.Fatalf("save: %v", err)
	}

	n, err := s.PruneTerminal(ctx, time.Unix(1650000000, 0))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}

	got, _ := s.LoadAlerts(ctx)
	if len(got) != 2 {
		t.Fatalf("expected 2 remaining, got %d", len(got))
	}
	for _, a := range got {
		if a.ID == "old-fired" {
			t.Fatal("old fired alert should have been pruned")
		}
	}
}
