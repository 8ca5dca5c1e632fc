package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pricewatch/internal/model"
)

func firedEvent() model.Event {
	return model.Event{
		Alert: model.Alert{
			ID:      "a1",
			Owner:   "12345",
			Asset:   "BTCUSD",
			OneShot: true,
			State:   model.StateFired,
			Condition: model.Condition{
				Type:      model.PriceAbove,
				Threshold: 42000,
			},
		},
		Value: 42100.5,
		TS:    time.Unix(1700000000, 0).UTC(),
	}
}

func TestWebhookSink_PostsEvent(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL)
	if err := s.Notify(context.Background(), firedEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["value"].(float64) != 42100.5 {
		t.Fatalf("expected value=42100.5, got %v", got["value"])
	}
	alert := got["alert"].(map[string]interface{})
	if alert["id"] != "a1" {
		t.Fatalf("expected alert id a1, got %v", alert["id"])
	}
}

func TestWebhookSink_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL)
	if err := s.Notify(context.Background(), firedEvent()); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestDescribe_ConditionVariants(t *testing.T) {
	ev := firedEvent()
	if msg := describe(ev); !strings.Contains(msg, "crossed above") {
		t.Fatalf("unexpected message: %q", msg)
	}

	ev.Alert.Condition = model.Condition{
		Type: model.IndicatorCross, Threshold: 70,
		Kind: model.KindRSI, Period: 14, Direction: model.CrossAbove,
	}
	ev.Value = 71.2
	if msg := describe(ev); !strings.Contains(msg, "RSI(14)") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Notify(ctx context.Context, ev model.Event) error {
	f.calls++
	return errors.New("boom")
}

type countingSink struct{ calls int }

func (c *countingSink) Notify(ctx context.Context, ev model.Event) error {
	c.calls++
	return nil
}

func TestMulti_ContinuesPastFailure(t *testing.T) {
	bad := &failingSink{}
	good := &countingSink{}
	m := Multi{bad, good}

	err := m.Notify(context.Background(), firedEvent())
	if err == nil {
		t.Fatal("expected first error to be returned")
	}
	if bad.calls != 1 || good.calls != 1 {
		t.Fatalf("expected both sinks called once, got %d/%d", bad.calls, good.calls)
	}
}
