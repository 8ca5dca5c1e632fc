package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pricewatch/internal/model"
	"pricewatch/internal/registry"
)

func testServer(t *testing.T) (*registry.Registry, *httptest.Server) {
	t.Helper()
	reg := registry.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(NewServer(reg, log).Router())
	t.Cleanup(ts.Close)
	return reg, ts
}

func TestCreateAlert(t *testing.T) {
	reg, ts := testServer(t)

	body := `{
		"owner": "u1",
		"asset": "btcusd",
		"condition": {"type": "price_above", "threshold": 42000}
	}`
	resp, err := http.Post(ts.URL+"/api/v1/alerts", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["id"] == "" {
		t.Fatal("expected non-empty id")
	}

	alerts := reg.ListByOwner("u1")
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert in registry, got %d", len(alerts))
	}
	if alerts[0].Asset != "BTCUSD" {
		t.Errorf("asset not normalized: %q", alerts[0].Asset)
	}
	if !alerts[0].OneShot {
		t.Error("one_shot should default to true")
	}
}

func TestCreateAlert_Invalid(t *testing.T) {
	_, ts := testServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"owner": `},
		{"missing owner", `{"asset": "BTCUSD", "condition": {"type": "price_above", "threshold": 1}}`},
		{"bad condition", `{"owner": "u1", "asset": "BTCUSD", "condition": {"type": "indicator_cross", "threshold": 70, "kind": "RSI", "period": -3, "direction": "above"}}`},
		{"unknown type", `{"owner": "u1", "asset": "BTCUSD", "condition": {"type": "volume_spike", "threshold": 1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/alerts", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestListAlerts(t *testing.T) {
	reg, ts := testServer(t)

	for _, asset := range []string{"BTCUSD", "ETHUSD"} {
		if _, err := reg.Add(model.Alert{
			Owner: "u1", Asset: asset, OneShot: true,
			Condition: model.Condition{Type: model.PriceAbove, Threshold: 10},
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp, err := http.Get(ts.URL + "/api/v1/alerts?owner=u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var alerts []model.Alert
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}

	// Missing owner is a client error
	resp2, _ := http.Get(ts.URL + "/api/v1/alerts")
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without owner, got %d", resp2.StatusCode)
	}
}

func TestCancelAlert(t *testing.T) {
	reg, ts := testServer(t)

	id, err := reg.Add(model.Alert{
		Owner: "u1", Asset: "BTCUSD", OneShot: true,
		Condition: model.Condition{Type: model.PriceAbove, Threshold: 10},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/alerts/"+id+"?owner=u1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	if assets := reg.ListActiveAssets(); len(assets) != 0 {
		t.Fatalf("alert still active after cancel: %v", assets)
	}
}

func TestCancelAlert_Errors(t *testing.T) {
	reg, ts := testServer(t)

	id, _ := reg.Add(model.Alert{
		Owner: "u1", Asset: "BTCUSD", OneShot: true,
		Condition: model.Condition{Type: model.PriceAbove, Threshold: 10},
	})

	// Unknown id
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/alerts/nope?owner=u1", nil)
	resp, _ := http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", resp.StatusCode)
	}

	// Wrong owner
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/alerts/"+id+"?owner=u2", nil)
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for wrong owner, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	reg, ts := testServer(t)

	reg.Add(model.Alert{
		Owner: "u1", Asset: "BTCUSD", OneShot: true,
		Condition: model.Condition{Type: model.PriceAbove, Threshold: 10},
	})

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var health struct {
		Status string         `json:"status"`
		Alerts map[string]int `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Alerts["active"] != 1 {
		t.Fatalf("unexpected health payload: %+v", health)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := testServer(t)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/alerts", nil)
	resp, _ := http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
