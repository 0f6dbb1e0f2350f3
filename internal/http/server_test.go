package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/carpool/internal/carpool"
	"github.com/example/carpool/internal/clock"
	"github.com/example/carpool/internal/ledger"
	"github.com/example/carpool/internal/matcher"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/storage"
)

var now = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

type downStore struct{ *storage.MemoryStore }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithStore(t, storage.NewMemoryStore())
}

func newTestServerWithStore(t *testing.T, store storage.Store) *httptest.Server {
	t.Helper()
	clk := clock.Fixed{T: now}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(
		carpool.NewService(store, clk),
		ledger.NewService(store, nil, clk, logger),
		&matcher.Service{Store: store, Clock: clk, Logger: logger},
		store,
		logger,
	)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func decodeInto(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %q: %v", b, err)
	}
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodGet, "/", nil)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("Soldier Carpool API running")) {
		t.Fatalf("unexpected root response %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
	resp, _ = do(t, ts, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	resp, _ = do(t, ts, http.MethodGet, "/ready", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready: %d", resp.StatusCode)
	}
}

func TestReadyReportsStoreFailure(t *testing.T) {
	ts := newTestServerWithStore(t, downStore{storage.NewMemoryStore()})
	resp, _ := do(t, ts, http.MethodGet, "/ready", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestRideRequestLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, ts, http.MethodPost, "/soldiers", map[string]any{"name": "Driver", "home_area": "Haifa", "base_name": "Tel Nof", "has_car": true})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create driver: %d %s", resp.StatusCode, body)
	}
	var driver models.Soldier
	decodeInto(t, body, &driver)

	_, body = do(t, ts, http.MethodPost, "/soldiers", map[string]any{"name": "Passenger", "home_area": "Haifa", "base_name": "Tel Nof"})
	var passenger models.Soldier
	decodeInto(t, body, &passenger)

	resp, body = do(t, ts, http.MethodPost, "/rides", map[string]any{
		"driver_id":      driver.ID,
		"from_area":      "North Haifa",
		"to_area":        "Tel Nof base",
		"departure_time": now.Add(2 * time.Hour).Format(time.RFC3339),
		"seats_total":    3,
		"price_per_seat": 10,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create ride: %d %s", resp.StatusCode, body)
	}
	var ride models.Ride
	decodeInto(t, body, &ride)
	if ride.SeatsAvailable != 3 || ride.Tags == nil {
		t.Fatalf("unexpected ride %+v", ride)
	}

	resp, body = do(t, ts, http.MethodPost, "/ride-requests", map[string]any{"ride_id": ride.ID, "passenger_id": passenger.ID, "seats": 2})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create request: %d %s", resp.StatusCode, body)
	}
	var req models.RideRequest
	decodeInto(t, body, &req)
	if req.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}

	resp, body = do(t, ts, http.MethodPost, "/ride-requests/"+req.ID+"/status", map[string]string{"status": "accepted"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept: %d %s", resp.StatusCode, body)
	}
	_, body = do(t, ts, http.MethodGet, "/rides/"+ride.ID, nil)
	decodeInto(t, body, &ride)
	if ride.SeatsAvailable != 1 {
		t.Fatalf("expected 1 seat left, got %d", ride.SeatsAvailable)
	}

	resp, body = do(t, ts, http.MethodPost, "/ride-requests", map[string]any{"ride_id": ride.ID, "passenger_id": passenger.ID, "seats": 2})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for overbooking, got %d", resp.StatusCode)
	}
	var er errorResponse
	decodeInto(t, body, &er)
	if er.Error.Code != "INVALID_ARGUMENT" || er.Error.Message != "Not enough seats available" {
		t.Fatalf("unexpected error body %+v", er)
	}

	_, body = do(t, ts, http.MethodGet, "/ride-requests?ride_id="+ride.ID+"&status=accepted", nil)
	var reqs []models.RideRequest
	decodeInto(t, body, &reqs)
	if len(reqs) != 1 || reqs[0].ID != req.ID {
		t.Fatalf("unexpected request list %+v", reqs)
	}

	_, body = do(t, ts, http.MethodGet, "/soldiers/"+passenger.ID+"/suggestions?window_hours=0", nil)
	var sugg []models.RideSuggestion
	decodeInto(t, body, &sugg)
	if len(sugg) != 0 {
		t.Fatalf("ride departs in 2h, expected no suggestions in a 1h window, got %+v", sugg)
	}
	_, body = do(t, ts, http.MethodGet, "/soldiers/"+passenger.ID+"/suggestions", nil)
	decodeInto(t, body, &sugg)
	if len(sugg) != 1 || sugg[0].Ride.ID != ride.ID {
		t.Fatalf("expected the ride to be suggested, got %+v", sugg)
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	missing := models.NewID()

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"malformed soldier id", http.MethodGet, "/soldiers/xyz", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unknown soldier", http.MethodGet, "/soldiers/" + missing, nil, http.StatusNotFound, "NOT_FOUND"},
		{"unknown ride", http.MethodGet, "/rides/" + missing, nil, http.StatusNotFound, "NOT_FOUND"},
		{"unknown request", http.MethodGet, "/ride-requests/" + missing, nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad status", http.MethodPost, "/ride-requests/" + missing + "/status", map[string]string{"status": "done"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"missing soldier fields", http.MethodPost, "/soldiers", map[string]string{"name": "x"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad has_car", http.MethodGet, "/soldiers?has_car=maybe", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad earliest", http.MethodGet, "/rides?earliest=tomorrow", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad window", http.MethodGet, "/soldiers/" + missing + "/suggestions?window_hours=x", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"suggest unknown soldier", http.MethodGet, "/soldiers/" + missing + "/suggestions", nil, http.StatusNotFound, "NOT_FOUND"},
		{"ride with unknown driver", http.MethodPost, "/rides", map[string]any{"driver_id": missing, "from_area": "a", "to_area": "b", "departure_time": now.Format(time.RFC3339), "seats_total": 2}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, ts, tc.method, tc.path, tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.StatusCode, body)
			}
			var er errorResponse
			decodeInto(t, body, &er)
			if er.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, er)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Post(ts.URL+"/soldiers", "application/json", bytes.NewBufferString("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEmptyListsRenderAsArrays(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/soldiers", "/rides", "/ride-requests"} {
		_, body := do(t, ts, http.MethodGet, path, nil)
		if string(bytes.TrimSpace(body)) != "[]" {
			t.Fatalf("%s: expected [], got %s", path, body)
		}
	}
}

func TestCreateRequestDefaultsToOneSeat(t *testing.T) {
	ts := newTestServer(t)

	_, body := do(t, ts, http.MethodPost, "/soldiers", map[string]any{"name": "Driver", "home_area": "Haifa", "base_name": "Tel Nof", "has_car": true})
	var driver models.Soldier
	decodeInto(t, body, &driver)
	_, body = do(t, ts, http.MethodPost, "/soldiers", map[string]any{"name": "Passenger", "home_area": "Haifa", "base_name": "Tel Nof"})
	var passenger models.Soldier
	decodeInto(t, body, &passenger)
	_, body = do(t, ts, http.MethodPost, "/rides", map[string]any{
		"driver_id":      driver.ID,
		"from_area":      "Haifa",
		"to_area":        "Tel Nof",
		"departure_time": now.Add(time.Hour).Format(time.RFC3339),
		"seats_total":    2,
	})
	var ride models.Ride
	decodeInto(t, body, &ride)

	resp, body := do(t, ts, http.MethodPost, "/ride-requests", map[string]any{"ride_id": ride.ID, "passenger_id": passenger.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 without seats, got %d %s", resp.StatusCode, body)
	}
	var req models.RideRequest
	decodeInto(t, body, &req)
	if req.Seats != 1 {
		t.Fatalf("expected seats to default to 1, got %d", req.Seats)
	}

	resp, _ = do(t, ts, http.MethodPost, "/ride-requests", map[string]any{"ride_id": ride.ID, "passenger_id": passenger.ID, "seats": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("an explicit zero should still be rejected, got %d", resp.StatusCode)
	}
}
