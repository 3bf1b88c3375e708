package channel_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"guesthouse/internal/adapters/channel"
	"guesthouse/internal/domain"
)

func TestClient_GetReservations_RetriesThenSuccess(t *testing.T) {
	var hits int32
	var since string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			since = r.URL.Query().Get("since")
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "B-1", "apartment_id": 7.0}})
		}
	}))
	defer ts.Close()

	cl, err := channel.New(ts.URL, "test-key", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got, err := cl.GetReservations(ctx, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != "B-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if since != "2024-03-01" {
		t.Fatalf("since not forwarded, got %q", since)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_GetPriceRules_FallsBackToLegacyPath(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/rates" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 1.0, "description": "Standard"}})
	}))
	defer ts.Close()

	cl, _ := channel.New(ts.URL, "test-key", 100)
	got, err := cl.GetPriceRules(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 || got[0]["description"] != "Standard" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestClient_404IsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl, err := channel.New(ts.URL, "test-key", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = cl.GetPriceRules(ctx)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := channel.New("http://x", "", 1); err == nil {
		t.Fatalf("expected error without key")
	}
}
