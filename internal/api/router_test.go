package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skyfilter/skyfilter/internal/domain/catalog"
)

type fakeStats struct {
	counts map[int]int64
	err    error
}

func (f *fakeStats) CountByStatus(context.Context) (map[int]int64, error) {
	return f.counts, f.err
}

type fakeQueue struct {
	depth int
}

func (f *fakeQueue) Len() int { return f.depth }

func TestHealthz(t *testing.T) {
	router := NewRouter(&fakeStats{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestStats(t *testing.T) {
	stats := &fakeStats{counts: map[int]int64{
		catalog.StatusUncatalogued: 5,
		catalog.StatusComplete:     12,
	}}
	router := NewRouter(stats, &fakeQueue{depth: 3})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Posts      map[string]int64 `json:"posts"`
		QueueDepth int              `json:"queue_depth"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Posts["UNCATALOGUED"] != 5 || body.Posts["COMPLETE"] != 12 {
		t.Errorf("unexpected posts counts %+v", body.Posts)
	}
	if body.QueueDepth != 3 {
		t.Errorf("queue_depth = %d, want 3", body.QueueDepth)
	}
}

func TestStats_Unavailable(t *testing.T) {
	router := NewRouter(&fakeStats{err: errors.New("db down")}, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
