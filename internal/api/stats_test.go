package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/parxe/internal/model"
)

func getStats(t *testing.T, srv *Server) statsResponse {
	t.Helper()
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var stats statsResponse
	decodeJSON(t, resp, &stats)
	return stats
}

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)

	stats := getStats(t, srv)
	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.AvgDurationMS != 0 {
		t.Errorf("avg_duration_ms = %f, want 0", stats.AvgDurationMS)
	}
	if stats.Tracked != 0 {
		t.Errorf("tracked = %d, want 0", stats.Tracked)
	}
}

func TestGetStatsPopulated(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	for range 3 {
		r := &model.TaskRecord{
			ID: model.NewID(), Name: "pow", Engine: "seq", Status: model.StatusPending,
			WorkingDir: "./", CreatedAt: time.Now().UTC(),
		}
		if err := srv.store.CreateTask(ctx, r); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		if err := srv.store.UpdateTaskStatus(ctx, r.ID, model.StatusRunning); err != nil {
			t.Fatalf("pending→running: %v", err)
		}
		dur := 100
		now := time.Now().UTC()
		done := &model.TaskRecord{ID: r.ID, Status: model.StatusFinished, DurationMS: &dur, FinishedAt: &now}
		if err := srv.store.UpdateTask(ctx, done); err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
	}

	aborted := &model.TaskRecord{
		ID: model.NewID(), Name: "sleep", Engine: "local", Status: model.StatusPending,
		WorkingDir: "./", CreatedAt: time.Now().UTC(),
	}
	if err := srv.store.CreateTask(ctx, aborted); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := srv.store.UpdateTaskStatus(ctx, aborted.ID, model.StatusAborted); err != nil {
		t.Fatalf("pending→aborted: %v", err)
	}

	stats := getStats(t, srv)
	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.ByStatus[model.StatusFinished] != 3 || stats.ByStatus[model.StatusAborted] != 1 {
		t.Errorf("by_status = %v, want 3 finished and 1 aborted", stats.ByStatus)
	}
	if stats.ByEngine["seq"] != 3 || stats.ByEngine["local"] != 1 {
		t.Errorf("by_engine = %v, want seq 3 and local 1", stats.ByEngine)
	}
	if stats.AvgDurationMS != 100 {
		t.Errorf("avg_duration_ms = %f, want 100", stats.AvgDurationMS)
	}
}

func TestGetStatsCountsTrackedFutures(t *testing.T) {
	srv := newTestServer(t)
	release := registerBlock(t, srv)

	id := submit(t, srv, `{"func":"block"}`)
	waitRunning(t, srv, id)

	if got := getStats(t, srv).Tracked; got != 1 {
		t.Errorf("tracked = %d, want 1", got)
	}
	release()
	waitTerminal(t, srv, id)
}
