package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnazzaro/voice-client/internal/config"
	"github.com/mnazzaro/voice-client/internal/pipeline"
	"github.com/mnazzaro/voice-client/internal/storage"
)

type fakeLister struct {
	recordings []storage.Recording
	err        error
}

func (f *fakeLister) List() ([]storage.Recording, error) {
	return f.recordings, f.err
}

func newTestServer(lister RecordingLister) *HTTPServer {
	queue := pipeline.NewFrameQueue()
	queue.Enqueue([]byte{1})
	queue.Enqueue([]byte{2})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats := func() any {
		return map[string]any{"state": "idle"}
	}
	return NewHTTPServer(config.HTTPConfig{Address: "127.0.0.1", Port: 0},
		config.ModeVAD, logger, queue, lister, stats)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(&fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestServer(&fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	h.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["mode"] != config.ModeVAD {
		t.Errorf("expected mode %q, got %v", config.ModeVAD, body["mode"])
	}
	if body["queue_depth"] != float64(2) {
		t.Errorf("expected queue depth 2, got %v", body["queue_depth"])
	}
	if _, ok := body["consumer"]; !ok {
		t.Error("expected consumer stats in response")
	}
}

func TestRecordingsEndpoint(t *testing.T) {
	lister := &fakeLister{
		recordings: []storage.Recording{
			{Name: "20260825_100000_to_100002.wav", Bytes: 1024},
			{Name: "20260825_110000_to_110001.wav", Bytes: 2048},
		},
	}
	h := newTestServer(lister)

	req := httptest.NewRequest(http.MethodGet, "/recordings", nil)
	rec := httptest.NewRecorder()
	h.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Count      int                 `json:"count"`
		Recordings []storage.Recording `json:"recordings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("expected count 2, got %d", body.Count)
	}
	if len(body.Recordings) != 2 || body.Recordings[0].Name != lister.recordings[0].Name {
		t.Errorf("unexpected recordings payload: %+v", body.Recordings)
	}
}

func TestRecordingsEndpointListFailure(t *testing.T) {
	h := newTestServer(&fakeLister{err: fmt.Errorf("disk gone")})

	req := httptest.NewRequest(http.MethodGet, "/recordings", nil)
	rec := httptest.NewRecorder()
	h.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
