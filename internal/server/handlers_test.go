package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/plantwise-io/plantmon/internal/config"
	"github.com/plantwise-io/plantmon/internal/journal"
	"github.com/plantwise-io/plantmon/internal/model"
	"github.com/plantwise-io/plantmon/internal/server"
	"github.com/plantwise-io/plantmon/internal/state"
	"github.com/plantwise-io/plantmon/internal/storage"
)

// stubStore is an in-memory storage.Store for handler tests.
type stubStore struct {
	mu          sync.Mutex
	readings    []model.Reading
	records     []model.LogRecord
	failAppends bool
	failQueries bool
}

func (s *stubStore) AppendReading(ctx context.Context, r model.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppends {
		return errors.New("disk on fire")
	}
	s.readings = append(s.readings, r)
	return nil
}

func (s *stubStore) AppendRecord(ctx context.Context, rec model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppends {
		return errors.New("disk on fire")
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *stubStore) Readings(ctx context.Context, limit, skip int) ([]model.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failQueries {
		return nil, errors.New("disk on fire")
	}
	out := make([]model.Reading, 0, limit)
	for i := len(s.readings) - 1 - skip; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.readings[i])
	}
	return out, nil
}

func (s *stubStore) Records(ctx context.Context, filter storage.RecordFilter) ([]model.LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failQueries {
		return nil, errors.New("disk on fire")
	}
	out := make([]model.LogRecord, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if filter.Kind != "" && string(rec.Kind) != filter.Kind {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *stubStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

func (s *stubStore) Cleanup(ctx context.Context, maxAge time.Duration) error { return nil }

func (s *stubStore) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{Address: ":0"},
		Storage: config.StorageConfig{
			QueueSize:    16,
			WriteTimeout: time.Second,
		},
		History: config.HistoryConfig{DefaultLimit: 100, MaxLimit: 1000},
		Servo:   config.ServoConfig{MinPosition: 0, MaxPosition: 180},
	}
}

func newTestHandler(t *testing.T, store storage.Store) http.Handler {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()

	jrnl := journal.New(log, store, &cfg.Storage)
	jrnl.Start(context.Background())
	t.Cleanup(jrnl.Stop)

	srv := server.New(log, cfg, state.NewReadingStore(), state.NewMailbox(), jrnl, store)
	return srv.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, decoded
}

func TestIngestAndCurrent(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	rec, body := doJSON(t, h, http.MethodPost, "/data",
		`{"data":"Moisture:512,MOIST,Temp:24.5,Servo:90"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rec.Code, body)
	}
	if body["status"] != "success" {
		t.Errorf("expected success status, got %v", body["status"])
	}

	rec, body = doJSON(t, h, http.MethodGet, "/data", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["moisture"] != float64(512) {
		t.Errorf("expected moisture 512, got %v", body["moisture"])
	}
	if body["moistureStatus"] != "MOIST" {
		t.Errorf("expected moistureStatus MOIST, got %v", body["moistureStatus"])
	}
	if body["raw"] != "Moisture:512,MOIST,Temp:24.5,Servo:90" {
		t.Errorf("raw not preserved: %v", body["raw"])
	}
	if _, present := body["light"]; present {
		t.Error("absent field should be omitted from the response")
	}
}

func TestIngestRejectsBadBody(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	for _, body := range []string{"{", `{"other":1}`, ""} {
		rec, resp := doJSON(t, h, http.MethodPost, "/data", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
		if resp["status"] != "error" {
			t.Errorf("body %q: expected error status, got %v", body, resp["status"])
		}
	}
}

func TestIngestSucceedsWhenStorageFails(t *testing.T) {
	h := newTestHandler(t, &stubStore{failAppends: true})

	rec, body := doJSON(t, h, http.MethodPost, "/data", `{"data":"Temp:25.0"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("durable failure must not fail ingestion, got %d: %v", rec.Code, body)
	}

	// In-memory state is intact despite the storage failure.
	_, body = doJSON(t, h, http.MethodGet, "/data", "")
	if body["temperature"] != 25.0 {
		t.Errorf("expected temperature 25.0, got %v", body["temperature"])
	}
}

func TestServoCommandLifecycle(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	rec, body := doJSON(t, h, http.MethodPost, "/servo", `{"position":90}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rec.Code, body)
	}
	if body["position"] != float64(90) {
		t.Errorf("expected position 90, got %v", body["position"])
	}

	rec, body = doJSON(t, h, http.MethodGet, "/servo-check", "")
	if rec.Code != http.StatusOK || body["status"] != "success" {
		t.Fatalf("expected pending command, got %d: %v", rec.Code, body)
	}
	if body["position"] != float64(90) {
		t.Errorf("expected position 90, got %v", body["position"])
	}

	_, body = doJSON(t, h, http.MethodGet, "/servo-check", "")
	if body["status"] != "no_request" {
		t.Errorf("command must be delivered exactly once, got %v", body["status"])
	}
}

func TestServoValidation(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	for _, body := range []string{
		`{"position":200}`,
		`{"position":-1}`,
		`{"position":90.5}`,
		`{"position":"up"}`,
		`{}`,
		"{",
	} {
		rec, resp := doJSON(t, h, http.MethodPost, "/servo", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
		if resp["status"] != "error" {
			t.Errorf("body %q: expected error status, got %v", body, resp["status"])
		}
	}

	// Rejected commands never reach the mailbox.
	_, body := doJSON(t, h, http.MethodGet, "/servo-check", "")
	if body["status"] != "no_request" {
		t.Errorf("mailbox should be empty after rejected commands, got %v", body["status"])
	}
}

func TestHistoryEndpoint(t *testing.T) {
	store := &stubStore{}
	for i := 0; i < 5; i++ {
		r := model.NewReading("line")
		store.readings = append(store.readings, r)
	}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/data/history?limit=2&skip=0", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var readings []model.Reading
	if err := json.Unmarshal(rec.Body.Bytes(), &readings); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(readings) != 2 {
		t.Errorf("expected 2 readings, got %d", len(readings))
	}

	rec2, _ := doJSON(t, h, http.MethodGet, "/data/history?limit=abc", "")
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec2.Code)
	}
}

func TestHistoryEndpointStorageError(t *testing.T) {
	h := newTestHandler(t, &stubStore{failQueries: true})

	rec, body := doJSON(t, h, http.MethodGet, "/data/history", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if body["status"] != "error" {
		t.Errorf("expected error body, got %v", body)
	}
}

func TestLogsEndpoint(t *testing.T) {
	store := &stubStore{}
	store.records = append(store.records,
		model.NewSensorRecord("line"),
		model.NewServoRecord(45),
	)
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/logs?type=servo", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var records []model.LogRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(records) != 1 || records[0].Kind != model.KindServo {
		t.Errorf("expected one servo record, got %+v", records)
	}

	rec2, _ := doJSON(t, h, http.MethodGet, "/logs?type=plasma", "")
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", rec2.Code)
	}

	rec3, _ := doJSON(t, h, http.MethodGet, "/logs?startDate=yesterday", "")
	if rec3.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad startDate, got %d", rec3.Code)
	}
}
