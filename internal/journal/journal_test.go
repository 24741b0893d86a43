package journal_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/plantwise-io/plantmon/internal/config"
	"github.com/plantwise-io/plantmon/internal/journal"
	"github.com/plantwise-io/plantmon/internal/model"
	"github.com/plantwise-io/plantmon/internal/storage"
)

type captureStore struct {
	mu       sync.Mutex
	readings []model.Reading
	records  []model.LogRecord
	fail     bool
}

func (s *captureStore) AppendReading(ctx context.Context, r model.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("append failed")
	}
	s.readings = append(s.readings, r)
	return nil
}

func (s *captureStore) AppendRecord(ctx context.Context, rec model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("append failed")
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *captureStore) Readings(ctx context.Context, limit, skip int) ([]model.Reading, error) {
	return nil, nil
}

func (s *captureStore) Records(ctx context.Context, f storage.RecordFilter) ([]model.LogRecord, error) {
	return nil, nil
}

func (s *captureStore) Count(ctx context.Context) (int64, error) { return 0, nil }

func (s *captureStore) Cleanup(ctx context.Context, maxAge time.Duration) error { return nil }

func (s *captureStore) Close() error { return nil }

func (s *captureStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings), len(s.records)
}

func testStorageConfig() *config.StorageConfig {
	return &config.StorageConfig{
		QueueSize:    16,
		WriteTimeout: time.Second,
	}
}

func TestJournalWritesQueuedEntries(t *testing.T) {
	store := &captureStore{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	j := journal.New(log, store, testStorageConfig())
	j.Start(context.Background())

	j.RecordReading(model.NewReading("Temp:25.0"))
	j.RecordEvent(model.NewSensorRecord("Temp:25.0"))

	// Stop drains whatever is queued before returning.
	j.Stop()

	nReadings, nRecords := store.counts()
	if nReadings != 1 {
		t.Errorf("expected 1 reading written, got %d", nReadings)
	}
	if nRecords != 1 {
		t.Errorf("expected 1 record written, got %d", nRecords)
	}
}

func TestJournalEnqueueNeverBlocks(t *testing.T) {
	store := &captureStore{fail: true}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testStorageConfig()
	cfg.QueueSize = 1

	// Not started: the queue fills after one entry and further enqueues
	// must drop instead of blocking the caller.
	j := journal.New(log, store, cfg)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			j.RecordEvent(model.NewSensorRecord("line"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
}

func TestJournalToleratesFailingStore(t *testing.T) {
	store := &captureStore{fail: true}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	j := journal.New(log, store, testStorageConfig())
	j.Start(context.Background())

	j.RecordReading(model.NewReading("Temp:25.0"))
	j.RecordEvent(model.NewServoRecord(90))

	// Failed writes are logged and dropped; Stop must still return.
	j.Stop()
}
