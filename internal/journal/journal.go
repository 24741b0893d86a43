// Package journal decouples durable writes from the request path. Handlers
// enqueue readings and audit records; a background writer drains the queue
// into the store with its own timeouts and error reporting. A full queue or
// a failed write never reaches the caller.
package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/plantwise-io/plantmon/internal/config"
	"github.com/plantwise-io/plantmon/internal/lib/logger/sl"
	"github.com/plantwise-io/plantmon/internal/model"
	"github.com/plantwise-io/plantmon/internal/storage"
)

type entry struct {
	reading *model.Reading
	record  *model.LogRecord
}

type Journal struct {
	log             *slog.Logger
	store           storage.Store
	queue           chan entry
	writeTimeout    time.Duration
	maxAge          time.Duration
	cleanupInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

func New(log *slog.Logger, store storage.Store, cfg *config.StorageConfig) *Journal {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}

	return &Journal{
		log:             log,
		store:           store,
		queue:           make(chan entry, size),
		writeTimeout:    cfg.WriteTimeout,
		maxAge:          cfg.MaxAge,
		cleanupInterval: cfg.CleanupInterval,
		stopCh:          make(chan struct{}),
	}
}

func (j *Journal) Start(ctx context.Context) {
	j.wg.Add(2)
	go j.runWriter(ctx)
	go j.runRetention(ctx)
}

// Stop signals both loops and waits for the writer to drain what is already
// queued.
func (j *Journal) Stop() {
	close(j.stopCh)
	j.wg.Wait()
}

// RecordReading enqueues a reading for durable append. Never blocks: when
// the queue is full the entry is dropped and the drop logged.
func (j *Journal) RecordReading(reading model.Reading) {
	j.enqueue(entry{reading: &reading})
}

// RecordEvent enqueues an audit record. Same non-blocking contract as
// RecordReading.
func (j *Journal) RecordEvent(record model.LogRecord) {
	j.enqueue(entry{record: &record})
}

func (j *Journal) enqueue(e entry) {
	select {
	case j.queue <- e:
	default:
		j.log.Warn("journal queue full, dropping entry")
	}
}

func (j *Journal) runWriter(ctx context.Context) {
	defer j.wg.Done()

	for {
		select {
		case <-ctx.Done():
			j.drain()
			return
		case <-j.stopCh:
			j.drain()
			return
		case e := <-j.queue:
			j.write(ctx, e)
		}
	}
}

// drain flushes entries that were queued before shutdown. New enqueues may
// still race in; anything left after the queue reads empty is dropped.
func (j *Journal) drain() {
	for {
		select {
		case e := <-j.queue:
			j.write(context.Background(), e)
		default:
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, e entry) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.writeTimeout)
	defer cancel()

	if e.reading != nil {
		if err := j.store.AppendReading(writeCtx, *e.reading); err != nil {
			j.log.Error("failed to append reading",
				slog.String("id", e.reading.ID),
				sl.Err(err),
			)
		}
	}

	if e.record != nil {
		if err := j.store.AppendRecord(writeCtx, *e.record); err != nil {
			j.log.Error("failed to append audit record",
				slog.String("id", e.record.ID),
				slog.String("kind", string(e.record.Kind)),
				sl.Err(err),
			)
		}
	}
}

func (j *Journal) runRetention(ctx context.Context) {
	defer j.wg.Done()

	if j.maxAge <= 0 || j.cleanupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(j.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.writeTimeout)
			if err := j.store.Cleanup(cleanupCtx, j.maxAge); err != nil {
				j.log.Error("failed to cleanup audit log", sl.Err(err))
			}
			cancel()
		}
	}
}
