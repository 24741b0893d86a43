// Package state holds the process-wide live state: the current Reading and
// the single-slot servo command mailbox. Both are lost on restart; the
// durable log is the system of record for history.
package state

import (
	"sync"

	"github.com/plantwise-io/plantmon/internal/model"
	"github.com/plantwise-io/plantmon/internal/parser"
)

// ReadingStore owns the single current Reading. Ingest replaces the whole
// snapshot under one lock so no reader ever sees fields from two lines.
type ReadingStore struct {
	mu      sync.RWMutex
	current model.Reading
}

func NewReadingStore() *ReadingStore {
	return &ReadingStore{}
}

// Ingest parses the raw line and replaces the current Reading. Every field
// absent from this line comes back absent; nothing carries over from the
// previous snapshot. Raw and Timestamp are set unconditionally, so even a
// line that parses to nothing still produces a fresh Reading. The parse
// problems are returned for the caller to report.
func (s *ReadingStore) Ingest(raw string) (model.Reading, []string) {
	res := parser.Parse(raw)

	reading := model.NewReading(raw)
	reading.Moisture = res.Moisture
	reading.MoistureStatus = res.MoistureStatus
	reading.Light = res.Light
	reading.LightStatus = res.LightStatus
	reading.Water = res.Water
	reading.WaterStatus = res.WaterStatus
	reading.Temperature = res.Temperature
	reading.Humidity = res.Humidity
	reading.Servo = res.Servo

	s.mu.Lock()
	s.current = reading
	s.mu.Unlock()

	return reading, res.Problems
}

// Current returns the latest Reading. Before the first ingest the zero
// Reading is returned (empty raw, zero timestamp).
func (s *ReadingStore) Current() model.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
