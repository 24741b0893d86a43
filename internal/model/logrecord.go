package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RecordKind tags an audit log entry with the event that produced it.
type RecordKind string

const (
	KindSensor RecordKind = "sensor"
	KindServo  RecordKind = "servo"
	KindSystem RecordKind = "system"
	KindError  RecordKind = "error"
)

func ValidKind(k string) bool {
	switch RecordKind(k) {
	case KindSensor, KindServo, KindSystem, KindError:
		return true
	}
	return false
}

// LogRecord is one durable audit entry. Payload holds the kind-specific
// data, marshalled at construction so readers never depend on the concrete
// payload type.
type LogRecord struct {
	ID        string          `json:"id"`
	Kind      RecordKind      `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type SensorPayload struct {
	Raw string `json:"raw"`
}

type ServoPayload struct {
	Position int `json:"position"`
}

type SystemPayload struct {
	Event string `json:"event"`
}

type ErrorPayload struct {
	Context string   `json:"context"`
	Details []string `json:"details,omitempty"`
}

func newRecord(kind RecordKind, message string, payload any) LogRecord {
	// Marshalling a local struct of plain fields cannot fail.
	data, _ := json.Marshal(payload)
	return LogRecord{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Message:   message,
		Payload:   data,
	}
}

func NewSensorRecord(raw string) LogRecord {
	return newRecord(KindSensor, "sensor data received", SensorPayload{Raw: raw})
}

func NewServoRecord(position int) LogRecord {
	return newRecord(KindServo, "servo command queued", ServoPayload{Position: position})
}

func NewSystemRecord(event string) LogRecord {
	return newRecord(KindSystem, event, SystemPayload{Event: event})
}

func NewErrorRecord(context string, details []string) LogRecord {
	return newRecord(KindError, context, ErrorPayload{Context: context, Details: details})
}
