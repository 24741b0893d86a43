package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reading is one snapshot of device state. Optional fields are pointers:
// nil means the field was not present in the raw line that produced the
// snapshot. Raw is always set, even when nothing else parsed.
type Reading struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Moisture       *int      `json:"moisture,omitempty"`
	MoistureStatus *string   `json:"moistureStatus,omitempty"`
	Light          *int      `json:"light,omitempty"`
	LightStatus    *string   `json:"lightStatus,omitempty"`
	Water          *int      `json:"water,omitempty"`
	WaterStatus    *string   `json:"waterStatus,omitempty"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`
	Servo          *int      `json:"servo,omitempty"`
	Raw            string    `json:"raw"`
}

func NewReading(raw string) Reading {
	return Reading{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Raw:       raw,
	}
}

func (r *Reading) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func ReadingFromJSON(data []byte) (*Reading, error) {
	var r Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
