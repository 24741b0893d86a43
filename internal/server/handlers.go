package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/plantwise-io/plantmon/internal/lib/logger/sl"
	"github.com/plantwise-io/plantmon/internal/model"
	"github.com/plantwise-io/plantmon/internal/storage"
)

type ingestRequest struct {
	Data *string `json:"data"`
}

type servoRequest struct {
	Position *float64 `json:"position"`
}

type statusResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Position *int   `json:"position,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", sl.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, statusResponse{Status: "error", Message: message})
}

// handleIngest accepts one raw device line. Ingestion succeeds as soon as
// the raw string is captured in memory; durable writes and parse problems
// are reported independently and never fail the response.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Data == nil {
		s.writeError(w, http.StatusBadRequest, "missing data field")
		return
	}

	reading, problems := s.readings.Ingest(*req.Data)

	s.journal.RecordReading(reading)
	s.journal.RecordEvent(model.NewSensorRecord(*req.Data))

	if len(problems) > 0 {
		s.log.Warn("sensor line parsed with problems",
			slog.String("raw", *req.Data),
			slog.Int("problems", len(problems)),
		)
		s.journal.RecordEvent(model.NewErrorRecord("sensor line parse", problems))
	}

	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.readings.Current())
}

// handleServo validates and queues a servo command. Validation failures
// leave the mailbox untouched.
func (s *Server) handleServo(w http.ResponseWriter, r *http.Request) {
	var req servoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Position == nil {
		s.writeError(w, http.StatusBadRequest, "position must be a number")
		return
	}

	pos := *req.Position
	if pos != math.Trunc(pos) {
		s.writeError(w, http.StatusBadRequest, "position must be a whole number")
		return
	}

	position := int(pos)
	minPos, maxPos := s.cfg.Servo.MinPosition, s.cfg.Servo.MaxPosition
	if position < minPos || position > maxPos {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("position must be between %d and %d", minPos, maxPos))
		return
	}

	s.mailbox.SetPending(position)
	s.journal.RecordEvent(model.NewServoRecord(position))

	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success", Position: &position})
}

// handleServoCheck is the device's poll for a pending command. Consuming
// and clearing happen in one step, so each command is delivered at most
// once.
func (s *Server) handleServoCheck(w http.ResponseWriter, r *http.Request) {
	position, ok := s.mailbox.PollAndClear()
	if !ok {
		s.writeJSON(w, http.StatusOK, statusResponse{Status: "no_request"})
		return
	}

	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success", Position: &position})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, skip, ok := s.parsePage(w, r)
	if !ok {
		return
	}

	readings, err := s.store.Readings(r.Context(), limit, skip)
	if err != nil {
		s.log.Error("failed to query history", sl.Err(err))
		s.writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}

	s.writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, skip, ok := s.parsePage(w, r)
	if !ok {
		return
	}

	filter := storage.RecordFilter{Limit: limit, Skip: skip}

	if kind := r.URL.Query().Get("type"); kind != "" {
		if !model.ValidKind(kind) {
			s.writeError(w, http.StatusBadRequest, "unknown log type: "+kind)
			return
		}
		filter.Kind = kind
	}

	if raw := r.URL.Query().Get("startDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid startDate")
			return
		}
		filter.Start = &t
	}

	if raw := r.URL.Query().Get("endDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid endDate")
			return
		}
		filter.End = &t
	}

	records, err := s.store.Records(r.Context(), filter)
	if err != nil {
		s.log.Error("failed to query logs", sl.Err(err))
		s.writeError(w, http.StatusInternalServerError, "failed to query logs")
		return
	}

	s.writeJSON(w, http.StatusOK, records)
}

// parsePage reads limit and skip query parameters, applying the configured
// default and cap. A false return means the response has been written.
func (s *Server) parsePage(w http.ResponseWriter, r *http.Request) (limit, skip int, ok bool) {
	limit = s.cfg.History.DefaultLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return 0, 0, false
		}
		limit = n
	}

	if limit > s.cfg.History.MaxLimit {
		limit = s.cfg.History.MaxLimit
	}

	if raw := r.URL.Query().Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid skip")
			return 0, 0, false
		}
		skip = n
	}

	return limit, skip, true
}
