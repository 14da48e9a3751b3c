package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/audit"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
)

// sourceAPI marks commands issued over HTTP.
const sourceAPI = "api"

// doorCommandRequest is the body of POST /door/commands.
type doorCommandRequest struct {
	Command  string   `json:"command"`
	Position *float64 `json:"position,omitempty"`
	On       *bool    `json:"on,omitempty"`
}

// doorCommandResponse answers an accepted command.
type doorCommandResponse struct {
	DoorID  string `json:"door_id"`
	Command string `json:"command"`
	Result  string `json:"result"`
	Skipped bool   `json:"skipped,omitempty"`
}

// doorResponse wraps a snapshot with its door ID.
type doorResponse struct {
	DoorID string            `json:"door_id"`
	State  hoermann.Snapshot `json:"state"`
}

// handleGetDoor returns the current door snapshot.
func (s *Server) handleGetDoor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, doorResponse{
		DoorID: s.door.DoorID(),
		State:  s.door.Snapshot(),
	})
}

// handleDoorCommand runs a door action.
//
// Armed and skipped commands answer 202, a command dropped because another
// is in flight answers 409, and validation errors answer 400.
func (s *Server) handleDoorCommand(w http.ResponseWriter, r *http.Request) {
	var req doorCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "command is required")
		return
	}

	result, err := s.door.Execute(req.Command, hoermann.ActionParams{Position: req.Position, On: req.On}, sourceAPI)
	if err != nil {
		if errors.Is(err, hoermann.ErrUnknownAction) || errors.Is(err, hoermann.ErrMissingParameter) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		writeInternalError(w, "command failed")
		return
	}

	resp := doorCommandResponse{
		DoorID:  s.door.DoorID(),
		Command: req.Command,
		Result:  result.String(),
	}
	switch result {
	case hoermann.Dropped:
		writeError(w, http.StatusConflict, ErrCodeConflict, "another command is in flight")
	case hoermann.Skipped:
		resp.Skipped = true
		writeJSON(w, http.StatusAccepted, resp)
	default:
		writeJSON(w, http.StatusAccepted, resp)
	}
}

// handleDoorHistory lists recent door events, newest first.
func (s *Server) handleDoorHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history is not enabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	doorID := s.door.DoorID()
	entries, err := s.history.List(r.Context(), doorID, limit)
	if err != nil {
		s.logger.Error("history query failed", "door_id", doorID, "error", err)
		writeInternalError(w, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"door_id": doorID,
		"events":  entries,
		"count":   len(entries),
	})
}

// handleListCommands pages through the command audit trail for this door.
// Optional filters: source, result, limit, offset.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command log is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		DoorID: s.door.DoorID(),
		Source: q.Get("source"),
		Result: q.Get("result"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("command log query failed", "door_id", filter.DoorID, "error", err)
		writeInternalError(w, "failed to load command log")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
