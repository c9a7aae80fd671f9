package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/session"
	"github.com/claude/repsync/internal/store"
)

type startSessionRequest struct {
	// Either a full plan or a workout ID the agent resolves (from cache
	// when offline).
	Workout   *models.Workout `json:"workout,omitempty"`
	WorkoutID string          `json:"workout_id,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	workout := req.Workout
	if workout == nil {
		if req.WorkoutID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "workout or workout_id required"})
			return
		}
		fetched, err := s.agent.FetchWorkout(r.Context(), req.WorkoutID)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		workout = fetched
	}

	snap, err := s.machine.Start(r.Context(), *workout)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.machine.Status()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":                snap,
		"rest_remaining_seconds": int(s.machine.RestRemaining().Seconds()),
	})
}

type addSetRequest struct {
	WeightKg   float64 `json:"weight_kg"`
	Bodyweight bool    `json:"bodyweight"`
	Reps       int     `json:"reps"`
	Difficulty int     `json:"difficulty"`
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	var req addSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	result, err := s.machine.AddSet(r.Context(), req.WeightKg, req.Bodyweight, req.Reps, req.Difficulty)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSkipRest(w http.ResponseWriter, r *http.Request) {
	if err := s.machine.SkipRest(r.Context()); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": session.StateInProgress})
}

func (s *Server) handleExtendRest(w http.ResponseWriter, r *http.Request) {
	deadline, err := s.machine.ExtendRest(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rest_deadline": deadline})
}

func (s *Server) handleNextExercise(w http.ResponseWriter, r *http.Request) {
	result, err := s.machine.NextExercise(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePreviousExercise(w http.ResponseWriter, r *http.Request) {
	result, err := s.machine.PreviousExercise(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type completeSessionRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req completeSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
	}

	result, err := s.machine.Complete(r.Context(), req.Force)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type abandonSessionRequest struct {
	Confirmed bool `json:"confirmed"`
}

func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	var req abandonSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
	}

	if err := s.machine.Abandon(r.Context(), req.Confirmed); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": session.StateAbandoned})
}

// writeSessionError maps state machine errors onto HTTP statuses: contract
// violations are 409s handled locally, never a network problem.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrIncomplete),
		errors.Is(err, session.ErrConfirmationRequired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		s.log.Error("session operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
