package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/lifecycle"
)

type updateBody struct {
	Patch lifecycle.Patch `json:"patch"`
	lifecycle.UpdateOptions
}

type noteBody struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

type matchResponse struct {
	domain.MatchResult
	Shortlist []domain.RankedCandidate `json:"shortlist"`
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.CreateInput
	if !s.decode(w, r, &in) {
		return
	}
	req, err := s.requests.Create(r.Context(), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.requests.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) updateRequest(w http.ResponseWriter, r *http.Request) {
	var body updateBody
	if !s.decode(w, r, &body) {
		return
	}
	req, err := s.requests.Update(r.Context(), chi.URLParam(r, "id"), body.Patch, body.UpdateOptions)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) reviewRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Review(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) approveRequest(w http.ResponseWriter, r *http.Request) {
	var body noteBody
	if r.ContentLength != 0 && !s.decode(w, r, &body) {
		return
	}
	req, err := s.requests.Approve(r.Context(), chi.URLParam(r, "id"), body.Note)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) rejectRequest(w http.ResponseWriter, r *http.Request) {
	var body noteBody
	if !s.decode(w, r, &body) {
		return
	}
	req, err := s.requests.Reject(r.Context(), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) resubmitRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Resubmit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) matchRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	candidates, err := s.nannies.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	result, shortlist := s.matcher.FindBestMatchDetailed(r.Context(), req, candidates)
	writeJSON(w, http.StatusOK, matchResponse{MatchResult: result, Shortlist: shortlist})
}

func (s *Server) saveNanny(w http.ResponseWriter, r *http.Request) {
	var nanny domain.NannyProfile
	if !s.decode(w, r, &nanny) {
		return
	}
	saved, err := s.nannies.Save(r.Context(), nanny)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) listNannies(w http.ResponseWriter, r *http.Request) {
	all, err := s.nannies.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) clearData(w http.ResponseWriter, r *http.Request) {
	testOnly := false
	if raw := r.URL.Query().Get("testOnly"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.fail(w, domain.NewValidationError("testOnly", "must be a boolean"))
			return
		}
		testOnly = v
	}

	removed := make(map[string]int, len(s.clearers))
	for _, c := range s.clearers {
		n, err := c.Clear(r.Context(), testOnly)
		if err != nil {
			s.fail(w, fmt.Errorf("clear %s: %w", c.Collection(), err))
			return
		}
		removed[c.Collection()] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"testOnly": testOnly, "removed": removed})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.fail(w, fmt.Errorf("%w: decode body: %v", domain.ErrValidation, err))
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEditLocked):
		return http.StatusLocked
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
