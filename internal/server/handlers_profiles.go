package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/resume-builder/internal/db"
	"go.uber.org/zap"
)

// requireStore writes a 503 and returns false when no database is configured.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Database not configured")
		return false
	}
	return true
}

// pathID parses the {id} path value.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON decodes a bounded request body.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// storeFailure maps a store error to a response.
func (s *Server) storeFailure(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, db.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, notFound)
		return
	}
	s.logger.Error("store operation failed", zap.Error(err))
	s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var in db.ProfileInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		s.validationResponse(w, err)
		return
	}

	profile, err := s.store.CreateProfile(r.Context(), in)
	if err != nil {
		s.storeFailure(w, err, "Profile not found")
		return
	}
	s.jsonResponse(w, http.StatusCreated, profile)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	profile, err := s.store.GetProfile(r.Context(), id)
	if err != nil {
		s.storeFailure(w, err, "Profile not found")
		return
	}
	if profile == nil {
		s.errorResponse(w, http.StatusNotFound, "Profile not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var in db.ProfileInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		s.validationResponse(w, err)
		return
	}

	profile, err := s.store.UpdateProfile(r.Context(), id, in)
	if err != nil {
		s.storeFailure(w, err, "Profile not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteProfile(r.Context(), id); err != nil {
		s.storeFailure(w, err, "Profile not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
