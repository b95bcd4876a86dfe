package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/resume-builder/internal/sources"
	"github.com/jonathan/resume-builder/internal/templates"
	"go.uber.org/zap"
)

// sourceCacheControl marks sources as immutable for the lifetime of a deployment.
const sourceCacheControl = "public, max-age=31536000, immutable"

// handleListTemplates returns the template registry rows.
func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"templates": s.registry.Entries()})
}

// handleGetTemplate serves a template's document source. Every failure,
// malformed ids included, is reported as not found.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("templateId")

	content, err := s.sources.ReadTemplate(id)
	if err != nil {
		if !errors.Is(err, sources.ErrNotFound) && !errors.Is(err, sources.ErrInvalidPath) {
			s.logger.Error("failed to read template", zap.String("template", id), zap.Error(err))
		}
		s.errorResponse(w, http.StatusNotFound, "Template not found")
		return
	}
	s.sourceResponse(w, content)
}

// handleGetLibraryFile serves one of a library's two files.
func (s *Server) handleGetLibraryFile(w http.ResponseWriter, r *http.Request) {
	library := r.PathValue("libraryName")
	fileName := r.PathValue("fileName")

	if !sources.ValidSegment(library) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid library")
		return
	}
	if !templates.IsLibraryFile(fileName) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid library or file name")
		return
	}

	content, err := s.sources.ReadLibrary(library, fileName)
	if err != nil {
		if errors.Is(err, sources.ErrNotFound) || errors.Is(err, sources.ErrInvalidPath) {
			s.errorResponse(w, http.StatusBadRequest, "Invalid library or file name")
			return
		}
		s.logger.Error("failed to read library file",
			zap.String("library", library),
			zap.String("file", fileName),
			zap.Error(err),
		)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to read library file")
		return
	}
	s.sourceResponse(w, content)
}

func (s *Server) sourceResponse(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", sourceCacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(content)); err != nil {
		s.logger.Debug("failed to write source", zap.Error(err))
	}
}
