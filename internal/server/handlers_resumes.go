package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-builder/internal/db"
	"github.com/jonathan/resume-builder/internal/formatting"
	"github.com/jonathan/resume-builder/internal/pagesplit"
	"go.uber.org/zap"
)

// ShareResponse is returned when a resume is shared.
type ShareResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleListResumes(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	profileID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	profile, err := s.store.GetProfile(r.Context(), profileID)
	if err != nil {
		s.storeFailure(w, err, "Profile not found")
		return
	}
	if profile == nil {
		s.errorResponse(w, http.StatusNotFound, "Profile not found")
		return
	}

	resumes, err := s.store.ListResumes(r.Context(), profileID)
	if err != nil {
		s.storeFailure(w, err, "Profile not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"resumes": resumes})
}

// decodeResumeInput decodes and validates a resume body, including the template id.
func (s *Server) decodeResumeInput(w http.ResponseWriter, r *http.Request) (db.ResumeInput, bool) {
	var in db.ResumeInput
	if !s.decodeJSON(w, r, &in) {
		return in, false
	}
	if err := in.Validate(); err != nil {
		s.validationResponse(w, err)
		return in, false
	}
	if !s.registry.Has(in.TemplateID) {
		s.validationResponse(w, &ErrValidation{Field: "templateId", Message: "unknown template"})
		return in, false
	}
	return in, true
}

func (s *Server) handleCreateResume(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	profileID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	in, ok := s.decodeResumeInput(w, r)
	if !ok {
		return
	}

	resume, err := s.store.CreateResume(r.Context(), profileID, in)
	if err != nil {
		s.storeFailure(w, err, "Profile not found")
		return
	}
	s.jsonResponse(w, http.StatusCreated, resume)
}

// loadResume fetches the {id} resume, writing a response on failure.
func (s *Server) loadResume(w http.ResponseWriter, r *http.Request) (*db.Resume, bool) {
	if !s.requireStore(w) {
		return nil, false
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return nil, false
	}
	return s.findResume(w, r, id)
}

func (s *Server) findResume(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*db.Resume, bool) {
	resume, err := s.store.GetResume(r.Context(), id)
	if err != nil {
		s.storeFailure(w, err, "Resume not found")
		return nil, false
	}
	if resume == nil {
		s.errorResponse(w, http.StatusNotFound, "Resume not found")
		return nil, false
	}
	return resume, true
}

func (s *Server) handleGetResume(w http.ResponseWriter, r *http.Request) {
	resume, ok := s.loadResume(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, resume)
}

func (s *Server) handleUpdateResume(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	in, ok := s.decodeResumeInput(w, r)
	if !ok {
		return
	}

	resume, err := s.store.UpdateResume(r.Context(), id, in)
	if err != nil {
		s.storeFailure(w, err, "Resume not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, resume)
}

func (s *Server) handleDeleteResume(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteResume(r.Context(), id); err != nil {
		s.storeFailure(w, err, "Resume not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResumePDF exports a saved resume through the server compile path.
func (s *Server) handleResumePDF(w http.ResponseWriter, r *http.Request) {
	resume, ok := s.loadResume(w, r)
	if !ok {
		return
	}
	s.renderResumePDF(w, r, resume)
}

func (s *Server) renderResumePDF(w http.ResponseWriter, r *http.Request, resume *db.Resume) {
	pdf, err := s.compiler.RenderPDF(r.Context(), formatting.FormatComplete(resume.FormData), resume.TemplateID)
	if err != nil {
		s.compileFailure(w, err)
		return
	}
	s.pdfResponse(w, pdf, resume.Title)
}

// handleShareResume makes a resume public and returns a signed link.
func (s *Server) handleShareResume(w http.ResponseWriter, r *http.Request) {
	if s.share == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Sharing is not configured")
		return
	}
	resume, ok := s.loadResume(w, r)
	if !ok {
		return
	}

	if err := s.store.SetResumePublic(r.Context(), resume.ID, true); err != nil {
		s.storeFailure(w, err, "Resume not found")
		return
	}

	token, expiresAt, err := s.share.GenerateToken(resume.ID)
	if err != nil {
		s.logger.Error("failed to sign share token", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to share resume")
		return
	}
	s.jsonResponse(w, http.StatusOK, ShareResponse{
		Token:     token,
		URL:       "/r/" + token,
		ExpiresAt: expiresAt,
	})
}

// handleSharedResume serves the PDF behind a share link. Invalid tokens and
// resumes that are no longer public look the same to the caller.
func (s *Server) handleSharedResume(w http.ResponseWriter, r *http.Request) {
	if s.share == nil || s.store == nil {
		s.errorResponse(w, http.StatusNotFound, "Resume not found")
		return
	}

	id, err := s.share.ValidateToken(r.PathValue("token"))
	if err != nil {
		s.logger.Debug("rejected share token", zap.Error(err))
		s.errorResponse(w, http.StatusNotFound, "Resume not found")
		return
	}

	resume, ok := s.findResume(w, r, id)
	if !ok {
		return
	}
	if !resume.IsPublic {
		s.errorResponse(w, http.StatusNotFound, "Resume not found")
		return
	}
	s.renderResumePDF(w, r, resume)
}

// handleResumeThumbnail rasterizes page one of a saved resume.
func (s *Server) handleResumeThumbnail(w http.ResponseWriter, r *http.Request) {
	if s.thumbnails == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Thumbnails are disabled")
		return
	}
	resume, ok := s.loadResume(w, r)
	if !ok {
		return
	}

	svg, err := s.compiler.RenderSVG(r.Context(), formatting.FormatComplete(resume.FormData), resume.TemplateID)
	if err != nil {
		s.compileFailure(w, err)
		return
	}
	pages := pagesplit.DropTrailing(pagesplit.Split(string(svg)))

	png, err := s.thumbnails.RenderPNG(r.Context(), pages[0])
	if err != nil {
		s.logger.Error("failed to render thumbnail", zap.String("resume", resume.ID.String()), zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to render thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		s.logger.Debug("failed to write thumbnail", zap.Error(err))
	}
}
