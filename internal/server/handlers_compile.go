package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jonathan/resume-builder/internal/formatting"
	"github.com/jonathan/resume-builder/internal/pagesplit"
	"github.com/jonathan/resume-builder/internal/schemas"
	"github.com/jonathan/resume-builder/internal/types"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// CompileRequest is the body of the compile endpoints.
type CompileRequest struct {
	FormData   types.FormData `json:"formData"`
	TemplateID string         `json:"templateId"`
}

// PagesResponse carries split SVG pages.
type PagesResponse struct {
	Pages []string `json:"pages"`
}

// decodeCompileRequest validates the raw body against the request schema
// before decoding it.
func (s *Server) decodeCompileRequest(w http.ResponseWriter, r *http.Request) (*CompileRequest, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.errorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return nil, false
	}

	if err := schemas.ValidateFormRequest(body); err != nil {
		var serr *schemas.ValidationError
		if errors.As(err, &serr) {
			s.validationResponse(w, err)
			return nil, false
		}
		s.logger.Error("failed to load request schema", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to validate request")
		return nil, false
	}

	var req CompileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	if !s.registry.Has(req.TemplateID) {
		s.errorResponse(w, http.StatusBadRequest, "Unknown template")
		return nil, false
	}
	return &req, true
}

// handleCompilePDF compiles a form to PDF on the server path.
func (s *Server) handleCompilePDF(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCompileRequest(w, r)
	if !ok {
		return
	}

	pdf, err := s.compiler.RenderPDF(r.Context(), formatting.FormatComplete(req.FormData), req.TemplateID)
	if err != nil {
		s.compileFailure(w, err)
		return
	}
	s.pdfResponse(w, pdf, "resume")
}

// handleCompileSVG compiles a form to split SVG pages on the server path.
func (s *Server) handleCompileSVG(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCompileRequest(w, r)
	if !ok {
		return
	}

	svg, err := s.compiler.RenderSVG(r.Context(), formatting.FormatComplete(req.FormData), req.TemplateID)
	if err != nil {
		s.compileFailure(w, err)
		return
	}
	pages := pagesplit.DropTrailing(pagesplit.Split(string(svg)))
	s.jsonResponse(w, http.StatusOK, PagesResponse{Pages: pages})
}

// compileFailure reports a generic failure. The adapter has already logged the cause.
func (s *Server) compileFailure(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	switch status {
	case http.StatusBadRequest:
		s.errorResponse(w, status, "Unknown template")
	case http.StatusGatewayTimeout:
		s.errorResponse(w, status, "Compilation timed out")
	default:
		s.errorResponse(w, http.StatusInternalServerError, "Failed to compile resume")
	}
}

func (s *Server) pdfResponse(w http.ResponseWriter, pdf []byte, title string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", pdfFilename(title)))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		s.logger.Debug("failed to write pdf", zap.Error(err))
	}
}

// pdfFilename makes a safe download name from a resume title.
func pdfFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '-'
		default:
			return -1
		}
	}, strings.TrimSpace(title))
	if name == "" {
		name = "resume"
	}
	return name + ".pdf"
}
