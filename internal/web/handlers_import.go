package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/regionalert/internal/core"
	"github.com/JonMunkholm/regionalert/internal/logging"
)

// multipartMemory is the part of an upload kept in memory; the rest is
// spooled to temp files.
const multipartMemory = 8 << 20

// handleImport serves POST /api/imports with the CSV in the "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Limiter != nil {
		release, ok := s.deps.Limiter.TryAcquire()
		if !ok {
			logging.FromContext(r.Context()).Info("waiting for import slot",
				"active", s.deps.Limiter.ActiveCount(),
			)
			var err error
			if release, err = s.deps.Limiter.Acquire(r.Context()); err != nil {
				s.respondError(w, r, err)
				return
			}
		}
		defer release()
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			respondJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "file too large",
				Message: "The uploaded file exceeds the size limit",
				Action:  "Split the file and import the parts separately",
				Code:    "UPL001",
			})
			return
		}
		respondBadRequest(w, r, "UPL003", "Invalid multipart form", "Upload the CSV as multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondBadRequest(w, r, "UPL003", "No file provided", "Attach the CSV in the \"file\" form field")
		return
	}
	defer file.Close()

	logger := logging.WithFields(r.Context(), "file", header.Filename, "size", header.Size)
	logger.Info("import upload received")

	report, err := s.deps.Importer.ImportReader(r.Context(), header.Filename, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type importListResponse struct {
	Imports []core.ImportRun `json:"imports"`
	Limit   int              `json:"limit,omitempty"`
}

// handleListImports serves GET /api/imports?limit=n.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 0)

	runs, err := s.deps.History.ListImports(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}
	respondJSON(w, http.StatusOK, importListResponse{Imports: runs, Limit: limit})
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

// parseIntParam returns the positive integer query parameter name, or
// defaultVal when it is absent or invalid.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
