package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/gridimport/internal/core"
	"github.com/JonMunkholm/gridimport/internal/formatter"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

type profileSummary struct {
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Source        core.SourceKind `json:"source"`
	Sink          core.SinkKind   `json:"sink"`
	AcceptsUpload bool            `json:"acceptsUpload"`
	ColumnCount   int             `json:"columnCount"`
}

type columnInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Binding   string `json:"binding,omitempty"`
	BindName  string `json:"bindName,omitempty"`
	AllowNull bool   `json:"allowNull"`
	Depth     int    `json:"depth,omitempty"`
}

type profileDetail struct {
	profileSummary
	Columns []columnInfo `json:"columns"`
}

type importResponse struct {
	ID         uuid.UUID           `json:"id"`
	Profile    string              `json:"profile"`
	Rows       int                 `json:"rows"`
	DurationMs int64               `json:"durationMs"`
	Database   *formatter.Result   `json:"database,omitempty"`
	Columns    []string            `json:"columns,omitempty"`
	Records    []map[string]string `json:"records,omitempty"`
}

func summarize(p *core.Profile) profileSummary {
	return profileSummary{
		Name:          p.Name,
		Description:   p.Description,
		Source:        p.Source.Kind,
		Sink:          p.Sink.Kind,
		AcceptsUpload: p.AcceptsUpload(),
		ColumnCount:   len(p.Schema().Expand()),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"profiles": len(s.service.Profiles()),
		"imports":  s.service.Limiter().Status(),
	})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := s.service.Profiles()
	out := make([]profileSummary, len(profiles))
	for i, p := range profiles {
		out[i] = summarize(p)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Profile(chi.URLParam(r, "profile"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	detail := profileDetail{profileSummary: summarize(p)}
	p.Schema().Walk(func(c schema.Column, depth int) {
		info := columnInfo{
			Name:      c.Name,
			Type:      c.Type.String(),
			BindName:  c.BindName,
			AllowNull: c.AllowNull,
			Depth:     depth,
		}
		if !c.Binding.IsZero() {
			info.Binding = c.Binding.String()
		}
		detail.Columns = append(detail.Columns, info)
	})
	s.writeJSON(w, http.StatusOK, detail)
}

// handleImport runs a profile synchronously. A multipart "file" part
// replaces the profile's source file; without one the configured path is
// read.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Profile(chi.URLParam(r, "profile"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	src, name, closeSrc, err := s.uploadedSource(w, r, p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer closeSrc()

	res, err := s.service.Run(r.Context(), core.RunRequest{Profile: p.Name, Source: src, SourceName: name})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := importResponse{
		ID:         res.ID,
		Profile:    res.Profile,
		Rows:       res.Rows,
		DurationMs: res.Duration.Milliseconds(),
		Database:   res.Database,
	}
	if res.Grid != nil {
		resp.Columns = res.Grid.Header()
		resp.Records = res.Grid.Records()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handlePreview dry-runs a profile. ?rows= caps the returned sample.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Profile(chi.URLParam(r, "profile"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	src, _, closeSrc, err := s.uploadedSource(w, r, p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer closeSrc()

	limit := parseIntParam(r, "rows", s.cfg.Import.PreviewRows)
	resp, err := s.service.Preview(r.Context(), p.Name, src, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActiveImports(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Active())
}

func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "importID"))
	if err != nil {
		s.respondError(w, r, badRequest("invalid import id"))
		return
	}
	if err := s.service.Cancel(id); err != nil {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   err.Error(),
			Message: "No running import has that id",
			Action:  "List running imports and try again",
			Code:    "IMP005",
		})
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "id": id.String()})
}

// uploadedSource returns the multipart "file" part of r, or a nil file when
// the request carries none. The returned func releases the part.
func (s *Server) uploadedSource(w http.ResponseWriter, r *http.Request, p *core.Profile) (multipart.File, string, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, "", noop, nil
	}
	if !p.AcceptsUpload() {
		return nil, "", noop, badRequest(fmt.Sprintf("profile %q reads from a query and takes no file", p.Name))
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", noop, err
		}
		return nil, "", noop, badRequest("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", noop, nil
	}
	if err != nil {
		return nil, "", noop, badRequest("unreadable file part")
	}
	return file, header.Filename, func() { file.Close() }, nil
}

// parseIntParam parses a positive integer query parameter.
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
