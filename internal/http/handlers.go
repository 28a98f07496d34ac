package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"cratedig/internal/core"
	"cratedig/internal/pipeline"
	"cratedig/internal/rekordbox"
)

type playlistParams struct {
	URL     string `json:"url"`
	Source  string `json:"source"`
	Mode    string `json:"mode"`
	Enrich  bool   `json:"enrich"`
	Refresh bool   `json:"refresh"`

	// CollectionPath points at a server-side Rekordbox export. Used by the
	// JSON variant; the upload variant carries the file itself.
	CollectionPath string `json:"collection_path,omitempty"`
}

type errorResponse struct {
	Error       string         `json:"error"`
	Code        string         `json:"code,omitempty"`
	Hint        string         `json:"hint,omitempty"`
	Diagnostics map[string]any `json:"diagnostics,omitempty"`
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	params := paramsFromQuery(r)
	s.resolve(w, r, params, nil)
}

func (s *Server) handlePlaylistWithRekordbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params playlistParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, &core.ValidationError{Field: "body", Msg: "malformed JSON: " + err.Error()})
		return
	}
	if params.CollectionPath == "" {
		s.writeError(w, &core.ValidationError{Field: "collection_path", Msg: "missing collection path"})
		return
	}

	lib, err := s.loader.LoadFile(params.CollectionPath)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.resolve(w, r, params, lib)
}

func (s *Server) handlePlaylistWithUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize+(64<<10))
	if err := r.ParseMultipartForm(s.config.MaxUploadSize); err != nil {
		s.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, &core.LimitError{
			Resource: "upload_bytes",
			Msg:      s.loc.T("upload_too_large", s.config.MaxUploadSize),
		})
		return
	}

	file, header, err := r.FormFile("collection")
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, &core.ValidationError{Field: "collection", Msg: s.loc.T("upload_not_xml")})
		return
	}
	defer file.Close()

	if !looksLikeXML(header.Filename, header.Header.Get("Content-Type")) {
		s.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, &core.ValidationError{Field: "collection", Msg: s.loc.T("upload_not_xml")})
		return
	}
	if header.Size == 0 {
		s.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, &core.ValidationError{Field: "collection", Msg: s.loc.T("upload_empty")})
		return
	}
	if header.Size > s.config.MaxUploadSize {
		s.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, &core.LimitError{
			Resource: "upload_bytes",
			Msg:      s.loc.T("upload_too_large", s.config.MaxUploadSize),
		})
		return
	}

	lib, err := s.loader.Parse(file, header.Size)
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, err)
		return
	}
	s.metrics.UploadsTotal.WithLabelValues("accepted").Inc()

	params := playlistParams{
		URL:     r.FormValue("url"),
		Source:  r.FormValue("source"),
		Mode:    r.FormValue("mode"),
		Enrich:  parseBool(r.FormValue("enrich")),
		Refresh: parseBool(r.FormValue("refresh")),
	}
	s.resolve(w, r, params, lib)
}

// resolve runs the pipeline and writes either the result or a mapped error.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request, params playlistParams, lib *rekordbox.Library) {
	started := time.Now()
	req := pipeline.Request{
		Source:  params.Source,
		URL:     params.URL,
		Mode:    core.ExtractMode(params.Mode),
		Enrich:  params.Enrich,
		Refresh: params.Refresh,
		Library: lib,
	}

	res, err := s.pipeline.Fetch(r.Context(), req)
	source := params.Source
	if source == "" {
		source = string(core.SourceSpotify)
	}
	if err != nil {
		s.metrics.FetchesTotal.WithLabelValues(source, "error").Inc()
		s.writeError(w, err)
		return
	}

	s.metrics.FetchesTotal.WithLabelValues(source, "ok").Inc()
	s.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
	if c, ok := res.Meta["cache"].(string); ok {
		s.metrics.CacheResults.WithLabelValues(c).Inc()
	}
	if n, ok := res.Meta["owned_matches"].(int); ok {
		s.metrics.OwnedMatches.Add(float64(n))
	}

	s.logger.Info("playlist resolved",
		zap.String("source", source),
		zap.Int("tracks", len(res.Tracks)),
		zap.Duration("took", time.Since(started)),
	)
	s.writeJSON(w, http.StatusOK, res)
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}
	errType := "internal"

	var (
		verr *core.ValidationError
		cerr *core.ConfigError
		uerr *core.UpstreamError
		xerr *core.ExtractionError
		lerr *core.LimitError
		serr *core.StructuralError
	)
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		errType = "validation"
	case errors.As(err, &cerr):
		status = http.StatusServiceUnavailable
		errType = "config"
	case errors.As(err, &uerr):
		errType = "upstream"
		resp.Code = uerr.Code
		resp.Hint = uerr.Hint
		switch uerr.Code {
		case "editorial_playlist":
			status = http.StatusUnprocessableEntity
		case "not_found_any_market":
			status = http.StatusNotFound
		default:
			status = http.StatusBadGateway
		}
	case errors.As(err, &xerr):
		status = http.StatusBadGateway
		errType = "extraction"
		resp.Code = xerr.Reason
		resp.Diagnostics = xerr.Diagnostics
	case errors.As(err, &lerr):
		status = http.StatusRequestEntityTooLarge
		errType = "limit"
		resp.Code = lerr.Resource
	case errors.As(err, &serr):
		status = http.StatusUnprocessableEntity
		errType = "structural"
	}

	s.metrics.ErrorsTotal.WithLabelValues(errType).Inc()
	s.logger.Warn("request failed",
		zap.String("type", errType),
		zap.Int("status", status),
		zap.Error(err),
	)
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", zap.Error(err))
	}
}

func paramsFromQuery(r *http.Request) playlistParams {
	q := r.URL.Query()
	return playlistParams{
		URL:     q.Get("url"),
		Source:  q.Get("source"),
		Mode:    q.Get("mode"),
		Enrich:  parseBool(q.Get("enrich")),
		Refresh: parseBool(q.Get("refresh")),
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func looksLikeXML(filename, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(filename), ".xml") {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "xml")
}
