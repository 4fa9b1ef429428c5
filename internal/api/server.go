// Package api exposes the catalog and the session manager over a small
// JSON HTTP facade, so the browsing core can be driven by anything that
// speaks HTTP.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kavinraju/cirrus/internal/catalog"
	"github.com/kavinraju/cirrus/internal/creds"
	"github.com/kavinraju/cirrus/internal/errs"
	"github.com/kavinraju/cirrus/internal/logger"
	"github.com/kavinraju/cirrus/internal/namespace"
	"github.com/kavinraju/cirrus/internal/objstore"
	"github.com/kavinraju/cirrus/internal/session"
)

// uploadMemoryLimit caps how much of a multipart upload is buffered in
// memory before spilling to temp files.
const uploadMemoryLimit = 32 << 20

// Server wires the catalog, credential vault and session manager into
// an http.Handler.
type Server struct {
	catalog catalog.Store
	vault   creds.Provider
	manager *session.Manager
	log     *logger.Logger
	router  chi.Router
}

// NewServer builds the HTTP facade. All dependencies are required
// except log.
func NewServer(cat catalog.Store, vault creds.Provider, manager *session.Manager, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		catalog: cat,
		vault:   vault,
		manager: manager,
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", s.listSources)
		r.Put("/sources/{id}", s.saveSource)
		r.Delete("/sources/{id}", s.deleteSource)

		r.Get("/tags", s.listTags)
		r.Put("/tags/{id}", s.saveTag)
		r.Delete("/tags/{id}", s.deleteTag)

		r.Put("/credentials/{ref}", s.saveCredentials)
		r.Delete("/credentials/{ref}", s.deleteCredentials)

		r.Get("/session", s.sessionSnapshot)
		r.Post("/session/connect", s.connect)
		r.Post("/session/disconnect", s.disconnect)

		r.Get("/files", s.listFiles)
		r.Delete("/files", s.deleteFile)
		r.Post("/files/upload", s.uploadFiles)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// --- catalog handlers ---

type sourcePayload struct {
	Name           string   `json:"name"`
	Provider       string   `json:"provider"`
	Endpoint       string   `json:"endpoint"`
	Bucket         string   `json:"bucket"`
	Region         string   `json:"region,omitempty"`
	UseSSL         bool     `json:"use_ssl"`
	PathStyle      bool     `json:"path_style"`
	Note           string   `json:"note,omitempty"`
	CDNURL         string   `json:"cdn_url,omitempty"`
	CredentialsRef string   `json:"credentials_ref"`
	TagIDs         []string `json:"tags,omitempty"`
}

type sourceResponse struct {
	ID string `json:"id"`
	sourcePayload
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.catalog.ListSources(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}

	out := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		out = append(out, toSourceResponse(src))
	}
	s.renderJSON(w, http.StatusOK, out)
}

func (s *Server) saveSource(w http.ResponseWriter, r *http.Request) {
	var payload sourcePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.renderError(w, errs.Wrap(errs.ErrKindConfiguration, "invalid source body", err))
		return
	}

	src := catalog.Source{
		ID:   chi.URLParam(r, "id"),
		Name: payload.Name,
		Endpoint: objstore.EndpointConfig{
			Provider:       objstore.Provider(payload.Provider),
			Endpoint:       payload.Endpoint,
			Bucket:         payload.Bucket,
			Region:         payload.Region,
			UseSSL:         payload.UseSSL,
			PathStyle:      payload.PathStyle,
			Note:           payload.Note,
			CDNURL:         payload.CDNURL,
			CredentialsRef: payload.CredentialsRef,
		},
		TagIDs: payload.TagIDs,
	}
	if err := s.catalog.SaveSource(r.Context(), src); err != nil {
		s.renderError(w, err)
		return
	}
	s.renderJSON(w, http.StatusOK, toSourceResponse(src))
}

func (s *Server) deleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteSource(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.renderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tagPayload struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.catalog.ListTags(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}

	type tagResponse struct {
		ID string `json:"id"`
		tagPayload
	}
	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagResponse{ID: t.ID, tagPayload: tagPayload{Name: t.Name, Color: t.Color}})
	}
	s.renderJSON(w, http.StatusOK, out)
}

func (s *Server) saveTag(w http.ResponseWriter, r *http.Request) {
	var payload tagPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.renderError(w, errs.Wrap(errs.ErrKindConfiguration, "invalid tag body", err))
		return
	}

	tag := catalog.Tag{ID: chi.URLParam(r, "id"), Name: payload.Name, Color: payload.Color}
	if err := s.catalog.SaveTag(r.Context(), tag); err != nil {
		s.renderError(w, err)
		return
	}
	s.renderJSON(w, http.StatusOK, tag)
}

func (s *Server) deleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteTag(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.renderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- credential handlers ---

// saveCredentials accepts a key pair and stores it in the vault. The
// pair is write-only: no handler ever returns secret material.
func (s *Server) saveCredentials(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccessKey string `json:"access_key"`
		SecretKey string `json:"secret_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.renderError(w, errs.Wrap(errs.ErrKindConfiguration, "invalid credentials body", err))
		return
	}

	pair := creds.Credentials{AccessKey: payload.AccessKey, SecretKey: payload.SecretKey}
	if err := s.vault.Save(pair, chi.URLParam(r, "ref")); err != nil {
		s.renderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteCredentials(w http.ResponseWriter, r *http.Request) {
	s.vault.Delete(chi.URLParam(r, "ref"))
	w.WriteHeader(http.StatusNoContent)
}

// --- session handlers ---

type nodeResponse struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	FileCount int    `json:"file_count,omitempty"`
	TotalSize int64  `json:"total_size,omitempty"`
	Size      int64  `json:"size,omitempty"`
	URL       string `json:"url,omitempty"`
}

type snapshotResponse struct {
	State        string         `json:"state"`
	ErrorMessage string         `json:"error,omitempty"`
	Path         string         `json:"path"`
	View         []nodeResponse `json:"view"`
	Loading      bool           `json:"loading"`
	Uploading    bool           `json:"uploading"`
	Progress     float64        `json:"progress"`
}

func (s *Server) sessionSnapshot(w http.ResponseWriter, r *http.Request) {
	s.renderJSON(w, http.StatusOK, toSnapshotResponse(s.manager.Snapshot()))
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SourceID string `json:"source_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.renderError(w, errs.Wrap(errs.ErrKindConfiguration, "invalid connect body", err))
		return
	}

	src, err := s.catalog.GetSource(r.Context(), payload.SourceID)
	if err != nil {
		s.renderError(w, err)
		return
	}
	if err := s.manager.Connect(r.Context(), src.Endpoint); err != nil {
		s.renderError(w, err)
		return
	}
	s.renderJSON(w, http.StatusOK, toSnapshotResponse(s.manager.Snapshot()))
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	s.manager.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if err := s.manager.LoadFiles(r.Context(), path); err != nil {
		s.renderError(w, err)
		return
	}
	s.renderJSON(w, http.StatusOK, toSnapshotResponse(s.manager.Snapshot()))
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.renderError(w, errs.New(errs.ErrKindConfiguration, "key query parameter is required"))
		return
	}
	if err := s.manager.DeleteFile(r.Context(), objstore.ObjectInfo{Key: key}); err != nil {
		s.renderError(w, err)
		return
	}
	s.renderJSON(w, http.StatusOK, toSnapshotResponse(s.manager.Snapshot()))
}

type batchResponse struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failures  []struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	} `json:"failures"`
}

// uploadFiles accepts a multipart form: any number of "files" parts
// plus an optional "path" destination field.
func (s *Server) uploadFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		s.renderError(w, errs.Wrap(errs.ErrKindConfiguration, "invalid multipart body", err))
		return
	}

	destPath := r.FormValue("path")
	var sources []session.Source
	for _, header := range r.MultipartForm.File["files"] {
		header := header
		sources = append(sources, session.Source{
			Name: header.Filename,
			Read: func() ([]byte, error) {
				f, err := header.Open()
				if err != nil {
					return nil, err
				}
				defer f.Close()
				return io.ReadAll(f)
			},
		})
	}
	if len(sources) == 0 {
		s.renderError(w, errs.New(errs.ErrKindConfiguration, "no files in upload"))
		return
	}

	result, err := s.manager.UploadBatch(r.Context(), sources, destPath)
	if err != nil {
		s.renderError(w, err)
		return
	}

	out := batchResponse{Attempted: result.Attempted, Succeeded: result.Succeeded}
	for _, f := range result.Failures {
		out.Failures = append(out.Failures, struct {
			Name   string `json:"name"`
			Reason string `json:"reason"`
		}{Name: f.Name, Reason: f.Reason})
	}
	s.renderJSON(w, http.StatusOK, out)
}

// --- rendering ---

func toSourceResponse(src catalog.Source) sourceResponse {
	e := src.Endpoint
	return sourceResponse{
		ID: src.ID,
		sourcePayload: sourcePayload{
			Name:           src.Name,
			Provider:       string(e.Provider),
			Endpoint:       e.Endpoint,
			Bucket:         e.Bucket,
			Region:         e.Region,
			UseSSL:         e.UseSSL,
			PathStyle:      e.PathStyle,
			Note:           e.Note,
			CDNURL:         e.CDNURL,
			CredentialsRef: e.CredentialsRef,
			TagIDs:         src.TagIDs,
		},
	}
}

func toSnapshotResponse(snap session.Snapshot) snapshotResponse {
	out := snapshotResponse{
		State:        snap.State.String(),
		ErrorMessage: snap.ErrorMessage,
		Path:         snap.Path,
		View:         []nodeResponse{},
		Loading:      snap.Loading,
		Uploading:    snap.Uploading,
		Progress:     snap.Progress,
	}
	for _, n := range snap.View {
		node := nodeResponse{Name: n.Name, Path: n.Path}
		if n.Kind == namespace.KindFolder {
			node.Kind = "folder"
			node.FileCount = n.FileCount
			node.TotalSize = n.TotalSize
		} else {
			node.Kind = "file"
			if n.Object != nil {
				node.Size = n.Object.Size
				node.URL = n.Object.URL
			}
		}
		out.View = append(out.View, node)
	}
	return out
}

func (s *Server) renderJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("failed to encode response: %v", err)
	}
}

// renderError maps the error taxonomy onto HTTP statuses.
func (s *Server) renderError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsNotFound(err):
		status = http.StatusNotFound
	case errs.IsConfiguration(err):
		status = http.StatusBadRequest
	case errs.IsProtocol(err):
		status = http.StatusBadGateway
	case errs.IsTransport(err):
		status = http.StatusBadGateway
	case errs.IsCanceled(err):
		status = http.StatusRequestTimeout
	}

	s.renderJSON(w, status, map[string]string{"error": err.Error()})
}
