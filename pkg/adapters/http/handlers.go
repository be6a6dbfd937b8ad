package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aretw0/lattice/internal/render"
	"github.com/aretw0/lattice/pkg/bridge"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// maxBodySize bounds request bodies (documents and imported markup).
const maxBodySize = 8 << 20

// ListPalette handles the GET /palette request.
func (s *Server) ListPalette(w http.ResponseWriter, r *http.Request) {
	palette := s.Studio.Palette()
	kinds, err := palette.ListTemplates(r.Context())
	if err != nil {
		s.fail(w, "list palette", err)
		return
	}
	out := make([]domain.Template, 0, len(kinds))
	for _, kind := range kinds {
		t, err := palette.GetTemplate(r.Context(), kind)
		if err != nil {
			s.fail(w, "get template", err)
			return
		}
		out = append(out, *t)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListProjects handles the GET /projects request.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Studio.Projects(r.Context())
	if err != nil {
		s.fail(w, "list projects", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetProject handles the GET /projects/{id} request.
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.Studio.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "load project", err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// PutProject handles the PUT /projects/{id} request. An open session receives
// the document as a full replace.
func (s *Server) PutProject(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tree, err := domain.ParseTree(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Studio.Put(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("name"), tree); err != nil {
		s.fail(w, "put project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteProject handles the DELETE /projects/{id} request.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.Studio.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStatus handles the GET /projects/{id}/status request.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	sess := s.Studio.Session(projectID)
	if sess == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %q has no open session", domain.ErrProjectNotFound, projectID))
		return
	}
	writeJSON(w, http.StatusOK, sess.Status())
}

// ExportProject handles the GET /projects/{id}/export request.
func (s *Server) ExportProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.Studio.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "load project", err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Write(project.Tree)
		return
	}

	tree, err := project.Document()
	if err != nil {
		s.fail(w, "parse project", err)
		return
	}
	var out, contentType string
	switch format {
	case "markdown":
		out, err = render.Markdown(tree)
		contentType = "text/markdown; charset=utf-8"
	default:
		out, err = render.Page(tree, project.Name)
		contentType = "text/html; charset=utf-8"
	}
	if err != nil {
		s.fail(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	io.WriteString(w, out)
}

// ImportProject handles the POST /projects/{id}/import request: the markup
// body replaces the document.
func (s *Server) ImportProject(w http.ResponseWriter, r *http.Request) {
	tree, err := render.Import(http.MaxBytesReader(w, r.Body, maxBodySize), nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Studio.Put(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("name"), tree); err != nil {
		s.fail(w, "import project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostMessage handles the POST /projects/{id}/messages request. The message
// goes through the project's session, which is opened for the call when no
// client holds it. Frames and notices reach the project's subscribers; the
// response carries the result.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	var msg bridge.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err))
		return
	}

	projectID := chi.URLParam(r, "id")
	result := s.dispatch(r.Context(), projectID, msg)
	writeJSON(w, statusOf(result.Code), result)
}

func (s *Server) dispatch(ctx context.Context, projectID string, msg bridge.Message) bridge.Result {
	sess, err := s.Studio.Open(ctx, projectID, s.Streams.Surface(projectID))
	if err != nil {
		return bridge.NewResult("", err)
	}
	defer func() {
		if err := s.Studio.Release(context.WithoutCancel(ctx), sess); err != nil {
			s.logger.Error("session release failed", "project_id", projectID, "err", err)
		}
	}()

	result := sess.Dispatch(ctx, msg)
	s.Streams.Broadcast(projectID, Event{Type: EventResult, Result: &result})
	return result
}

// fail writes a store or session error with a matching status.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusOf(bridge.Code(err))
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	}
	writeError(w, status, err)
}
