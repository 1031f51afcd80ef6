package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"devsign.org/internal/auth"
	"devsign.org/internal/notice"
)

func (a *API) handleNoticesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		notices, err := a.notices.List(r.Context())
		if err != nil {
			handleNoticeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, notices)
	case http.MethodPost:
		identity, ok := requireAdmin(w, r)
		if !ok {
			return
		}
		var req notice.Request
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, r, http.StatusBadRequest, "title is required")
			return
		}
		name, _ := a.actorInfo(r, identity)
		n, err := a.notices.Create(r.Context(), req, name, clientIP(r))
		if err != nil {
			handleNoticeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleNoticeResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/notices/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]

	if len(parts) == 2 && parts[1] == "pin" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		identity, ok := requireAdmin(w, r)
		if !ok {
			return
		}
		name, _ := a.actorInfo(r, identity)
		pinned, err := a.notices.TogglePin(r.Context(), id, name, clientIP(r))
		if err != nil {
			handleNoticeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pinned": pinned})
		return
	}
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		identity, _ := auth.IdentityFromContext(r.Context())
		view, err := a.notices.Get(r.Context(), id, identity.Subject)
		if err != nil {
			handleNoticeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		identity, ok := requireAdmin(w, r)
		if !ok {
			return
		}
		var req notice.Request
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		name, _ := a.actorInfo(r, identity)
		n, err := a.notices.Update(r.Context(), id, req, name, clientIP(r))
		if err != nil {
			handleNoticeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case http.MethodDelete:
		identity, ok := requireAdmin(w, r)
		if !ok {
			return
		}
		name, _ := a.actorInfo(r, identity)
		if err := a.notices.Delete(r.Context(), id, name, clientIP(r)); err != nil {
			handleNoticeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func handleNoticeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notice.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, notice.ErrPinnedLimit):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
