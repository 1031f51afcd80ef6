package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"devsign.org/internal/auth"
	"devsign.org/internal/event"
)

func (a *API) handleEventsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		events, err := a.events.List(r.Context())
		if err != nil {
			handleEventError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	case http.MethodPost:
		identity, ok := requireAdmin(w, r)
		if !ok {
			return
		}
		var req event.Request
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		name, studentID := a.actorInfo(r, identity)
		e, err := a.events.Create(r.Context(), req, name, studentID, clientIP(r))
		if err != nil {
			handleEventError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleEventResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/events/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]

	if len(parts) == 2 && parts[1] == "like" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		res, err := a.events.ToggleLike(r.Context(), id, identity.Subject)
		if err != nil {
			handleEventError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		identity, _ := auth.IdentityFromContext(r.Context())
		view, err := a.events.Get(r.Context(), id, identity.Subject)
		if err != nil {
			handleEventError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		identity, ok := requireAdmin(w, r)
		if !ok {
			return
		}
		var req event.Request
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		name, studentID := a.actorInfo(r, identity)
		e, err := a.events.Update(r.Context(), id, req, name, studentID, clientIP(r))
		if err != nil {
			handleEventError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	case http.MethodDelete:
		identity, ok := requireAdmin(w, r)
		if !ok {
			return
		}
		name, studentID := a.actorInfo(r, identity)
		if err := a.events.Delete(r.Context(), id, name, studentID, clientIP(r)); err != nil {
			handleEventError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) actorInfo(r *http.Request, identity auth.Identity) (name, studentID string) {
	if m, err := a.members.Get(r.Context(), identity.Subject); err == nil {
		return m.Name, m.StudentID
	}
	return identity.Subject, ""
}

func handleEventError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, event.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
