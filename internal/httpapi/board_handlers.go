package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"devsign.org/internal/auth"
	"devsign.org/internal/board"
)

func (a *API) handlePostsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		identity, _ := auth.IdentityFromContext(r.Context())
		posts, err := a.boards.ListPosts(r.Context(), identity.Subject)
		if err != nil {
			handleBoardError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)
	case http.MethodPost:
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		var req board.CreatePostRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, r, http.StatusBadRequest, "title is required")
			return
		}
		p, err := a.boards.CreatePost(r.Context(), req, identity.Subject, clientIP(r))
		if err != nil {
			handleBoardError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handlePostResource dispatches /api/posts/{id} and its sub-resources:
// {id}/like, {id}/comments, {id}/comments/{cid}, {id}/comments/{cid}/like.
func (a *API) handlePostResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/posts/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	id := parts[0]

	switch {
	case len(parts) == 1:
		a.postByID(w, r, id)
	case len(parts) == 2 && parts[1] == "like":
		a.togglePostLike(w, r, id)
	case len(parts) == 2 && parts[1] == "comments":
		a.addComment(w, r, id)
	case len(parts) == 3 && parts[1] == "comments":
		a.deleteComment(w, r, id, parts[2])
	case len(parts) == 4 && parts[1] == "comments" && parts[3] == "like":
		a.toggleCommentLike(w, r, id, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) postByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		identity, _ := auth.IdentityFromContext(r.Context())
		view, err := a.boards.GetPost(r.Context(), id, identity.Subject)
		if err != nil {
			handleBoardError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		var req board.CreatePostRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p, err := a.boards.UpdatePost(r.Context(), id, req, identity.Subject, clientIP(r))
		if err != nil {
			handleBoardError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		if err := a.boards.DeletePost(r.Context(), id, identity.Subject, clientIP(r)); err != nil {
			handleBoardError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) togglePostLike(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	view, err := a.boards.ToggleLike(r.Context(), id, identity.Subject, clientIP(r))
	if err != nil {
		handleBoardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) addComment(w http.ResponseWriter, r *http.Request, postID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req board.AddCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, r, http.StatusBadRequest, "content is required")
		return
	}
	view, err := a.boards.AddComment(r.Context(), postID, req, identity.Subject, clientIP(r))
	if err != nil {
		handleBoardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) deleteComment(w http.ResponseWriter, r *http.Request, postID, commentID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	view, err := a.boards.DeleteComment(r.Context(), postID, commentID, identity.Subject, clientIP(r))
	if err != nil {
		handleBoardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) toggleCommentLike(w http.ResponseWriter, r *http.Request, postID, commentID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	view, err := a.boards.ToggleCommentLike(r.Context(), postID, commentID, identity.Subject)
	if err != nil {
		handleBoardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func handleBoardError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, board.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, board.ErrInvalidParent):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
