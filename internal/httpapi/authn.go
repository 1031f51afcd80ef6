package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"devsign.org/internal/auth"
	"devsign.org/internal/member"
	"devsign.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Paths reachable without an account: the auth flows themselves plus
// operational probes. The status gate skips these too.
var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/auth/signup",
	"/api/auth/login",
	"/api/auth/check-id",
	"/api/auth/send-code",
	"/api/auth/verify-code",
	"/api/auth/find-id",
	"/api/auth/verify-identity",
	"/api/auth/reset-password",
	"/api/settings/hero",
}

// withIdentity resolves the bearer token into a request identity.
// Resolution is best effort: a missing header, a malformed header or an
// invalid token all leave the request anonymous rather than failing it.
// Handlers that need an identity enforce that themselves.
func (a *API) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r.Header.Get(authHeader))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := a.tokens.Verify(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

// statusGate rejects authenticated requests from suspended accounts.
// An identity whose account no longer exists is treated as suspended;
// the gate fails closed rather than letting a stale token through.
func (a *API) statusGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		suspended, err := a.members.Suspended(r.Context(), identity.Subject)
		switch {
		case errors.Is(err, member.ErrNotFound):
			obs.CountSuspendedRejection()
			writeSuspended(w)
			return
		case err != nil:
			writeError(w, r, http.StatusInternalServerError, "account status unavailable")
			return
		case suspended:
			obs.CountSuspendedRejection()
			writeSuspended(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeSuspended(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]any{
		"status":  "suspended",
		"message": "account is suspended, contact an administrator",
	})
}

// requireIdentity is used by handlers that need a signed-in caller.
func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, false
	}
	return identity, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return auth.Identity{}, false
	}
	if !identity.IsAdmin() {
		writeError(w, r, http.StatusForbidden, "admin role required")
		return auth.Identity{}, false
	}
	return identity, true
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
