package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"devsign.org/internal/assembly"
	"devsign.org/internal/audit"
	"devsign.org/internal/auth"
	"devsign.org/internal/board"
	"devsign.org/internal/event"
	"devsign.org/internal/member"
	"devsign.org/internal/notice"
	"devsign.org/internal/obs"
	"devsign.org/internal/settings"
)

// ReadyProbe checks readiness (for pg-backed deployments, a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	tokens     *auth.Authority
	members    *member.Service
	boards     *board.Service
	events     *event.Service
	notices    *notice.Service
	assemblies *assembly.Service
	hero       *settings.Container
	access     audit.AccessLog
	readyProbe ReadyProbe
	version    string
}

// Deps bundles the services the API dispatches to.
type Deps struct {
	Tokens     *auth.Authority
	Members    *member.Service
	Boards     *board.Service
	Events     *event.Service
	Notices    *notice.Service
	Assemblies *assembly.Service
	Hero       *settings.Container
	Access     audit.AccessLog
	Ready      ReadyProbe
	Version    string
}

func New(d Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		tokens:     d.Tokens,
		members:    d.Members,
		boards:     d.Boards,
		events:     d.Events,
		notices:    d.Notices,
		assemblies: d.Assemblies,
		hero:       d.Hero,
		access:     d.Access,
		readyProbe: d.Ready,
		version:    d.Version,
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// auth and account flows
	a.mux.HandleFunc("/api/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/check-id", a.handleCheckID)
	a.mux.HandleFunc("/api/auth/send-code", a.handleSendCode)
	a.mux.HandleFunc("/api/auth/verify-code", a.handleVerifyCode)
	a.mux.HandleFunc("/api/auth/find-id", a.handleFindID)
	a.mux.HandleFunc("/api/auth/verify-identity", a.handleVerifyIdentity)
	a.mux.HandleFunc("/api/auth/reset-password", a.handleResetPassword)
	a.mux.HandleFunc("/api/members/me", a.handleMe)
	a.mux.HandleFunc("/api/members/me/password", a.handleChangePassword)

	// community board
	a.mux.HandleFunc("/api/posts", a.handlePostsCollection)
	a.mux.HandleFunc("/api/posts/", a.handlePostResource)

	// events and notices
	a.mux.HandleFunc("/api/events", a.handleEventsCollection)
	a.mux.HandleFunc("/api/events/", a.handleEventResource)
	a.mux.HandleFunc("/api/notices", a.handleNoticesCollection)
	a.mux.HandleFunc("/api/notices/", a.handleNoticeResource)

	// assembly submissions
	a.mux.HandleFunc("/api/assembly/periods", a.handleAssemblyPeriods)
	a.mux.HandleFunc("/api/assembly/reports", a.handleAssemblyReports)
	a.mux.HandleFunc("/api/assembly/project", a.handleAssemblyProject)
	a.mux.HandleFunc("/api/assembly/download", a.handleAssemblyDownload)

	// landing page settings
	a.mux.HandleFunc("/api/settings/hero", a.handleHero)

	// admin surface
	a.mux.HandleFunc("/api/admin/members", a.handleAdminMembers)
	a.mux.HandleFunc("/api/admin/members/", a.handleAdminMemberResource)
	a.mux.HandleFunc("/api/admin/members-restore", a.handleAdminRestore)
	a.mux.HandleFunc("/api/admin/logs", a.handleAdminLogs)
	a.mux.HandleFunc("/api/admin/settings/hero", a.handleAdminHero)
	a.mux.HandleFunc("/api/admin/assembly/periods", a.handleAdminAssemblyPeriods)
	a.mux.HandleFunc("/api/admin/assembly/submissions", a.handleAdminSubmissions)
	a.mux.HandleFunc("/api/admin/assembly/zip", a.handleAdminZip)
	a.mux.HandleFunc("/api/admin/sync-discord", a.handleAdminSync)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux. Identity
// resolution runs before the status gate so the gate sees who is asking.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.statusGate(h)
	h = a.withIdentity(h)
	h = MaxBodyBytes(h, 32<<20)
	h = RateLimit(h, 40, 20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "devsign-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleHero(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, a.hero.Get())
}
