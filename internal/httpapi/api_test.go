package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"devsign.org/internal/assembly"
	"devsign.org/internal/audit"
	"devsign.org/internal/auth"
	"devsign.org/internal/board"
	"devsign.org/internal/directory"
	"devsign.org/internal/engagement"
	"devsign.org/internal/event"
	"devsign.org/internal/filestore"
	"devsign.org/internal/member"
	"devsign.org/internal/notice"
	"devsign.org/internal/settings"
)

type stubDirectory struct{}

func (stubDirectory) Avatar(ctx context.Context, tag string) string { return directory.DefaultAvatarURL }
func (stubDirectory) CheckMember(ctx context.Context, tag string) (bool, error) {
	return true, nil
}
func (stubDirectory) SendCode(ctx context.Context, tag, code string) (directory.Profile, error) {
	return directory.Profile{Tag: tag, Name: "Stub", StudentID: "20210000"}, nil
}
func (stubDirectory) SyncAll(ctx context.Context) ([]directory.Profile, error) {
	return nil, nil
}

type testEnv struct {
	t       *testing.T
	baseURL string
	client  *http.Client
	tokens  *auth.Authority
	members *member.Service
	store   member.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewAuthority("test-secret")
	if err != nil {
		t.Fatalf("authority: %v", err)
	}
	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	store := member.NewMemStore()
	access := audit.NewMemAccessLog()
	ledger := engagement.NewInMemory()
	members := member.NewService(store, tokens, stubDirectory{}, access)
	boards := board.NewService(board.NewMemStore(), ledger, members, access)
	events := event.NewService(event.NewMemStore(), ledger, access)
	notices := notice.NewService(notice.NewMemStore(), ledger, access)
	assemblies := assembly.NewService(assembly.NewMemStore(), files, members, access)

	api := New(Deps{
		Tokens:     tokens,
		Members:    members,
		Boards:     boards,
		Events:     events,
		Notices:    notices,
		Assemblies: assemblies,
		Hero:       settings.NewContainer(settings.Hero{RecruitmentText: "join us"}),
		Access:     access,
		Version:    "test",
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{
		t:       t,
		baseURL: srv.URL,
		client:  srv.Client(),
		tokens:  tokens,
		members: members,
		store:   store,
	}
}

func (e *testEnv) addMember(loginID, role string, suspended bool) *member.Member {
	e.t.Helper()
	hash, err := auth.HashPassword("pw")
	if err != nil {
		e.t.Fatalf("hash: %v", err)
	}
	m := &member.Member{
		LoginID:      loginID,
		PasswordHash: hash,
		Name:         loginID,
		StudentID:    "20210001",
		Role:         role,
		Suspended:    suspended,
	}
	if err := e.store.Create(context.Background(), m); err != nil {
		e.t.Fatalf("create member: %v", err)
	}
	return m
}

func (e *testEnv) token(loginID, role string) string {
	e.t.Helper()
	token, _, err := e.tokens.Issue(loginID, role)
	if err != nil {
		e.t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.baseURL+path, payload)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestAnonymousRequestsPassThrough(t *testing.T) {
	env := newTestEnv(t)

	// No header, malformed header and a bogus token all degrade to an
	// anonymous request; public reads still work.
	for _, token := range []string{"", "garbage", "ey.fake.jwt"} {
		req, err := http.NewRequest(http.MethodGet, env.baseURL+"/api/posts", nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := env.client.Do(req)
		if err != nil {
			t.Fatalf("get posts: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("token %q: expected 200, got %d", token, resp.StatusCode)
		}
	}
}

func TestAnonymousWriteRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPost, "/api/posts", "", map[string]any{"title": "x", "content": "y"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous write, got %d", resp.StatusCode)
	}
}

func TestSuspendedAccountGetsForbiddenBody(t *testing.T) {
	env := newTestEnv(t)
	env.addMember("alice", auth.RoleUser, true)
	token := env.token("alice", auth.RoleUser)

	resp := env.do(http.MethodGet, "/api/posts", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for suspended account, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "suspended" {
		t.Fatalf("expected suspended status payload, got %+v", body)
	}
	if body["message"] == "" || body["message"] == nil {
		t.Fatalf("expected a message in the payload, got %+v", body)
	}
}

func TestStaleTokenForMissingAccountIsRejected(t *testing.T) {
	env := newTestEnv(t)
	// Valid token, but no account behind it: the gate fails closed.
	token := env.token("ghost", auth.RoleUser)

	resp := env.do(http.MethodGet, "/api/posts", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for missing account, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "suspended" {
		t.Fatalf("expected suspended status payload, got %+v", body)
	}
}

func TestSuspensionTakesEffectMidSession(t *testing.T) {
	env := newTestEnv(t)
	m := env.addMember("alice", auth.RoleUser, false)
	token := env.token("alice", auth.RoleUser)

	resp := env.do(http.MethodGet, "/api/posts", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 before suspension, got %d", resp.StatusCode)
	}

	if _, err := env.members.ToggleSuspension(context.Background(), m.ID, ""); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	// Same still-valid token, next request blocked.
	resp = env.do(http.MethodGet, "/api/posts", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 after suspension, got %d", resp.StatusCode)
	}
}

func TestStatusGateSkipsPublicPaths(t *testing.T) {
	env := newTestEnv(t)
	env.addMember("alice", auth.RoleUser, true)
	token := env.token("alice", auth.RoleUser)

	// Login stays reachable for a suspended account; the service layer
	// reports the suspension itself.
	resp := env.do(http.MethodPost, "/api/auth/login", token, map[string]any{
		"loginId":  "alice",
		"password": "pw",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 from login for suspended account, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "suspended" {
		t.Fatalf("expected suspended payload from login, got %+v", body)
	}

	resp = env.do(http.MethodGet, "/healthz", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz reachable, got %d", resp.StatusCode)
	}
}

func TestAdminGuard(t *testing.T) {
	env := newTestEnv(t)
	env.addMember("alice", auth.RoleUser, false)
	env.addMember("root", auth.RoleAdmin, false)

	resp := env.do(http.MethodGet, "/api/admin/members", env.token("alice", auth.RoleUser), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}

	resp = env.do(http.MethodGet, "/api/admin/members", env.token("root", auth.RoleAdmin), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.StatusCode)
	}

	resp = env.do(http.MethodGet, "/api/admin/members", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", resp.StatusCode)
	}
}

func TestHeroSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.addMember("root", auth.RoleAdmin, false)
	admin := env.token("root", auth.RoleAdmin)

	resp := env.do(http.MethodGet, "/api/settings/hero", "", nil)
	body := decodeBody(t, resp)
	if body["recruitmentText"] != "join us" {
		t.Fatalf("unexpected hero payload %+v", body)
	}

	resp = env.do(http.MethodPut, "/api/admin/settings/hero", admin, map[string]any{
		"recruitmentText": "applications open",
		"applyLink":       "https://example.com/apply",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on hero replace, got %d", resp.StatusCode)
	}

	resp = env.do(http.MethodGet, "/api/settings/hero", "", nil)
	body = decodeBody(t, resp)
	if body["recruitmentText"] != "applications open" {
		t.Fatalf("hero not replaced: %+v", body)
	}
}

func TestAdminRestoreKeepsCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.addMember("root", auth.RoleAdmin, false)
	admin := env.token("root", auth.RoleAdmin)

	hash, err := auth.HashPassword("old-pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	resp := env.do(http.MethodPost, "/api/admin/members-restore", admin, map[string]any{
		"loginId":      "alice",
		"passwordHash": hash,
		"name":         "Alice",
		"studentId":    "20210001",
		"role":         auth.RoleUser,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 from restore, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The restored account logs in with its original password.
	resp = env.do(http.MethodPost, "/api/auth/login", "", map[string]any{
		"loginId":  "alice",
		"password": "old-pw",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected restored account to log in, got %d", resp.StatusCode)
	}
}

func TestDownloadEscapeIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.addMember("alice", auth.RoleUser, false)
	token := env.token("alice", auth.RoleUser)

	for _, path := range []string{"../../etc/passwd", "/etc/passwd"} {
		resp := env.do(http.MethodGet, "/api/assembly/download?path="+url.QueryEscape(path), token, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("path %q: expected 403, got %d", path, resp.StatusCode)
		}
	}
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.addMember("alice", auth.RoleUser, false)
	token := env.token("alice", auth.RoleUser)

	resp := env.do(http.MethodPost, "/api/posts", token, map[string]any{
		"title":   "hello",
		"content": "first post",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decodeBody(t, resp)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("expected post id, got %+v", created)
	}

	resp = env.do(http.MethodGet, "/api/posts/"+id, token, nil)
	view := decodeBody(t, resp)
	if view["views"] != float64(1) {
		t.Fatalf("expected 1 view, got %+v", view["views"])
	}

	resp = env.do(http.MethodPost, "/api/posts/"+id+"/like", token, nil)
	view = decodeBody(t, resp)
	if view["likedByMe"] != true || view["likes"] != float64(1) {
		t.Fatalf("unexpected like state %+v", view)
	}

	resp = env.do(http.MethodDelete, "/api/posts/"+id, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = env.do(http.MethodGet, "/api/posts/"+id, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}
