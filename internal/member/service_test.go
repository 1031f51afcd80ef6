package member

import (
	"context"
	"errors"
	"testing"

	"devsign.org/internal/audit"
	"devsign.org/internal/auth"
	"devsign.org/internal/directory"
)

type fakeDirectory struct {
	profiles map[string]directory.Profile
	lastCode string
	down     bool
}

func (f *fakeDirectory) Avatar(ctx context.Context, tag string) string {
	if p, ok := f.profiles[tag]; ok && !f.down {
		return p.AvatarURL
	}
	return directory.DefaultAvatarURL
}

func (f *fakeDirectory) CheckMember(ctx context.Context, tag string) (bool, error) {
	if f.down {
		return false, directory.ErrUnavailable
	}
	_, ok := f.profiles[tag]
	return ok, nil
}

func (f *fakeDirectory) SendCode(ctx context.Context, tag, code string) (directory.Profile, error) {
	if f.down {
		return directory.Profile{}, directory.ErrUnavailable
	}
	p, ok := f.profiles[tag]
	if !ok {
		return directory.Profile{}, directory.ErrUnavailable
	}
	f.lastCode = code
	return p, nil
}

func (f *fakeDirectory) SyncAll(ctx context.Context) ([]directory.Profile, error) {
	if f.down {
		return nil, directory.ErrUnavailable
	}
	out := make([]directory.Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeDirectory) {
	t.Helper()
	tokens, err := auth.NewAuthority("test-secret")
	if err != nil {
		t.Fatalf("authority: %v", err)
	}
	dir := &fakeDirectory{profiles: map[string]directory.Profile{
		"alice#1": {Tag: "alice#1", Name: "Alice", StudentID: "20210001", Status: "ATTENDING", Role: auth.RoleUser, AvatarURL: "https://cdn.example/alice.png"},
	}}
	return NewService(NewMemStore(), tokens, dir, audit.NewMemAccessLog()), dir
}

func signupMember(t *testing.T, svc *Service, dir *fakeDirectory, tag, loginID, password string) *Member {
	t.Helper()
	if err := svc.SendCode(context.Background(), tag); err != nil {
		t.Fatalf("send code: %v", err)
	}
	m, err := svc.Signup(context.Background(), SignupRequest{
		AuthCode: dir.lastCode,
		Tag:      tag,
		LoginID:  loginID,
		Password: password,
		Dept:     "Design",
	}, "127.0.0.1")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return m
}

func TestSignupAndLoginFlow(t *testing.T) {
	svc, dir := newTestService(t)
	m := signupMember(t, svc, dir, "alice#1", "alice", "s3cret")

	if m.Name != "Alice" || m.StudentID != "20210001" {
		t.Fatalf("profile not captured from verification: %+v", m)
	}
	if m.PasswordHash == "s3cret" {
		t.Fatal("password stored in the clear")
	}

	res, err := svc.Login(context.Background(), "alice", "s3cret", "127.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected token on login")
	}
	if res.AvatarURL != "https://cdn.example/alice.png" {
		t.Fatalf("unexpected avatar %q", res.AvatarURL)
	}

	if _, err := svc.Login(context.Background(), "alice", "wrong", ""); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "s3cret", ""); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for unknown login, got %v", err)
	}
}

func TestSignupRejectsBadCode(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.SendCode(context.Background(), "alice#1"); err != nil {
		t.Fatalf("send code: %v", err)
	}
	_, err := svc.Signup(context.Background(), SignupRequest{
		AuthCode: "000000x",
		Tag:      "alice#1",
		LoginID:  "alice",
		Password: "pw",
	}, "")
	if !errors.Is(err, ErrBadCode) {
		t.Fatalf("expected ErrBadCode, got %v", err)
	}
}

func TestLoginRefusesSuspendedAccount(t *testing.T) {
	svc, dir := newTestService(t)
	m := signupMember(t, svc, dir, "alice#1", "alice", "pw")

	if _, err := svc.ToggleSuspension(context.Background(), m.ID, ""); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice", "pw", ""); !errors.Is(err, ErrSuspended) {
		t.Fatalf("expected ErrSuspended, got %v", err)
	}

	suspended, err := svc.Suspended(context.Background(), "alice")
	if err != nil {
		t.Fatalf("suspended: %v", err)
	}
	if !suspended {
		t.Fatal("expected suspended flag set")
	}

	// Unsuspend restores login.
	if _, err := svc.ToggleSuspension(context.Background(), m.ID, ""); err != nil {
		t.Fatalf("unsuspend: %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice", "pw", ""); err != nil {
		t.Fatalf("login after unsuspend: %v", err)
	}
}

func TestSuspendedPassesThroughNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Suspended(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfileChecksDirectoryTag(t *testing.T) {
	svc, dir := newTestService(t)
	signupMember(t, svc, dir, "alice#1", "alice", "pw")

	err := svc.UpdateProfile(context.Background(), "alice", "CS", "stranger#9")
	if !errors.Is(err, ErrTagUnknown) {
		t.Fatalf("expected ErrTagUnknown, got %v", err)
	}

	if err := svc.UpdateProfile(context.Background(), "alice", "CS", "alice#1"); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	m, err := svc.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Dept != "CS" {
		t.Fatalf("dept not updated: %q", m.Dept)
	}
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	svc, dir := newTestService(t)
	signupMember(t, svc, dir, "alice#1", "alice", "old")

	ctx := context.Background()
	if err := svc.ChangePassword(ctx, "alice", "bogus", "new"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, "alice", "old", "new"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "new", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAccountRecoveryFlow(t *testing.T) {
	svc, dir := newTestService(t)
	signupMember(t, svc, dir, "alice#1", "alice", "pw")
	ctx := context.Background()

	tag, err := svc.FindTagByInfo(ctx, "Alice", "20210001")
	if err != nil {
		t.Fatalf("find tag: %v", err)
	}
	if tag != "alice#1" {
		t.Fatalf("expected alice#1, got %q", tag)
	}

	if err := svc.SendCode(ctx, tag); err != nil {
		t.Fatalf("send code: %v", err)
	}
	loginID, err := svc.VerifyIdentity(ctx, "Alice", "20210001", dir.lastCode)
	if err != nil {
		t.Fatalf("verify identity: %v", err)
	}
	if loginID != "alice" {
		t.Fatalf("expected login alice, got %q", loginID)
	}

	if err := svc.ResetPassword(ctx, "Alice", "20210001", "fresh"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "fresh", ""); err != nil {
		t.Fatalf("login with reset password: %v", err)
	}
}

func TestCheckID(t *testing.T) {
	svc, dir := newTestService(t)
	if svc.CheckID(context.Background(), "alice") {
		t.Fatal("expected unknown login id")
	}
	signupMember(t, svc, dir, "alice#1", "alice", "pw")
	if !svc.CheckID(context.Background(), "alice") {
		t.Fatal("expected taken login id")
	}
}

func TestSyncDirectoryReportsFailure(t *testing.T) {
	svc, dir := newTestService(t)
	signupMember(t, svc, dir, "alice#1", "alice", "pw")

	dir.down = true
	report := svc.SyncDirectory(context.Background())
	if report.Status != "fail" {
		t.Fatalf("expected fail status when directory down, got %+v", report)
	}

	dir.down = false
	dir.profiles["alice#1"] = directory.Profile{
		Tag: "alice#1", Name: "Alice Kim", StudentID: "20210001",
		Status: "GRADUATED", Role: "USER", AvatarURL: "https://cdn.example/new.png",
	}
	report = svc.SyncDirectory(context.Background())
	if report.Status != "success" || report.Updated != 1 {
		t.Fatalf("expected 1 member synced, got %+v", report)
	}
	m, err := svc.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Name != "Alice Kim" || m.Status != "GRADUATED" {
		t.Fatalf("profile not refreshed: %+v", m)
	}
}

func TestDeleteAndRestore(t *testing.T) {
	svc, dir := newTestService(t)
	m := signupMember(t, svc, dir, "alice#1", "alice", "pw")
	ctx := context.Background()

	snapshot := *m
	if err := svc.Delete(ctx, m.ID, false, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	restored, err := svc.Restore(ctx, snapshot, "")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ID == m.ID {
		t.Fatal("expected a fresh id on restore")
	}
	if _, err := svc.Login(ctx, "alice", "pw", ""); err != nil {
		t.Fatalf("login after restore: %v", err)
	}
}
