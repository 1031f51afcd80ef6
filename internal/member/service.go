package member

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"devsign.org/internal/audit"
	"devsign.org/internal/auth"
	"devsign.org/internal/directory"
)

const verificationTTL = 5 * time.Minute

// Directory is the slice of the directory bot the member subsystem
// consumes.
type Directory interface {
	Avatar(ctx context.Context, tag string) string
	CheckMember(ctx context.Context, tag string) (bool, error)
	SendCode(ctx context.Context, tag, code string) (directory.Profile, error)
	SyncAll(ctx context.Context) ([]directory.Profile, error)
}

// Service implements member account operations: signup, login, profile
// and credential management, and the admin-side account controls.
type Service struct {
	store     Store
	tokens    *auth.Authority
	directory Directory
	access    audit.AccessLog
	now       func() time.Time
}

// NewService wires a member Service.
func NewService(store Store, tokens *auth.Authority, dir Directory, access audit.AccessLog) *Service {
	return &Service{
		store:     store,
		tokens:    tokens,
		directory: dir,
		access:    access,
		now:       time.Now,
	}
}

// SignupRequest carries the explicit fields accepted at signup.
type SignupRequest struct {
	AuthCode  string `json:"authCode"`
	Tag       string `json:"discordTag"`
	LoginID   string `json:"loginId"`
	Password  string `json:"password"`
	Dept      string `json:"dept"`
	Interests string `json:"interests"`
}

// Signup creates an account from a previously verified directory code.
func (s *Service) Signup(ctx context.Context, req SignupRequest, ip string) (*Member, error) {
	v, err := s.store.LatestVerification(ctx, strings.TrimSpace(req.Tag))
	if err != nil {
		return nil, ErrBadCode
	}
	if v.Code != strings.TrimSpace(req.AuthCode) || v.Expired(s.now()) {
		return nil, ErrBadCode
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	role := v.Role
	if role == "" {
		role = auth.RoleUser
	}
	status := v.Status
	if status == "" {
		status = "ATTENDING"
	}
	m := &Member{
		LoginID:      strings.TrimSpace(req.LoginID),
		PasswordHash: hash,
		Name:         v.Name,
		StudentID:    v.StudentID,
		Dept:         req.Dept,
		Interests:    req.Interests,
		Tag:          v.Tag,
		Status:       status,
		Role:         role,
		AvatarURL:    v.AvatarURL,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	_ = s.store.DeleteVerification(ctx, v.Tag)
	s.logAccess(ctx, m, "SIGNUP", ip)
	return m, nil
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Member    *Member   `json:"member"`
	AvatarURL string    `json:"avatarUrl"`
}

// Login verifies credentials and issues a token. Suspended accounts are
// refused before a token is issued. The avatar lookup degrades to a
// default when the directory is unreachable.
func (s *Service) Login(ctx context.Context, loginID, password, ip string) (*LoginResult, error) {
	m, err := s.store.FindByLogin(ctx, strings.TrimSpace(loginID))
	if err != nil {
		return nil, ErrBadCredentials
	}
	if err := auth.VerifyPassword(m.PasswordHash, password); err != nil {
		return nil, ErrBadCredentials
	}
	if m.Suspended {
		return nil, ErrSuspended
	}

	token, expiresAt, err := s.tokens.Issue(m.LoginID, m.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logAccess(ctx, m, "LOGIN", ip)

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Member:    m,
		AvatarURL: s.directory.Avatar(ctx, m.Tag),
	}, nil
}

// LogLogout appends a logout entry for the given display identity.
func (s *Service) LogLogout(ctx context.Context, name, studentID, ip string) {
	_ = s.access.Append(ctx, audit.AccessEntry{
		Name:      name,
		StudentID: studentID,
		Action:    "LOGOUT",
		IP:        ip,
	})
}

// Suspended reports the suspension flag for the subject. ErrNotFound
// passes through so the caller can decide the missing-account policy.
func (s *Service) Suspended(ctx context.Context, loginID string) (bool, error) {
	m, err := s.store.FindByLogin(ctx, loginID)
	if err != nil {
		return false, err
	}
	return m.Suspended, nil
}

// Get returns the member for a login id.
func (s *Service) Get(ctx context.Context, loginID string) (*Member, error) {
	return s.store.FindByLogin(ctx, loginID)
}

// CheckID reports whether a login id is already taken.
func (s *Service) CheckID(ctx context.Context, loginID string) bool {
	_, err := s.store.FindByLogin(ctx, loginID)
	return err == nil
}

// UpdateProfile changes the member's department and directory tag after
// confirming the tag exists on the club server.
func (s *Service) UpdateProfile(ctx context.Context, loginID, dept, tag string) error {
	m, err := s.store.FindByLogin(ctx, loginID)
	if err != nil {
		return err
	}
	exists, err := s.directory.CheckMember(ctx, tag)
	if err != nil {
		return err
	}
	if !exists {
		return ErrTagUnknown
	}
	m.Dept = dept
	m.Tag = tag
	return s.store.Update(ctx, m)
}

// ChangePassword rotates the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, loginID, current, next string) error {
	m, err := s.store.FindByLogin(ctx, loginID)
	if err != nil {
		return err
	}
	if err := auth.VerifyPassword(m.PasswordHash, current); err != nil {
		return ErrBadCredentials
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	return s.store.Update(ctx, m)
}

// SendCode asks the directory to deliver a verification code and stores
// the pending verification with the profile the bot returned.
func (s *Service) SendCode(ctx context.Context, tag string) error {
	code, err := randomCode()
	if err != nil {
		return err
	}
	profile, err := s.directory.SendCode(ctx, strings.TrimSpace(tag), code)
	if err != nil {
		return err
	}
	return s.store.PutVerification(ctx, Verification{
		Tag:       profile.Tag,
		Code:      code,
		ExpiresAt: s.now().Add(verificationTTL),
		Name:      profile.Name,
		StudentID: profile.StudentID,
		Status:    profile.Status,
		Role:      profile.Role,
		AvatarURL: profile.AvatarURL,
	})
}

// VerifyCode checks a pending code and returns the captured profile.
func (s *Service) VerifyCode(ctx context.Context, tag, code string) (*Verification, error) {
	v, err := s.store.LatestVerification(ctx, strings.TrimSpace(tag))
	if err != nil {
		return nil, ErrBadCode
	}
	if v.Code != strings.TrimSpace(code) || v.Expired(s.now()) {
		return nil, ErrBadCode
	}
	return v, nil
}

// FindTagByInfo recovers the directory tag for a name and student id.
func (s *Service) FindTagByInfo(ctx context.Context, name, studentID string) (string, error) {
	m, err := s.store.FindByNameAndStudentID(ctx, name, studentID)
	if err != nil {
		return "", err
	}
	return m.Tag, nil
}

// VerifyIdentity checks a verification code against the member found by
// name and student id and returns the login id for account recovery.
func (s *Service) VerifyIdentity(ctx context.Context, name, studentID, code string) (string, error) {
	m, err := s.store.FindByNameAndStudentID(ctx, name, studentID)
	if err != nil {
		return "", err
	}
	if _, err := s.VerifyCode(ctx, m.Tag, code); err != nil {
		return "", err
	}
	return m.LoginID, nil
}

// ResetPassword sets a new password for the member found by name and
// student id. Callers are expected to have run VerifyIdentity first.
func (s *Service) ResetPassword(ctx context.Context, name, studentID, newPassword string) error {
	m, err := s.store.FindByNameAndStudentID(ctx, name, studentID)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	return s.store.Update(ctx, m)
}

// List returns all members for the admin console.
func (s *Service) List(ctx context.Context) ([]*Member, error) {
	return s.store.List(ctx)
}

// ToggleSuspension flips the suspended flag. The next request the member
// makes is blocked by the status gate; no token is revoked.
func (s *Service) ToggleSuspension(ctx context.Context, id, ip string) (bool, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	m.Suspended = !m.Suspended
	if err := s.store.Update(ctx, m); err != nil {
		return false, err
	}
	action := "ACCOUNT_UNSUSPEND"
	if m.Suspended {
		action = "ACCOUNT_SUSPEND"
	}
	s.logAccess(ctx, m, action, ip)
	return m.Suspended, nil
}

// Restore recreates a previously exported member record under a fresh id.
func (s *Service) Restore(ctx context.Context, m Member, ip string) (*Member, error) {
	m.ID = ""
	if err := s.store.Create(ctx, &m); err != nil {
		return nil, err
	}
	s.logAccess(ctx, &m, "ACCOUNT_RESTORE", ip)
	return &m, nil
}

// Delete removes a member record. Hard deletion is distinguished only in
// the access log; both remove the row.
func (s *Service) Delete(ctx context.Context, id string, hard bool, ip string) error {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	action := "ACCOUNT_DELETE"
	if hard {
		action = "ACCOUNT_PERMANENT_DELETE"
	}
	s.logAccess(ctx, m, action, ip)
	return s.store.Delete(ctx, id)
}

// SyncReport summarizes a directory bulk sync.
type SyncReport struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Updated int    `json:"updated"`
}

// SyncDirectory pulls every profile from the directory and refreshes the
// matching members. Directory failures are reported in the result, not
// returned as an error.
func (s *Service) SyncDirectory(ctx context.Context) SyncReport {
	profiles, err := s.directory.SyncAll(ctx)
	if err != nil {
		if errors.Is(err, directory.ErrUnavailable) {
			return SyncReport{Status: "fail", Message: "no data received from the directory bot"}
		}
		return SyncReport{Status: "error", Message: "sync failed: " + err.Error()}
	}

	updated := 0
	for _, p := range profiles {
		m, err := s.store.FindByTag(ctx, p.Tag)
		if err != nil {
			continue
		}
		m.Name = p.Name
		m.StudentID = p.StudentID
		m.Status = p.Status
		m.Role = p.Role
		m.AvatarURL = p.AvatarURL
		if err := s.store.Update(ctx, m); err != nil {
			continue
		}
		updated++
	}
	return SyncReport{
		Status:  "success",
		Message: fmt.Sprintf("%d members synchronized", updated),
		Updated: updated,
	}
}

func (s *Service) logAccess(ctx context.Context, m *Member, action, ip string) {
	if m == nil {
		return
	}
	_ = s.access.Append(ctx, audit.AccessEntry{
		Name:      m.Name,
		StudentID: m.StudentID,
		Action:    action,
		IP:        ip,
	})
	_ = audit.LogEvent(ctx, "member."+strings.ToLower(action), map[string]any{
		"login_id": m.LoginID,
	})
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
