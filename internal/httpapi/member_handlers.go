package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"devsign.org/internal/member"
)

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req member.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.LoginID) == "" || strings.TrimSpace(req.Password) == "" {
		writeError(w, r, http.StatusBadRequest, "loginId and password are required")
		return
	}
	m, err := a.members.Signup(r.Context(), req, clientIP(r))
	if err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type loginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.members.Login(r.Context(), req.LoginID, req.Password, clientIP(r))
	if err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	name, studentID := "", ""
	if m, err := a.members.Get(r.Context(), identity.Subject); err == nil {
		name, studentID = m.Name, m.StudentID
	}
	a.members.LogLogout(r.Context(), name, studentID, clientIP(r))
	// Tokens are stateless; logout is recorded, the token simply ages out.
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleCheckID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	loginID := strings.TrimSpace(r.URL.Query().Get("loginId"))
	if loginID == "" {
		writeError(w, r, http.StatusBadRequest, "loginId is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": a.members.CheckID(r.Context(), loginID)})
}

type tagRequest struct {
	Tag string `json:"discordTag"`
}

func (a *API) handleSendCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.members.SendCode(r.Context(), req.Tag); err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "sent"})
}

type verifyCodeRequest struct {
	Tag  string `json:"discordTag"`
	Code string `json:"authCode"`
}

func (a *API) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	v, err := a.members.VerifyCode(r.Context(), req.Tag, req.Code)
	if err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      v.Name,
		"studentId": v.StudentID,
	})
}

type findIDRequest struct {
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
}

func (a *API) handleFindID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req findIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tag, err := a.members.FindTagByInfo(r.Context(), req.Name, req.StudentID)
	if err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discordTag": tag})
}

type verifyIdentityRequest struct {
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Code      string `json:"authCode"`
}

func (a *API) handleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyIdentityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	loginID, err := a.members.VerifyIdentity(r.Context(), req.Name, req.StudentID, req.Code)
	if err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loginId": loginID})
}

type resetPasswordRequest struct {
	Name        string `json:"name"`
	StudentID   string `json:"studentId"`
	NewPassword string `json:"newPassword"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.members.ResetPassword(r.Context(), req.Name, req.StudentID, req.NewPassword); err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type updateProfileRequest struct {
	Dept string `json:"dept"`
	Tag  string `json:"discordTag"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		m, err := a.members.Get(r.Context(), identity.Subject)
		if err != nil {
			handleMemberError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	case http.MethodPut:
		var req updateProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.members.UpdateProfile(r.Context(), identity.Subject, req.Dept, req.Tag); err != nil {
			handleMemberError(w, r, err)
			return
		}
		m, err := a.members.Get(r.Context(), identity.Subject)
		if err != nil {
			handleMemberError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.members.ChangePassword(r.Context(), identity.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func handleMemberError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, member.ErrBadCredentials):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, member.ErrSuspended):
		writeSuspended(w)
	case errors.Is(err, member.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, member.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, member.ErrBadCode), errors.Is(err, member.ErrTagUnknown):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
