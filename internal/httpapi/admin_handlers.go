package httpapi

import (
	"net/http"
	"strings"
	"time"

	"devsign.org/internal/assembly"
	"devsign.org/internal/filestore"
	"devsign.org/internal/member"
	"devsign.org/internal/settings"
)

func (a *API) handleAdminMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	members, err := a.members.List(r.Context())
	if err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// handleAdminMemberResource dispatches /api/admin/members/{id} and
// /api/admin/members/{id}/suspend.
func (a *API) handleAdminMemberResource(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/members/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]

	if len(parts) == 2 && parts[1] == "suspend" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		suspended, err := a.members.ToggleSuspension(r.Context(), id, clientIP(r))
		if err != nil {
			handleMemberError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suspended": suspended})
		return
	}
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	hard := r.URL.Query().Get("hard") == "true"
	if err := a.members.Delete(r.Context(), id, hard, clientIP(r)); err != nil {
		handleMemberError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// restoreMemberRequest carries a previously exported account back in,
// including the password hash that Member never serializes.
type restoreMemberRequest struct {
	LoginID      string `json:"loginId"`
	PasswordHash string `json:"passwordHash"`
	Name         string `json:"name"`
	StudentID    string `json:"studentId"`
	Dept         string `json:"dept"`
	Interests    string `json:"interests"`
	Tag          string `json:"discordTag"`
	Status       string `json:"userStatus"`
	Role         string `json:"role"`
	Suspended    bool   `json:"suspended"`
	AvatarURL    string `json:"profileImage"`
}

func (req restoreMemberRequest) member() member.Member {
	return member.Member{
		LoginID:      req.LoginID,
		PasswordHash: req.PasswordHash,
		Name:         req.Name,
		StudentID:    req.StudentID,
		Dept:         req.Dept,
		Interests:    req.Interests,
		Tag:          req.Tag,
		Status:       req.Status,
		Role:         req.Role,
		Suspended:    req.Suspended,
		AvatarURL:    req.AvatarURL,
	}
}

func (a *API) handleAdminRestore(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req restoreMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	restored, err := a.members.Restore(r.Context(), req.member(), clientIP(r))
	if err != nil {
		handleMemberError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, restored)
}

func (a *API) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	entries, err := a.access.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleAdminHero(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.hero.Get())
	case http.MethodPut:
		var next settings.Hero
		if err := decodeJSON(w, r, &next); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		a.hero.Replace(next)
		writeJSON(w, http.StatusOK, a.hero.Get())
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleAdminAssemblyPeriods(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		year, err := queryInt(r, "year", time.Now().Year())
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		periods, err := a.assemblies.AdminPeriods(r.Context(), year)
		if err != nil {
			handleAssemblyError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, periods)
	case http.MethodPut:
		var req struct {
			Year    int                `json:"year"`
			Periods []*assembly.Period `json:"periods"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.assemblies.SavePeriods(r.Context(), req.Year, req.Periods, clientIP(r)); err != nil {
			handleAssemblyError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleAdminSubmissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	year, err := queryInt(r, "year", time.Now().Year())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	submissions, err := a.assemblies.SubmittedMembers(r.Context(), year, month)
	if err != nil {
		handleAssemblyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submissions)
}

func (a *API) handleAdminZip(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	year, err := queryInt(r, "year", time.Now().Year())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter := filestore.NormalizeFilter(r.URL.Query().Get("filter"))

	// Validate before writing zip bytes so errors still get a JSON body.
	if _, err := a.assemblies.SubmittedMembers(r.Context(), year, month); err != nil {
		handleAssemblyError(w, r, err)
		return
	}
	name := assembly.ArchiveName(year, month, filter)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	_ = a.assemblies.BundleZip(r.Context(), w, year, month, filter)
}

func (a *API) handleAdminSync(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	writeJSON(w, http.StatusOK, a.members.SyncDirectory(r.Context()))
}
