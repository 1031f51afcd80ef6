package httpapi

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"devsign.org/internal/assembly"
	"devsign.org/internal/filestore"
)

func (a *API) handleAssemblyPeriods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	year, err := queryInt(r, "year", time.Now().Year())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	periods, err := a.assemblies.SubmissionPeriods(r.Context(), year)
	if err != nil {
		handleAssemblyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

func (a *API) handleAssemblyReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.mySubmissions(w, r)
	case http.MethodPost:
		a.submitReport(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) mySubmissions(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	now := time.Now()
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defSemester := 1
	if now.Month() >= 7 {
		defSemester = 2
	}
	semester, err := queryInt(r, "semester", defSemester)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	reports, title, err := a.assemblies.MySubmissions(r.Context(), identity.Subject, year, semester)
	if err != nil {
		handleAssemblyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projectTitle": title,
		"reports":      reports,
	})
}

// submitReport accepts a multipart form with fields year, month, title,
// memo and optional file parts named presentation, pdf and other.
func (a *API) submitReport(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form expected")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := assembly.SubmitRequest{
		Title: r.FormValue("title"),
		Memo:  r.FormValue("memo"),
	}
	if _, err := fmt.Sscanf(r.FormValue("year"), "%d", &req.Year); err != nil {
		writeError(w, r, http.StatusBadRequest, "year is required")
		return
	}
	if _, err := fmt.Sscanf(r.FormValue("month"), "%d", &req.Month); err != nil {
		writeError(w, r, http.StatusBadRequest, "month is required")
		return
	}

	var closers []multipart.File
	defer func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}()
	for field, kind := range map[string]filestore.Kind{
		"presentation": filestore.KindPresentation,
		"pdf":          filestore.KindDocument,
		"other":        filestore.KindOther,
	} {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "malformed file part "+field)
			return
		}
		closers = append(closers, file)
		req.Uploads = append(req.Uploads, assembly.Upload{
			Kind:     kind,
			Filename: header.Filename,
			Content:  file,
		})
	}

	report, err := a.assemblies.SubmitFiles(r.Context(), identity.Subject, req, clientIP(r))
	if err != nil {
		handleAssemblyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type projectTitleRequest struct {
	Year     int    `json:"year"`
	Semester int    `json:"semester"`
	Title    string `json:"title"`
}

func (a *API) handleAssemblyProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req projectTitleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.assemblies.SaveProjectTitle(r.Context(), identity.Subject, req.Year, req.Semester, req.Title); err != nil {
		handleAssemblyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleAssemblyDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("path"))
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "path is required")
		return
	}
	resolved, err := a.assemblies.ResolveDownload(raw)
	if err != nil {
		handleAssemblyError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(resolved)))
	http.ServeFile(w, r, resolved)
}

func handleAssemblyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assembly.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, assembly.ErrIncompleteSubmission),
		errors.Is(err, assembly.ErrInvalidPeriod),
		errors.Is(err, filestore.ErrUnsupportedType):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, filestore.ErrPathTraversal):
		// A path that escapes the sandbox is refused, not reported as a
		// malformed request.
		writeError(w, r, http.StatusForbidden, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
