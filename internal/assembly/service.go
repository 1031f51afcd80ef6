package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"devsign.org/internal/audit"
	"devsign.org/internal/filestore"
	"devsign.org/internal/member"
)

// Members is the slice of the member service the assembly module needs.
type Members interface {
	List(ctx context.Context) ([]*member.Member, error)
	Get(ctx context.Context, loginID string) (*member.Member, error)
}

// Service coordinates submission periods, monthly reports and file storage.
type Service struct {
	store   Store
	files   *filestore.Store
	members Members
	access  audit.AccessLog
	now     func() time.Time
}

func NewService(store Store, files *filestore.Store, members Members, access audit.AccessLog) *Service {
	return &Service{store: store, files: files, members: members, access: access, now: time.Now}
}

// SubmissionPeriods returns one period per active month of the year.
// Months without a configured row fall back to a default window spanning
// the 1st through the 28th.
func (s *Service) SubmissionPeriods(ctx context.Context, year int) ([]*Period, error) {
	configured, err := s.store.PeriodsByYear(ctx, year)
	if err != nil {
		return nil, err
	}
	byMonth := make(map[int]*Period, len(configured))
	for _, p := range configured {
		byMonth[p.Month] = p
	}
	out := make([]*Period, 0, len(activeMonths))
	for _, month := range activeMonths {
		if p, ok := byMonth[month]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, defaultPeriod(year, month))
	}
	return out, nil
}

func defaultPeriod(year, month int) *Period {
	return &Period{
		Year:      year,
		Semester:  semesterOf(month),
		Month:     month,
		Type:      resolveType(month),
		StartDate: fmt.Sprintf("%d-%02d-01", year, month),
		EndDate:   fmt.Sprintf("%d-%02d-28", year, month),
	}
}

// MySubmissions returns the caller's report row for every active month of
// the semester, creating NOT_SUBMITTED placeholders for months that have
// none yet. The semester project title rides along.
func (s *Service) MySubmissions(ctx context.Context, loginID string, year, semester int) ([]*Report, string, error) {
	existing, err := s.store.ReportsByOwner(ctx, loginID, year, semester)
	if err != nil {
		return nil, "", err
	}
	byMonth := make(map[int]*Report, len(existing))
	for _, r := range existing {
		byMonth[r.Month] = r
	}
	var out []*Report
	for _, month := range activeMonths {
		if semesterOf(month) != semester {
			continue
		}
		if r, ok := byMonth[month]; ok {
			out = append(out, r)
			continue
		}
		r := &Report{
			LoginID:  loginID,
			Year:     year,
			Semester: semester,
			Month:    month,
			Type:     resolveType(month),
			Status:   StatusNotSubmitted,
		}
		if err := s.store.SaveReport(ctx, r); err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}

	title := ""
	if p, err := s.store.FindProject(ctx, loginID, year, semester); err == nil {
		title = p.Title
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}
	return out, title, nil
}

// SaveProjectTitle upserts the caller's semester project title.
func (s *Service) SaveProjectTitle(ctx context.Context, loginID string, year, semester int, title string) error {
	return s.store.SaveProject(ctx, &Project{LoginID: loginID, Year: year, Semester: semester, Title: title})
}

// Upload is one incoming file slot of a submission.
type Upload struct {
	Kind     filestore.Kind
	Filename string
	Content  io.Reader
}

// SubmitRequest carries one monthly submission. Any subset of the three
// file slots may be present; completeness is judged cumulatively against
// files kept from earlier submissions.
type SubmitRequest struct {
	Year    int
	Month   int
	Title   string
	Memo    string
	Uploads []Upload
}

// SubmitFiles stores the uploaded files and marks the month's report
// SUBMITTED. Extensions are validated before anything is written, so a
// bad file rejects the whole request. A submission with no new file and
// no previously stored file fails with ErrIncompleteSubmission.
func (s *Service) SubmitFiles(ctx context.Context, loginID string, req SubmitRequest, ip string) (*Report, error) {
	if !validMonth(req.Month) {
		return nil, ErrInvalidPeriod
	}
	for _, up := range req.Uploads {
		if err := filestore.ValidateExtension(up.Kind, up.Filename); err != nil {
			return nil, err
		}
	}

	semester := semesterOf(req.Month)
	report := s.findOrInitReport(ctx, loginID, req.Year, semester, req.Month)
	if len(req.Uploads) == 0 && !report.HasAnyFile() {
		return nil, ErrIncompleteSubmission
	}

	for _, up := range req.Uploads {
		path, err := s.files.Save(loginID, req.Month, up.Kind, up.Filename, up.Content)
		if err != nil {
			return nil, err
		}
		switch up.Kind {
		case filestore.KindPresentation:
			report.PresentationPath = path
		case filestore.KindDocument:
			report.PDFPath = path
		default:
			report.OtherPath = path
		}
	}

	report.Title = req.Title
	report.Memo = req.Memo
	report.Status = StatusSubmitted
	report.Date = s.now().Format("2006.01.02")
	if err := s.store.SaveReport(ctx, report); err != nil {
		return nil, err
	}
	s.logAccess(ctx, loginID, "ASSEMBLY_SUBMIT", ip)
	return report, nil
}

func (s *Service) findOrInitReport(ctx context.Context, loginID string, year, semester, month int) *Report {
	existing, err := s.store.ReportsByOwner(ctx, loginID, year, semester)
	if err == nil {
		for _, r := range existing {
			if r.Month == month {
				return r
			}
		}
	}
	return &Report{
		LoginID:  loginID,
		Year:     year,
		Semester: semester,
		Month:    month,
		Type:     resolveType(month),
		Status:   StatusNotSubmitted,
	}
}

// PeriodSummary is a period enriched with submission progress.
type PeriodSummary struct {
	Period
	Submitted int `json:"submittedCount"`
	Total     int `json:"totalCount"`
}

// AdminPeriods lists each active month of the year with its configured or
// default window plus how many of the club's members have submitted.
func (s *Service) AdminPeriods(ctx context.Context, year int) ([]*PeriodSummary, error) {
	periods, err := s.SubmissionPeriods(ctx, year)
	if err != nil {
		return nil, err
	}
	total := 0
	if members, err := s.members.List(ctx); err == nil {
		total = len(members)
	}
	out := make([]*PeriodSummary, 0, len(periods))
	for _, p := range periods {
		count, err := s.store.CountSubmitted(ctx, p.Year, p.Semester, p.Month)
		if err != nil {
			return nil, err
		}
		out = append(out, &PeriodSummary{Period: *p, Submitted: count, Total: total})
	}
	return out, nil
}

// SavePeriods replaces the configured windows for the given year. Every
// entry must name an active month and carry both dates.
func (s *Service) SavePeriods(ctx context.Context, year int, periods []*Period, ip string) error {
	for _, p := range periods {
		if !validMonth(p.Month) || p.StartDate == "" || p.EndDate == "" {
			return ErrInvalidPeriod
		}
	}
	existing, err := s.store.PeriodsByYear(ctx, year)
	if err != nil {
		return err
	}
	byMonth := make(map[int]*Period, len(existing))
	for _, p := range existing {
		byMonth[p.Month] = p
	}
	for _, p := range periods {
		next := &Period{
			Year:      year,
			Semester:  semesterOf(p.Month),
			Month:     p.Month,
			Type:      resolveType(p.Month),
			StartDate: p.StartDate,
			EndDate:   p.EndDate,
		}
		if prev, ok := byMonth[p.Month]; ok {
			next.ID = prev.ID
		}
		if err := s.store.SavePeriod(ctx, next); err != nil {
			return err
		}
	}
	audit.LogEvent(ctx, "assembly.periods_saved", map[string]any{"year": year, "ip": ip})
	return nil
}

// Submission is a submitted report enriched with the owner's identity.
type Submission struct {
	Report
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
}

// SubmittedMembers lists who has submitted for the month, with names
// resolved from the member roster.
func (s *Service) SubmittedMembers(ctx context.Context, year, month int) ([]*Submission, error) {
	if !validMonth(month) {
		return nil, ErrInvalidPeriod
	}
	reports, err := s.store.SubmittedReports(ctx, year, semesterOf(month), month)
	if err != nil {
		return nil, err
	}
	out := make([]*Submission, 0, len(reports))
	for _, r := range reports {
		sub := &Submission{Report: *r}
		if m, err := s.members.Get(ctx, r.LoginID); err == nil {
			sub.Name = m.Name
			sub.StudentID = m.StudentID
		}
		out = append(out, sub)
	}
	return out, nil
}

// ArchiveName is the download filename for a month's bundle.
func ArchiveName(year, month int, filter filestore.Filter) string {
	return fmt.Sprintf("assembly_%d_%02d_%s.zip", year, month, filter)
}

// BundleZip streams a zip of the month's submitted files to w. Missing
// or unreadable files are skipped rather than failing the export.
func (s *Service) BundleZip(ctx context.Context, w io.Writer, year, month int, filter filestore.Filter) error {
	if !validMonth(month) {
		return ErrInvalidPeriod
	}
	reports, err := s.store.SubmittedReports(ctx, year, semesterOf(month), month)
	if err != nil {
		return err
	}
	var entries []filestore.BundleEntry
	for _, r := range reports {
		for _, slot := range []struct {
			kind filestore.Kind
			path string
		}{
			{filestore.KindPresentation, r.PresentationPath},
			{filestore.KindDocument, r.PDFPath},
			{filestore.KindOther, r.OtherPath},
		} {
			if slot.path == "" {
				continue
			}
			entries = append(entries, filestore.BundleEntry{
				OwnerLabel: r.LoginID,
				Kind:       slot.kind,
				StoredPath: slot.path,
			})
		}
	}
	return s.files.Bundle(w, entries, filter)
}

// ResolveDownload maps a stored report path to an absolute file path,
// refusing anything outside the storage roots.
func (s *Service) ResolveDownload(raw string) (string, error) {
	return s.files.ResolveForDownload(raw)
}

func validMonth(month int) bool {
	for _, m := range activeMonths {
		if m == month {
			return true
		}
	}
	return false
}

func (s *Service) logAccess(ctx context.Context, loginID, action, ip string) {
	entry := audit.AccessEntry{Action: action, IP: ip, Timestamp: s.now()}
	if m, err := s.members.Get(ctx, loginID); err == nil {
		entry.Name = m.Name
		entry.StudentID = m.StudentID
	}
	_ = s.access.Append(ctx, entry)
	audit.LogEvent(ctx, "assembly.submit", map[string]any{"login_id": loginID, "ip": ip})
}
