package assembly

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("assembly: not found")
	// ErrIncompleteSubmission rejects a submission carrying no new file
	// when no file from a prior submission exists either. Completeness is
	// cumulative across repeated partial submissions.
	ErrIncompleteSubmission = errors.New("assembly: at least one of presentation, pdf or other file is required")
	ErrInvalidPeriod        = errors.New("assembly: invalid period")
)

// Submission cycle months. First semester runs March through June,
// second September through December.
var activeMonths = []int{3, 4, 5, 6, 9, 10, 11, 12}

// Report status values.
const (
	StatusNotSubmitted = "NOT_SUBMITTED"
	StatusSubmitted    = "SUBMITTED"
)

// Report type per month: plan at semester start, result at semester end,
// progress in between.
func resolveType(month int) string {
	switch month {
	case 3, 9:
		return "PLAN"
	case 6, 12:
		return "RESULT"
	default:
		return "PROGRESS"
	}
}

func semesterOf(month int) int {
	if month <= 6 {
		return 1
	}
	return 2
}

// Period is one configured submission window.
type Period struct {
	ID        string `json:"id"`
	Year      int    `json:"year"`
	Semester  int    `json:"semester"`
	Month     int    `json:"month"`
	Type      string `json:"type"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Report is one member's submission slot for a month. The three path
// fields are stored relative to the file-store base; at most one current
// file exists per slot, a re-upload overwrites the reference.
type Report struct {
	ID               string `json:"id"`
	LoginID          string `json:"loginId"`
	Year             int    `json:"year"`
	Semester         int    `json:"semester"`
	Month            int    `json:"month"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	Title            string `json:"title"`
	Memo             string `json:"memo"`
	Date             string `json:"date"`
	PresentationPath string `json:"presentationPath"`
	PDFPath          string `json:"pdfPath"`
	OtherPath        string `json:"otherPath"`
}

// HasAnyFile reports whether any slot holds a stored file.
func (r Report) HasAnyFile() bool {
	return r.PresentationPath != "" || r.PDFPath != "" || r.OtherPath != ""
}

// Project is a member's semester project title.
type Project struct {
	LoginID  string `json:"loginId"`
	Year     int    `json:"year"`
	Semester int    `json:"semester"`
	Title    string `json:"title"`
}

// Store persists periods, reports and project titles.
type Store interface {
	PeriodsByYear(ctx context.Context, year int) ([]*Period, error)
	SavePeriod(ctx context.Context, p *Period) error

	ReportsByOwner(ctx context.Context, loginID string, year, semester int) ([]*Report, error)
	SaveReport(ctx context.Context, r *Report) error
	// SubmittedReports lists SUBMITTED reports for the period, newest first.
	SubmittedReports(ctx context.Context, year, semester, month int) ([]*Report, error)
	CountSubmitted(ctx context.Context, year, semester, month int) (int, error)

	FindProject(ctx context.Context, loginID string, year, semester int) (*Project, error)
	SaveProject(ctx context.Context, p *Project) error
}
