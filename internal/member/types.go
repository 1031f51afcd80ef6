package member

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("member: not found")
	ErrAlreadyExists  = errors.New("member: already exists")
	ErrBadCredentials = errors.New("member: login id or password mismatch")
	ErrSuspended      = errors.New("member: account suspended")
	ErrBadCode        = errors.New("member: verification code invalid or expired")
	ErrTagUnknown     = errors.New("member: directory tag not found on club server")
)

// Member is a club member account. Suspended is read by the status gate
// on every authenticated request and mutated only through admin
// suspend/unsuspend, restore and delete operations.
type Member struct {
	ID           string    `json:"id"`
	LoginID      string    `json:"loginId"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	StudentID    string    `json:"studentId"`
	Dept         string    `json:"dept"`
	Interests    string    `json:"interests"`
	Tag          string    `json:"discordTag"`
	Status       string    `json:"userStatus"`
	Role         string    `json:"role"`
	Suspended    bool      `json:"suspended"`
	AvatarURL    string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Verification is a pending directory verification code together with
// the directory profile captured when the code was sent.
type Verification struct {
	Tag       string
	Code      string
	ExpiresAt time.Time
	Name      string
	StudentID string
	Status    string
	Role      string
	AvatarURL string
}

// Expired reports whether the code can no longer be used.
func (v Verification) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
