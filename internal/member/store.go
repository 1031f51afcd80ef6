package member

import "context"

// Store describes persistence operations required by the member subsystem.
type Store interface {
	Create(ctx context.Context, m *Member) error
	FindByID(ctx context.Context, id string) (*Member, error)
	FindByLogin(ctx context.Context, loginID string) (*Member, error)
	FindByTag(ctx context.Context, tag string) (*Member, error)
	FindByNameAndStudentID(ctx context.Context, name, studentID string) (*Member, error)
	Update(ctx context.Context, m *Member) error
	Delete(ctx context.Context, id string) error
	// List returns all members ordered by student id descending.
	List(ctx context.Context) ([]*Member, error)

	// Verification codes are short-lived; the latest one per tag wins.
	PutVerification(ctx context.Context, v Verification) error
	LatestVerification(ctx context.Context, tag string) (*Verification, error)
	DeleteVerification(ctx context.Context, tag string) error
}
