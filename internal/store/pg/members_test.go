package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"devsign.org/internal/member"
)

func newMemberMock(t *testing.T) (*MemberStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMemberStore(NewStore(db)), mock
}

func memberRow(m *member.Member) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "login_id", "password_hash", "name", "student_id", "dept", "interests",
		"discord_tag", "user_status", "role", "suspended", "avatar_url", "created_at", "updated_at",
	}).AddRow(m.ID, m.LoginID, m.PasswordHash, m.Name, m.StudentID, m.Dept, m.Interests,
		m.Tag, m.Status, m.Role, m.Suspended, m.AvatarURL, m.CreatedAt, m.UpdatedAt)
}

func TestCreateAssignsID(t *testing.T) {
	store, mock := newMemberMock(t)

	mock.ExpectExec("insert into members").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := &member.Member{LoginID: "alice", Name: "Alice"}
	if err := store.Create(context.Background(), m); err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected generated id")
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMemberMock(t)

	mock.ExpectExec("insert into members").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := store.Create(context.Background(), &member.Member{LoginID: "alice"})
	if !errors.Is(err, member.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindByLogin(t *testing.T) {
	store, mock := newMemberMock(t)

	want := &member.Member{
		ID:        "m1",
		LoginID:   "alice",
		Name:      "Alice",
		StudentID: "20210001",
		Role:      "USER",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	mock.ExpectQuery("from members where login_id").
		WithArgs("alice").
		WillReturnRows(memberRow(want))

	got, err := store.FindByLogin(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != want.ID || got.LoginID != want.LoginID || got.Name != want.Name {
		t.Fatalf("unexpected member %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindByLoginNotFound(t *testing.T) {
	store, mock := newMemberMock(t)

	// An empty row set surfaces as sql.ErrNoRows; the store maps it to
	// ErrNotFound.
	mock.ExpectQuery("from members where login_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.FindByLogin(context.Background(), "missing"); !errors.Is(err, member.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateMissingRow(t *testing.T) {
	store, mock := newMemberMock(t)

	mock.ExpectExec("update members set").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), &member.Member{ID: "gone"})
	if !errors.Is(err, member.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteMissingRow(t *testing.T) {
	store, mock := newMemberMock(t)

	mock.ExpectExec("delete from members").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Delete(context.Background(), "gone"); !errors.Is(err, member.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLatestVerificationMissingMapsToBadCode(t *testing.T) {
	store, mock := newMemberMock(t)

	mock.ExpectQuery("from verifications where discord_tag").
		WithArgs("alice#1").
		WillReturnRows(sqlmock.NewRows([]string{"discord_tag"}))

	if _, err := store.LatestVerification(context.Background(), "alice#1"); !errors.Is(err, member.ErrBadCode) {
		t.Fatalf("expected ErrBadCode, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
