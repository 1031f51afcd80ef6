package pg

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"devsign.org/internal/engagement"
)

func newEngagementMock(t *testing.T) (*EngagementStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEngagementStore(NewStore(db)), mock
}

func TestRecordViewFirstView(t *testing.T) {
	store, mock := newEngagementMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into engagement_records").
		WithArgs("alice", engagement.KindPost, "p1", engagement.ActionView).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into engagement_counters").
		WithArgs(engagement.KindPost, "p1").
		WillReturnRows(sqlmock.NewRows([]string{"views"}).AddRow(1))
	mock.ExpectCommit()

	res, err := store.RecordView(context.Background(), "alice", engagement.KindPost, "p1")
	if err != nil {
		t.Fatalf("record view: %v", err)
	}
	if !res.Counted || res.Views != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordViewDuplicateLeavesCounter(t *testing.T) {
	store, mock := newEngagementMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into engagement_records").
		WithArgs("alice", engagement.KindPost, "p1", engagement.ActionView).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select views from engagement_counters").
		WithArgs(engagement.KindPost, "p1").
		WillReturnRows(sqlmock.NewRows([]string{"views"}).AddRow(5))
	mock.ExpectCommit()

	res, err := store.RecordView(context.Background(), "alice", engagement.KindPost, "p1")
	if err != nil {
		t.Fatalf("record view: %v", err)
	}
	if res.Counted || res.Views != 5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestToggleLikeOn(t *testing.T) {
	store, mock := newEngagementMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into engagement_records").
		WithArgs("alice", engagement.KindEvent, "e1", engagement.ActionLike).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into engagement_counters").
		WithArgs(engagement.KindEvent, "e1").
		WillReturnRows(sqlmock.NewRows([]string{"likes"}).AddRow(1))
	mock.ExpectCommit()

	res, err := store.ToggleLike(context.Background(), "alice", engagement.KindEvent, "e1")
	if err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	if !res.Liked || res.Likes != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestToggleLikeOffFloorsAtZero(t *testing.T) {
	store, mock := newEngagementMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into engagement_records").
		WithArgs("alice", engagement.KindEvent, "e1", engagement.ActionLike).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from engagement_records").
		WithArgs("alice", engagement.KindEvent, "e1", engagement.ActionLike).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("update engagement_counters").
		WithArgs(engagement.KindEvent, "e1").
		WillReturnRows(sqlmock.NewRows([]string{"likes"}).AddRow(0))
	mock.ExpectCommit()

	res, err := store.ToggleLike(context.Background(), "alice", engagement.KindEvent, "e1")
	if err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	if res.Liked || res.Likes != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestToggleLikeOffRaceLeavesCounterAlone(t *testing.T) {
	store, mock := newEngagementMock(t)

	// Insert conflicts and the record is already gone: a racing request
	// removed it first. The counter must not be decremented again.
	mock.ExpectBegin()
	mock.ExpectExec("insert into engagement_records").
		WithArgs("alice", engagement.KindEvent, "e1", engagement.ActionLike).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from engagement_records").
		WithArgs("alice", engagement.KindEvent, "e1", engagement.ActionLike).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select likes from engagement_counters").
		WithArgs(engagement.KindEvent, "e1").
		WillReturnRows(sqlmock.NewRows([]string{"likes"}).AddRow(2))
	mock.ExpectCommit()

	res, err := store.ToggleLike(context.Background(), "alice", engagement.KindEvent, "e1")
	if err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	if res.Liked || res.Likes != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordViewRollsBackOnCounterFailure(t *testing.T) {
	store, mock := newEngagementMock(t)

	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec("insert into engagement_records").
		WithArgs("alice", engagement.KindPost, "p1", engagement.ActionView).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into engagement_counters").
		WithArgs(engagement.KindPost, "p1").
		WillReturnError(boom)
	mock.ExpectRollback()

	if _, err := store.RecordView(context.Background(), "alice", engagement.KindPost, "p1"); !errors.Is(err, boom) {
		t.Fatalf("expected counter error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCountsForMissingResource(t *testing.T) {
	store, mock := newEngagementMock(t)

	mock.ExpectQuery("select views, likes from engagement_counters").
		WithArgs(engagement.KindNotice, "n1").
		WillReturnRows(sqlmock.NewRows([]string{"views", "likes"}))

	counts, err := store.CountsFor(context.Background(), engagement.KindNotice, "n1")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Views != 0 || counts.Likes != 0 {
		t.Fatalf("expected zero counts, got %+v", counts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
