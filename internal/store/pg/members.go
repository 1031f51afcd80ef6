package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"devsign.org/internal/ids"
	"devsign.org/internal/member"
)

const pgErrUniqueViolation = "23505"

var _ member.Store = (*MemberStore)(nil)

// MemberStore implements member.Store on Postgres.
type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(s *Store) *MemberStore { return &MemberStore{db: s.db} }

const memberColumns = `id, login_id, password_hash, name, student_id, dept, interests,
	discord_tag, user_status, role, suspended, avatar_url, created_at, updated_at`

func (s *MemberStore) Create(ctx context.Context, m *member.Member) error {
	if m.ID == "" {
		m.ID = ids.New()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		insert into members (`+memberColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		m.ID, m.LoginID, m.PasswordHash, m.Name, m.StudentID, m.Dept, m.Interests,
		m.Tag, m.Status, m.Role, m.Suspended, m.AvatarURL, m.CreatedAt, m.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		return member.ErrAlreadyExists
	}
	return err
}

func (s *MemberStore) FindByID(ctx context.Context, id string) (*member.Member, error) {
	return s.findOne(ctx, `select `+memberColumns+` from members where id = $1`, id)
}

func (s *MemberStore) FindByLogin(ctx context.Context, loginID string) (*member.Member, error) {
	return s.findOne(ctx, `select `+memberColumns+` from members where login_id = $1`, loginID)
}

func (s *MemberStore) FindByTag(ctx context.Context, tag string) (*member.Member, error) {
	return s.findOne(ctx, `select `+memberColumns+` from members where discord_tag = $1`, tag)
}

func (s *MemberStore) FindByNameAndStudentID(ctx context.Context, name, studentID string) (*member.Member, error) {
	return s.findOne(ctx, `select `+memberColumns+` from members where name = $1 and student_id = $2`, name, studentID)
}

func (s *MemberStore) findOne(ctx context.Context, query string, args ...any) (*member.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, member.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MemberStore) Update(ctx context.Context, m *member.Member) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		update members set
			login_id = $2, password_hash = $3, name = $4, student_id = $5,
			dept = $6, interests = $7, discord_tag = $8, user_status = $9,
			role = $10, suspended = $11, avatar_url = $12, updated_at = $13
		where id = $1`,
		m.ID, m.LoginID, m.PasswordHash, m.Name, m.StudentID, m.Dept, m.Interests,
		m.Tag, m.Status, m.Role, m.Suspended, m.AvatarURL, m.UpdatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return member.ErrNotFound
	}
	return nil
}

func (s *MemberStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from members where id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return member.ErrNotFound
	}
	return nil
}

func (s *MemberStore) List(ctx context.Context) ([]*member.Member, error) {
	rows, err := s.db.QueryContext(ctx, `select `+memberColumns+` from members order by student_id desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MemberStore) PutVerification(ctx context.Context, v member.Verification) error {
	_, err := s.db.ExecContext(ctx, `
		insert into verifications (discord_tag, code, name, student_id, user_status, role, avatar_url, expires_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.Tag, v.Code, v.Name, v.StudentID, v.Status, v.Role, v.AvatarURL, v.ExpiresAt)
	return err
}

func (s *MemberStore) LatestVerification(ctx context.Context, tag string) (*member.Verification, error) {
	var v member.Verification
	err := s.db.QueryRowContext(ctx, `
		select discord_tag, code, name, student_id, user_status, role, avatar_url, expires_at
		from verifications where discord_tag = $1
		order by created_at desc limit 1`, tag).
		Scan(&v.Tag, &v.Code, &v.Name, &v.StudentID, &v.Status, &v.Role, &v.AvatarURL, &v.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, member.ErrBadCode
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *MemberStore) DeleteVerification(ctx context.Context, tag string) error {
	_, err := s.db.ExecContext(ctx, `delete from verifications where discord_tag = $1`, tag)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*member.Member, error) {
	var m member.Member
	err := row.Scan(&m.ID, &m.LoginID, &m.PasswordHash, &m.Name, &m.StudentID, &m.Dept,
		&m.Interests, &m.Tag, &m.Status, &m.Role, &m.Suspended, &m.AvatarURL,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
