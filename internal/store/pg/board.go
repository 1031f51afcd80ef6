package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"devsign.org/internal/board"
	"devsign.org/internal/ids"
)

var _ board.Store = (*BoardStore)(nil)

// BoardStore implements board.Store on Postgres. Subtree removal uses a
// recursive CTE to report removed comment ids; the actual cascade is the
// parent_id foreign key.
type BoardStore struct {
	db *sql.DB
}

func NewBoardStore(s *Store) *BoardStore { return &BoardStore{db: s.db} }

const postColumns = `id, title, content, category, images, author, login_id, student_id, avatar_url, created_at`

func (s *BoardStore) CreatePost(ctx context.Context, p *board.Post) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	images, err := encodeImages(p.Images)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into posts (`+postColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.Title, p.Content, p.Category, images, p.Author,
		p.LoginID, p.StudentID, p.AvatarURL, p.CreatedAt)
	return err
}

func (s *BoardStore) FindPost(ctx context.Context, id string) (*board.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx,
		`select `+postColumns+` from posts where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, board.ErrNotFound
	}
	return p, err
}

func (s *BoardStore) ListPosts(ctx context.Context) ([]*board.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+postColumns+` from posts order by id desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*board.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *BoardStore) UpdatePost(ctx context.Context, p *board.Post) error {
	images, err := encodeImages(p.Images)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update posts set title = $2, content = $3, category = $4, images = $5
		where id = $1`,
		p.ID, p.Title, p.Content, p.Category, images)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return board.ErrNotFound
	}
	return nil
}

func (s *BoardStore) DeletePost(ctx context.Context, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	removed, err := collectIDs(tx.QueryContext(ctx,
		`select id from comments where post_id = $1`, id))
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `delete from posts where id = $1`, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, board.ErrNotFound
	}
	return removed, tx.Commit()
}

const commentColumns = `id, post_id, parent_id, content, author, login_id, student_id, avatar_url, reply, created_at`

func (s *BoardStore) CreateComment(ctx context.Context, c *board.Comment) error {
	if _, err := s.FindPost(ctx, c.PostID); err != nil {
		return err
	}
	if c.ParentID != "" {
		parent, err := s.FindComment(ctx, c.ParentID)
		if err != nil || parent.PostID != c.PostID {
			return board.ErrInvalidParent
		}
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Reply = c.ParentID != ""
	_, err := s.db.ExecContext(ctx, `
		insert into comments (`+commentColumns+`)
		values ($1,$2,nullif($3,''),$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.PostID, c.ParentID, c.Content, c.Author,
		c.LoginID, c.StudentID, c.AvatarURL, c.Reply, c.CreatedAt)
	return err
}

func (s *BoardStore) FindComment(ctx context.Context, id string) (*board.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx,
		`select `+commentColumns+` from comments where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, board.ErrNotFound
	}
	return c, err
}

func (s *BoardStore) DeleteComment(ctx context.Context, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	removed, err := collectIDs(tx.QueryContext(ctx, `
		with recursive subtree as (
			select id from comments where id = $1
			union all
			select c.id from comments c join subtree s on c.parent_id = s.id
		)
		select id from subtree`, id))
	if err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, board.ErrNotFound
	}
	// Deleting the root cascades the rest through the parent_id FK.
	if _, err := tx.ExecContext(ctx, `delete from comments where id = $1`, id); err != nil {
		return nil, err
	}
	return removed, tx.Commit()
}

func (s *BoardStore) CommentsForPost(ctx context.Context, postID string) ([]*board.Comment, error) {
	if _, err := s.FindPost(ctx, postID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+commentColumns+` from comments
		where post_id = $1 order by created_at asc, id asc`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*board.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanPost(row rowScanner) (*board.Post, error) {
	var p board.Post
	var images string
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Category, &images,
		&p.Author, &p.LoginID, &p.StudentID, &p.AvatarURL, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeImages(images, &p.Images); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanComment(row rowScanner) (*board.Comment, error) {
	var c board.Comment
	var parent sql.NullString
	err := row.Scan(&c.ID, &c.PostID, &parent, &c.Content, &c.Author,
		&c.LoginID, &c.StudentID, &c.AvatarURL, &c.Reply, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ParentID = parent.String
	return &c, nil
}

func collectIDs(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func encodeImages(images []string) (string, error) {
	if len(images) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeImages(raw string, dst *[]string) error {
	if raw == "" || raw == "[]" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
