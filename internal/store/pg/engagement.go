package pg

import (
	"context"
	"database/sql"
	"errors"

	"devsign.org/internal/engagement"
	"devsign.org/internal/obs"
)

var _ engagement.Ledger = (*EngagementStore)(nil)

// EngagementStore implements engagement.Ledger on Postgres. The record
// insert and the counter adjustment run in one transaction; the primary
// key on engagement_records makes the check-and-act atomic across
// processes, which the in-memory mutex only guarantees in-process.
type EngagementStore struct {
	db *sql.DB
}

func NewEngagementStore(s *Store) *EngagementStore { return &EngagementStore{db: s.db} }

func (s *EngagementStore) RecordView(ctx context.Context, subject string, kind engagement.Kind, resource string) (engagement.ViewResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engagement.ViewResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		insert into engagement_records (subject, kind, resource, action)
		values ($1,$2,$3,$4)
		on conflict do nothing`,
		subject, kind, resource, engagement.ActionView)
	if err != nil {
		return engagement.ViewResult{}, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return engagement.ViewResult{}, err
	}

	var views int
	if inserted > 0 {
		err = tx.QueryRowContext(ctx, `
			insert into engagement_counters (kind, resource, views, likes)
			values ($1,$2,1,0)
			on conflict (kind, resource) do update set views = engagement_counters.views + 1
			returning views`, kind, resource).Scan(&views)
	} else {
		err = tx.QueryRowContext(ctx,
			`select views from engagement_counters where kind = $1 and resource = $2`,
			kind, resource).Scan(&views)
		if errors.Is(err, sql.ErrNoRows) {
			views, err = 0, nil
		}
	}
	if err != nil {
		return engagement.ViewResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return engagement.ViewResult{}, err
	}
	if inserted > 0 {
		obs.CountEngagement("view", "counted")
	} else {
		obs.CountEngagement("view", "duplicate")
	}
	return engagement.ViewResult{Counted: inserted > 0, Views: views}, nil
}

func (s *EngagementStore) ToggleLike(ctx context.Context, subject string, kind engagement.Kind, resource string) (engagement.LikeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engagement.LikeResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		insert into engagement_records (subject, kind, resource, action)
		values ($1,$2,$3,$4)
		on conflict do nothing`,
		subject, kind, resource, engagement.ActionLike)
	if err != nil {
		return engagement.LikeResult{}, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return engagement.LikeResult{}, err
	}

	var likes int
	if inserted > 0 {
		err = tx.QueryRowContext(ctx, `
			insert into engagement_counters (kind, resource, views, likes)
			values ($1,$2,0,1)
			on conflict (kind, resource) do update set likes = engagement_counters.likes + 1
			returning likes`, kind, resource).Scan(&likes)
	} else {
		var delRes sql.Result
		delRes, err = tx.ExecContext(ctx, `
			delete from engagement_records
			where subject = $1 and kind = $2 and resource = $3 and action = $4`,
			subject, kind, resource, engagement.ActionLike)
		var deleted int64
		if err == nil {
			deleted, err = delRes.RowsAffected()
		}
		if err == nil {
			if deleted > 0 {
				err = tx.QueryRowContext(ctx, `
					update engagement_counters
					set likes = greatest(likes - 1, 0)
					where kind = $1 and resource = $2
					returning likes`, kind, resource).Scan(&likes)
			} else {
				// A racing request already removed the record; the
				// counter must not move again.
				err = tx.QueryRowContext(ctx,
					`select likes from engagement_counters where kind = $1 and resource = $2`,
					kind, resource).Scan(&likes)
			}
			if errors.Is(err, sql.ErrNoRows) {
				likes, err = 0, nil
			}
		}
	}
	if err != nil {
		return engagement.LikeResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return engagement.LikeResult{}, err
	}
	liked := inserted > 0
	if liked {
		obs.CountEngagement("like", "on")
	} else {
		obs.CountEngagement("like", "off")
	}
	return engagement.LikeResult{Liked: liked, Likes: likes}, nil
}

func (s *EngagementStore) Liked(ctx context.Context, subject string, kind engagement.Kind, resource string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from engagement_records
			where subject = $1 and kind = $2 and resource = $3 and action = $4
		)`, subject, kind, resource, engagement.ActionLike).Scan(&exists)
	return exists, err
}

func (s *EngagementStore) LikedSet(ctx context.Context, subject string, kind engagement.Kind, resources []string) (map[string]bool, error) {
	out := make(map[string]bool, len(resources))
	if len(resources) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select resource from engagement_records
		where subject = $1 and kind = $2 and action = $3 and resource = any($4)`,
		subject, kind, engagement.ActionLike, resources)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var resource string
		if err := rows.Scan(&resource); err != nil {
			return nil, err
		}
		out[resource] = true
	}
	return out, rows.Err()
}

func (s *EngagementStore) CountsFor(ctx context.Context, kind engagement.Kind, resource string) (engagement.Counts, error) {
	var c engagement.Counts
	err := s.db.QueryRowContext(ctx,
		`select views, likes from engagement_counters where kind = $1 and resource = $2`,
		kind, resource).Scan(&c.Views, &c.Likes)
	if errors.Is(err, sql.ErrNoRows) {
		return engagement.Counts{}, nil
	}
	return c, err
}

func (s *EngagementStore) DeleteResources(ctx context.Context, kind engagement.Kind, resources ...string) error {
	if len(resources) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`delete from engagement_records where kind = $1 and resource = any($2)`,
		kind, resources); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`delete from engagement_counters where kind = $1 and resource = any($2)`,
		kind, resources); err != nil {
		return err
	}
	return tx.Commit()
}
