package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/kokoro-board/kokoro-board/api"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
	loc *time.Location
}

// Connect connects to the database and pings it to ensure the connection is
// working. loc is the reference timezone for the per-day posting constraint;
// nil means time.Local.
func Connect(ctx context.Context, connStr string, loc *time.Location) (*Postgres, error) {
	if loc == nil {
		loc = time.Local
	}
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
		loc: loc,
	}, nil
}

// EnsureSchema creates the tables and indexes if they do not exist. It is
// idempotent and intended to be invoked explicitly by deployment tooling.
func (pg *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := pg.bun.NewCreateTable().
		Model((*emotionTag)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create emotion_tags: %w", err)
	}

	// Deleting a tag must not delete or corrupt posts; the reference is weak.
	if _, err := pg.bun.NewCreateTable().
		Model((*post)(nil)).
		IfNotExists().
		ForeignKey(`("emotion_tag_id") REFERENCES "emotion_tags" ("id") ON DELETE SET NULL`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create posts: %w", err)
	}

	if _, err := pg.bun.NewCreateIndex().
		Model((*post)(nil)).
		Unique().
		IfNotExists().
		Index("posts_origin_address_posted_on_idx").
		Column("origin_address", "posted_on").
		Exec(ctx); err != nil {
		return fmt.Errorf("create posting-day index: %w", err)
	}

	if _, err := pg.bun.NewCreateIndex().
		Model((*post)(nil)).
		IfNotExists().
		Index("posts_expires_at_idx").
		Column("expires_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("create expiry index: %w", err)
	}

	return nil
}

// SeedEmotionTags inserts any missing tags from names. Existing tags are left
// untouched, so reseeding is safe.
func (pg *Postgres) SeedEmotionTags(ctx context.Context, names []string) error {
	for _, name := range names {
		t := &emotionTag{
			ID:   uuid.NewString(),
			Name: name,
		}
		if _, err := pg.bun.NewInsert().
			Model(t).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("seed tag %q: %w", name, err)
		}
	}
	return nil
}

// ListValidPosts returns all posts with expires_at > now, newest first,
// excluding the given IDs.
func (pg *Postgres) ListValidPosts(ctx context.Context, now time.Time, excludePostIDs ...string) ([]api.Post, error) {
	var posts []post
	q := pg.bun.NewSelect().
		Model(&posts).
		Relation("EmotionTag").
		Where("post.expires_at > ?", now).
		Order("post.created_at DESC")

	if len(excludePostIDs) > 0 {
		q = q.Where("post.id NOT IN (?)", bun.In(excludePostIDs))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]api.Post, len(posts))
	for i, p := range posts {
		out[i] = p.APIPost()
	}

	return out, nil
}

// PostByAddressOnDay returns the post submitted by the address within
// [dayStart, dayEnd), or api.ErrNotFound.
func (pg *Postgres) PostByAddressOnDay(ctx context.Context, address string, dayStart, dayEnd time.Time) (api.Post, error) {
	var p post
	err := pg.bun.NewSelect().
		Model(&p).
		Relation("EmotionTag").
		Where("post.origin_address = ?", address).
		Where("post.created_at >= ? AND post.created_at < ?", dayStart, dayEnd).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Post{}, api.ErrNotFound
	}
	if err != nil {
		return api.Post{}, fmt.Errorf("scan: %w", err)
	}
	return p.APIPost(), nil
}

// InsertPost inserts a post into the database. The returned post holds the
// generated ID. A same-day duplicate from the same address is rejected with
// api.ErrRateLimited by the store's uniqueness constraint, which stays
// authoritative even when two submissions race the caller's duplicate check.
func (pg *Postgres) InsertPost(ctx context.Context, in api.Post) (api.Post, error) {
	p := &post{
		ID:            uuid.NewString(),
		Content:       in.Content,
		EmpathyCount:  in.EmpathyCount,
		CreatedAt:     in.CreatedAt,
		ExpiresAt:     in.ExpiresAt,
		OriginAddress: in.OriginAddress,
		PostedOn:      in.CreatedAt.In(pg.loc).Format("2006-01-02"),
	}
	if in.EmotionTag != nil {
		p.EmotionTagID = in.EmotionTag.ID
	}
	if _, err := pg.bun.NewInsert().Model(p).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return api.Post{}, api.ErrRateLimited
		}
		return api.Post{}, fmt.Errorf("insert: %w", err)
	}

	out := p.APIPost()
	out.EmotionTag = in.EmotionTag
	return out, nil
}

// IncrementEmpathy bumps the post's empathy counter by exactly one in a
// single UPDATE, so concurrent clicks on the same post never lose updates.
func (pg *Postgres) IncrementEmpathy(ctx context.Context, postID string) (api.Post, error) {
	var p post
	err := pg.bun.NewUpdate().
		Model(&p).
		Set("empathy_count = empathy_count + 1").
		Where("id = ?", postID).
		Returning("*").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Post{}, api.ErrNotFound
	}
	if err != nil {
		return api.Post{}, fmt.Errorf("update: %w", err)
	}

	out := p.APIPost()
	if p.EmotionTagID != "" {
		tag, err := pg.EmotionTag(ctx, p.EmotionTagID)
		if err == nil {
			out.EmotionTag = &tag
		} else if !errors.Is(err, api.ErrNotFound) {
			return api.Post{}, err
		}
	}
	return out, nil
}

// DeleteExpiredPosts deletes every post with expires_at <= now and reports
// how many rows went away. Deleting an already-deleted row is a no-op, so
// overlapping sweeps are safe.
func (pg *Postgres) DeleteExpiredPosts(ctx context.Context, now time.Time) (int64, error) {
	res, err := pg.bun.NewDelete().
		Model((*post)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// EmotionTag returns the tag with the given ID, or api.ErrNotFound.
func (pg *Postgres) EmotionTag(ctx context.Context, tagID string) (api.EmotionTag, error) {
	var t emotionTag
	err := pg.bun.NewSelect().
		Model(&t).
		Where("id = ?", tagID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.EmotionTag{}, api.ErrNotFound
	}
	if err != nil {
		return api.EmotionTag{}, fmt.Errorf("scan: %w", err)
	}
	return t.APIEmotionTag(), nil
}

// ListEmotionTags returns all tags in name order.
func (pg *Postgres) ListEmotionTags(ctx context.Context) ([]api.EmotionTag, error) {
	var tags []emotionTag
	if err := pg.bun.NewSelect().
		Model(&tags).
		Order("name ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]api.EmotionTag, len(tags))
	for i, t := range tags {
		out[i] = t.APIEmotionTag()
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
