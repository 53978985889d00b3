// Package store provides SQLite persistence for titles, per-user
// relations (favorites, watch later) and the activity log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

const (
	KindFavorite   = "favorite"
	KindWatchLater = "watchlater"

	ActionAdded   = "added"
	ActionRemoved = "removed"
)

type Store struct {
	sqldb *sql.DB
	db    *bun.DB
}

type Title struct {
	bun.BaseModel `bun:"table:titles,alias:t"`

	ID        string           `bun:"id,pk"`
	Title     string           `bun:"title,notnull"`
	Synopsis  string           `bun:"synopsis,notnull"`
	Released  int64            `bun:"released,notnull"`
	Genre     string           `bun:"genre,notnull"`
	Image     sql.Null[string] `bun:"image,nullzero"`
	CreatedAt string           `bun:"created_at,notnull"`
}

type Relation struct {
	bun.BaseModel `bun:"table:relations,alias:r"`

	PrincipalID string `bun:"principal_id,notnull"`
	TitleID     string `bun:"title_id,notnull"`
	Kind        string `bun:"kind,notnull"`
	CreatedAt   string `bun:"created_at,notnull"`
}

type Activity struct {
	bun.BaseModel `bun:"table:activities,alias:a"`

	ID          string `bun:"id,pk"`
	PrincipalID string `bun:"principal_id,notnull"`
	TitleID     string `bun:"title_id,notnull"`
	Kind        string `bun:"kind,notnull"`
	Action      string `bun:"action,notnull"`
	CreatedAt   string `bun:"created_at,notnull"`
}

// TitleQuery selects a bounded page of the catalog. An empty Genres slice
// matches every genre, Query matches case-insensitively on the title, and
// both year bounds are inclusive.
type TitleQuery struct {
	Query   string
	MinYear *int
	MaxYear *int
	Genres  []string
	Limit   int
	Offset  int
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("DB_PATH is required")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	sqldb, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := sqldb.PingContext(ctx); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("ping db: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	if err := initSchema(ctx, sqldb); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("init schema: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	bdb := bun.NewDB(sqldb, sqlitedialect.New())
	return &Store{sqldb: sqldb, db: bdb}, nil
}

func (s *Store) Close() error { return s.sqldb.Close() }

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS titles (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	synopsis TEXT NOT NULL,
	released INTEGER NOT NULL,
	genre TEXT NOT NULL,
	image TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_titles_released ON titles(released);
CREATE INDEX IF NOT EXISTS idx_titles_genre ON titles(genre);

CREATE TABLE IF NOT EXISTS relations (
	principal_id TEXT NOT NULL,
	title_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(principal_id, title_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_relations_principal ON relations(principal_id, kind);

CREATE TABLE IF NOT EXISTS activities (
	id TEXT PRIMARY KEY,
	principal_id TEXT NOT NULL,
	title_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	action TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activities_principal ON activities(principal_id, created_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Store) UpsertTitle(ctx context.Context, title *Title) error {
	t := *title
	if t.CreatedAt == "" {
		t.CreatedAt = now()
	}

	_, err := s.db.NewInsert().
		Model(&t).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("synopsis = EXCLUDED.synopsis").
		Set("released = EXCLUDED.released").
		Set("genre = EXCLUDED.genre").
		Set("image = EXCLUDED.image").
		Exec(ctx)
	return err
}

func (s *Store) GetTitle(ctx context.Context, id string) (Title, error) {
	var t Title
	err := s.db.NewSelect().
		Model(&t).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	return t, err
}

func (s *Store) TitleExists(ctx context.Context, id string) (bool, error) {
	return s.db.NewSelect().
		Table("titles").
		Where("id = ?", id).
		Exists(ctx)
}

func (s *Store) CountTitles(ctx context.Context) (int, error) {
	return s.db.NewSelect().Table("titles").Count(ctx)
}

// ListTitles returns one page of the catalog plus the exact number of
// titles matching the query. Ordering is (created_at, id) so that
// sequential pages never skip or duplicate a title.
func (s *Store) ListTitles(ctx context.Context, query TitleQuery) ([]Title, int, error) {
	out := []Title{}

	q := s.db.NewSelect().Model(&out)

	if needle := strings.TrimSpace(query.Query); needle != "" {
		q = q.Where("title LIKE ? COLLATE NOCASE", "%"+needle+"%")
	}
	if query.MinYear != nil {
		q = q.Where("released >= ?", *query.MinYear)
	}
	if query.MaxYear != nil {
		q = q.Where("released <= ?", *query.MaxYear)
	}
	if len(query.Genres) > 0 {
		q = q.Where("genre IN (?)", bun.In(query.Genres))
	}

	q = q.OrderExpr("created_at ASC, id ASC")

	if query.Limit > 0 {
		q = q.Limit(query.Limit).Offset(max(query.Offset, 0))
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) ListGenres(ctx context.Context) (out []string, err error) {
	var rows []string
	err = s.db.NewSelect().
		Table("titles").
		ColumnExpr("DISTINCT genre").
		Where("genre != ''").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	out = append(out, rows...)
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return out, nil
}

// InsertRelation is idempotent: inserting an already-present relation is a
// no-op success, per the toggle contract.
func (s *Store) InsertRelation(ctx context.Context, principalID, titleID, kind string) error {
	rel := Relation{
		PrincipalID: principalID,
		TitleID:     titleID,
		Kind:        kind,
		CreatedAt:   now(),
	}
	_, err := s.db.NewInsert().
		Model(&rel).
		On("CONFLICT (principal_id, title_id, kind) DO NOTHING").
		Exec(ctx)
	return err
}

// DeleteRelation is idempotent: deleting an absent relation succeeds.
func (s *Store) DeleteRelation(ctx context.Context, principalID, titleID, kind string) error {
	_, err := s.db.NewDelete().
		Table("relations").
		Where("principal_id = ?", principalID).
		Where("title_id = ?", titleID).
		Where("kind = ?", kind).
		Exec(ctx)
	return err
}

func (s *Store) HasRelation(ctx context.Context, principalID, titleID, kind string) (bool, error) {
	return s.db.NewSelect().
		Table("relations").
		Where("principal_id = ?", principalID).
		Where("title_id = ?", titleID).
		Where("kind = ?", kind).
		Exists(ctx)
}

// ListRelations returns a principal's relations of one kind, oldest first.
// A non-positive limit returns the full set.
func (s *Store) ListRelations(ctx context.Context, principalID, kind string, limit, offset int) ([]Relation, error) {
	out := []Relation{}
	q := s.db.NewSelect().
		Model(&out).
		Where("principal_id = ?", principalID).
		Where("kind = ?", kind).
		OrderExpr("created_at ASC, title_id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(max(offset, 0))
	}
	err := q.Scan(ctx)
	return out, err
}

// RelationIDs returns the set of title IDs a principal has related,
// keyed for membership checks.
func (s *Store) RelationIDs(ctx context.Context, principalID, kind string) (map[string]bool, error) {
	rels, err := s.ListRelations(ctx, principalID, kind, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(rels))
	for _, rel := range rels {
		out[rel.TitleID] = true
	}
	return out, nil
}

func (s *Store) InsertActivity(ctx context.Context, principalID, titleID, kind, action string) error {
	act := Activity{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		TitleID:     titleID,
		Kind:        kind,
		Action:      action,
		CreatedAt:   now(),
	}
	_, err := s.db.NewInsert().Model(&act).Exec(ctx)
	return err
}

func (s *Store) ListActivities(ctx context.Context, principalID string, limit int) ([]Activity, error) {
	out := []Activity{}
	q := s.db.NewSelect().
		Model(&out).
		Where("principal_id = ?", principalID).
		OrderExpr("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx)
	return out, err
}
