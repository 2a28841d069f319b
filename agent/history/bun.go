package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverUpstash  = "upstash"
)

type Config struct {
	Driver string `split_words:"true" default:"sqlite3"`
	DSN    string `envconfig:"DSN" default:"file:autoblog_history.db?_busy_timeout=5000"`
}

type entryModel struct {
	bun.BaseModel `bun:"table:publish_history,alias:ph"`

	ID          int64     `bun:"id,pk,autoincrement"`
	CycleID     string    `bun:"cycle_id,notnull"`
	ProductID   string    `bun:"product_id,notnull"`
	PostID      int64     `bun:"post_id,notnull"`
	Title       string    `bun:"title"`
	Day         string    `bun:"day,notnull"`
	PublishAt   time.Time `bun:"publish_at,notnull"`
	PublishedAt time.Time `bun:"published_at,notnull"`
}

// BunStore keeps history in a SQL table through bun.
type BunStore struct {
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

// OpenBun connects to sqlite3 or postgres and makes sure the table exists.
func OpenBun(ctx context.Context, cfg Config) (*BunStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("history dsn is required")
	}

	var db *bun.DB
	switch strings.TrimSpace(cfg.Driver) {
	case DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite, "":
		sqldb, err := sql.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported history driver %q", cfg.Driver)
	}

	store := NewBunStore(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*entryModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create publish_history table: %w", err)
	}
	return nil
}

func (s *BunStore) Record(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m := &entryModel{
		CycleID:     e.CycleID,
		ProductID:   e.ProductID,
		PostID:      e.PostID,
		Title:       e.Title,
		Day:         e.Day,
		PublishAt:   e.PublishAt.UTC(),
		PublishedAt: e.PublishedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert publish history: %w", err)
	}
	return nil
}

func (s *BunStore) LastPublished(ctx context.Context) (Entry, error) {
	var m entryModel
	err := s.db.NewSelect().
		Model(&m).
		OrderExpr("id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNoHistory
	}
	if err != nil {
		return Entry{}, fmt.Errorf("select publish history: %w", err)
	}
	return Entry{
		CycleID:     m.CycleID,
		ProductID:   m.ProductID,
		PostID:      m.PostID,
		Title:       m.Title,
		Day:         m.Day,
		PublishAt:   m.PublishAt.UTC(),
		PublishedAt: m.PublishedAt.UTC(),
	}, nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}
