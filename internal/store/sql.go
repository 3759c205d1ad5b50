package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	// Registers the "postgres" driver.
	_ "github.com/lib/pq"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/f1-schedule-bot/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLRepo implements Repo on SQLite or PostgreSQL.
type SQLRepo struct {
	db     *sql.DB
	driver string
}

// Open opens the registry for the given driver. path is used by sqlite,
// dsn by postgres.
func Open(ctx context.Context, driver, path, dsn string) (*SQLRepo, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, path)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies PRAGMAs and runs migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return migrated(ctx, db, DriverSQLite)
}

// OpenPostgres connects to PostgreSQL and runs migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepo, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return migrated(ctx, db, DriverPostgres)
}

func migrated(ctx context.Context, db *sql.DB, driver string) (*SQLRepo, error) {
	if err := RunMigrations(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLRepo{db: db, driver: driver}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLRepo) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (r *SQLRepo) rebind(q string) string {
	if r.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLRepo) Register(ctx context.Context, c domain.Chat) error {
	if c.IsOperator() {
		return fmt.Errorf("%w: %d", ErrReservedName, c.ID)
	}
	return r.insert(ctx, c)
}

func (r *SQLRepo) insert(ctx context.Context, c domain.Chat) error {
	if strings.TrimSpace(string(c.Kind)) == "" || strings.TrimSpace(c.Name) == "" {
		return ErrInvalidChat
	}
	res, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO chats (chat_id, type, name)
		VALUES (?, ?, ?)
		ON CONFLICT (chat_id) DO NOTHING`),
		c.ID, string(c.Kind), c.Name,
	)
	if err != nil {
		return fmt.Errorf("insert chat %d: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrAlreadyRegistered, c.ID)
	}
	return nil
}

func (r *SQLRepo) GetChat(ctx context.Context, chatID int64) (*domain.Chat, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT chat_id, type, name
		FROM chats
		WHERE chat_id = ?`),
		chatID,
	)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *SQLRepo) GetOperator(ctx context.Context) (*domain.Chat, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT chat_id, type, name
		FROM chats
		WHERE name = ?
		ORDER BY chat_id
		LIMIT 1`),
		domain.OperatorChatName,
	)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoOperator
	}
	return c, err
}

func (r *SQLRepo) ListChats(ctx context.Context) ([]domain.Chat, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT chat_id, type, name
		FROM chats
		WHERE name <> ?
		ORDER BY chat_id`),
		domain.OperatorChatName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *SQLRepo) EnsureOperator(ctx context.Context, fallbackID int64) (bool, error) {
	_, err := r.GetOperator(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNoOperator) {
		return false, err
	}
	op := domain.Chat{ID: fallbackID, Kind: domain.KindGroup, Name: domain.OperatorChatName}
	if err := r.insert(ctx, op); err != nil {
		return false, fmt.Errorf("register operator chat: %w", err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(s scanner) (*domain.Chat, error) {
	var (
		id   int64
		kind string
		name string
	)
	if err := s.Scan(&id, &kind, &name); err != nil {
		return nil, err
	}
	return &domain.Chat{ID: id, Kind: domain.ChatKind(kind), Name: name}, nil
}
