// Package memory implements the Decision Store: the single durable home for
// decisions, graph edges, checkpoints, hints, learning records, growth
// metrics, skill levels, module metadata and workflow projects.
//
// It uses SQLite (modernc.org/sqlite, pure Go) in WAL mode. Every write is a
// single statement; no transaction spans components. Other packages receive
// data by value and submit mutations through the Store API.
package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02 15:04:05.000000"

// DefaultUserID is used when a caller does not identify a user.
const DefaultUserID = "default"

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds Decision Store configuration.
type Config struct {
	DataDir            string
	MaxReasoningLength int
	MaxRecentResults   int

	// Now is the clock used for created_at/updated_at stamps. Defaults to time.Now.
	Now func() time.Time
	// Logger receives storage diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns the default configuration for the store.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:            dataDir,
		MaxReasoningLength: 8000,
		MaxRecentResults:   20,
		Now:                time.Now,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the Decision Store backed by SQLite.
type Store struct {
	db     *sql.DB
	cfg    Config
	log    *zap.Logger
	hooks  storeHooks
	dbPath string
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type sqlRowScanner struct {
	rows *sql.Rows
}

func (r sqlRowScanner) Next() bool             { return r.rows.Next() }
func (r sqlRowScanner) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqlRowScanner) Err() error             { return r.rows.Err() }
func (r sqlRowScanner) Close() error           { return r.rows.Close() }

// storeHooks lets tests inject storage faults without a broken database.
type storeHooks struct {
	exec    func(db execer, query string, args ...any) (sql.Result, error)
	queryIt func(db queryer, query string, args ...any) (rowScanner, error)
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(db execer, query string, args ...any) (sql.Result, error) {
			return db.Exec(query, args...)
		},
		queryIt: func(db queryer, query string, args ...any) (rowScanner, error) {
			rows, err := db.Query(query, args...)
			if err != nil {
				return nil, err
			}
			return sqlRowScanner{rows: rows}, nil
		},
	}
}

func (s *Store) execHook(op, query string, args ...any) (sql.Result, error) {
	var (
		res sql.Result
		err error
	)
	if s.hooks.exec != nil {
		res, err = s.hooks.exec(s.db, query, args...)
	} else {
		res, err = s.db.Exec(query, args...)
	}
	if err != nil {
		return nil, storageErr(op, err)
	}
	return res, nil
}

func (s *Store) queryItHook(op, query string, args ...any) (rowScanner, error) {
	var (
		rows rowScanner
		err  error
	)
	if s.hooks.queryIt != nil {
		rows, err = s.hooks.queryIt(s.db, query, args...)
	} else {
		var r *sql.Rows
		r, err = s.db.Query(query, args...)
		if err == nil {
			rows = sqlRowScanner{rows: r}
		}
	}
	if err != nil {
		return nil, storageErr(op, err)
	}
	return rows, nil
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxReasoningLength <= 0 {
		cfg.MaxReasoningLength = 8000
	}
	if cfg.MaxRecentResults <= 0 {
		cfg.MaxRecentResults = 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "mama.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}
	// Single writer: one connection keeps WAL + foreign_keys pragmas on every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, log: logger.Named("store"), hooks: defaultStoreHooks(), dbPath: dbPath}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: migration: %w", err)
	}

	s.log.Debug("decision store opened", zap.String("path", dbPath))
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Now returns the store clock's current time in UTC.
func (s *Store) Now() time.Time {
	return s.cfg.Now().UTC()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS decisions (
			id              TEXT PRIMARY KEY,
			topic           TEXT NOT NULL,
			reasoning       TEXT NOT NULL,
			outcome         TEXT,
			embedding       BLOB,
			embedding_hash  TEXT,
			embedding_model TEXT,
			user_id         TEXT NOT NULL DEFAULT 'default',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_dec_topic   ON decisions(topic, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_dec_created ON decisions(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_dec_user    ON decisions(user_id);

		CREATE VIRTUAL TABLE IF NOT EXISTS decisions_fts USING fts5(
			topic,
			reasoning,
			outcome,
			content='decisions',
			content_rowid='rowid'
		);

		CREATE TABLE IF NOT EXISTS edges (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			from_id    TEXT NOT NULL,
			to_id      TEXT NOT NULL,
			type       TEXT NOT NULL CHECK (type IN ('builds_on', 'debates', 'synthesizes')),
			created_at TEXT NOT NULL,
			FOREIGN KEY (from_id) REFERENCES decisions(id) ON DELETE CASCADE,
			FOREIGN KEY (to_id)   REFERENCES decisions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_edge_from ON edges(from_id);
		CREATE INDEX IF NOT EXISTS idx_edge_to   ON edges(to_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_edge_unique ON edges(from_id, to_id, type);

		CREATE TABLE IF NOT EXISTS checkpoints (
			id                   TEXT PRIMARY KEY,
			summary              TEXT NOT NULL,
			related_decision_ids TEXT NOT NULL DEFAULT '[]',
			next_steps           TEXT,
			created_at           TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ckpt_created ON checkpoints(created_at DESC);

		CREATE TABLE IF NOT EXISTS hints (
			id         TEXT PRIMARY KEY,
			domain     TEXT NOT NULL,
			text       TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_hint_domain ON hints(domain, status);

		CREATE TABLE IF NOT EXISTS learnings (
			user_id             TEXT    NOT NULL,
			concept             TEXT    NOT NULL,
			understanding_level INTEGER NOT NULL CHECK (understanding_level BETWEEN 1 AND 4),
			applied_count       INTEGER NOT NULL DEFAULT 0,
			updated_at          TEXT    NOT NULL,
			PRIMARY KEY (user_id, concept)
		);

		CREATE TABLE IF NOT EXISTS growth_metrics (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL CHECK (type IN ('independent_decision', 'concept_applied', 'tradeoff_predicted', 'terminology_used')),
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_growth_user ON growth_metrics(user_id, type);

		CREATE TABLE IF NOT EXISTS action_counts (
			user_id    TEXT    NOT NULL,
			domain     TEXT    NOT NULL,
			count      INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT    NOT NULL,
			PRIMARY KEY (user_id, domain)
		);

		CREATE TABLE IF NOT EXISTS skill_levels (
			user_id    TEXT    NOT NULL,
			domain     TEXT    NOT NULL,
			level      INTEGER NOT NULL CHECK (level BETWEEN 1 AND 4),
			updated_at TEXT    NOT NULL,
			PRIMARY KEY (user_id, domain)
		);

		CREATE TABLE IF NOT EXISTS modules (
			name                    TEXT PRIMARY KEY,
			description             TEXT NOT NULL DEFAULT '',
			tags                    TEXT NOT NULL DEFAULT '[]',
			example                 TEXT NOT NULL DEFAULT '',
			embedding               BLOB,
			embedding_metadata_hash TEXT,
			usage_count             INTEGER NOT NULL DEFAULT 0,
			last_used_at            TEXT,
			source                  TEXT NOT NULL DEFAULT '',
			updated_at              TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS workflow_projects (
			id               TEXT PRIMARY KEY,
			name             TEXT    NOT NULL,
			phase            TEXT    NOT NULL,
			active           INTEGER NOT NULL DEFAULT 1,
			completed_phases TEXT    NOT NULL DEFAULT '[]',
			created_at       TEXT    NOT NULL,
			updated_at       TEXT    NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_wf_one_active ON workflow_projects(active) WHERE active = 1;

		CREATE TABLE IF NOT EXISTS workflow_artifacts (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			phase      TEXT NOT NULL,
			name       TEXT NOT NULL,
			content    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (project_id) REFERENCES workflow_projects(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_wf_art_project ON workflow_artifacts(project_id, phase);
	`
	if _, err := s.execHook("migrate", schema); err != nil {
		return err
	}

	// FTS triggers (idempotent)
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='dec_fts_insert'",
	).Scan(&name)

	if err == sql.ErrNoRows {
		triggers := `
			CREATE TRIGGER dec_fts_insert AFTER INSERT ON decisions BEGIN
				INSERT INTO decisions_fts(rowid, topic, reasoning, outcome)
				VALUES (new.rowid, new.topic, new.reasoning, new.outcome);
			END;

			CREATE TRIGGER dec_fts_delete AFTER DELETE ON decisions BEGIN
				INSERT INTO decisions_fts(decisions_fts, rowid, topic, reasoning, outcome)
				VALUES ('delete', old.rowid, old.topic, old.reasoning, old.outcome);
			END;

			CREATE TRIGGER dec_fts_update AFTER UPDATE OF topic, reasoning, outcome ON decisions BEGIN
				INSERT INTO decisions_fts(decisions_fts, rowid, topic, reasoning, outcome)
				VALUES ('delete', old.rowid, old.topic, old.reasoning, old.outcome);
				INSERT INTO decisions_fts(rowid, topic, reasoning, outcome)
				VALUES (new.rowid, new.topic, new.reasoning, new.outcome);
			END;
		`
		if _, err := s.execHook("migrate triggers", triggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *Store) stamp() string {
	return formatTime(s.Now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts the store layout plus SQLite's datetime('now') format.
func parseTime(v string) time.Time {
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseTimePtr(v *string) *time.Time {
	if v == nil || *v == "" {
		return nil
	}
	t := parseTime(*v)
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Truncate shortens a string to at most max bytes with ellipsis, never
// splitting a multi-byte rune.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return cutRunes(s, max) + "..."
}

// cutRunes returns the longest prefix of s that fits in max bytes and ends
// on a rune boundary.
func cutRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "fix auth bug" → `"fix" OR "auth" OR "bug"`
func sanitizeFTS(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '_' || r == ':' || r == '"'
	})
	for i, w := range words {
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " OR ")
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
