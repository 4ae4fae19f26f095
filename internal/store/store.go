package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens the database and ensures the schema exists.
func New(driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		drvName = "sqlite"
		if dsn == "" {
			dsn = "examgen.db"
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqlitePragmas
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/examgen?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer; also keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $N for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func (s *Store) migrate() error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.Exec(schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS subjects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id INTEGER NOT NULL REFERENCES subjects(id),
	difficulty TEXT NOT NULL,
	type TEXT NOT NULL,
	text TEXT NOT NULL,
	alternatives TEXT NOT NULL DEFAULT '[]',
	correct_index INTEGER NOT NULL DEFAULT 0,
	points REAL NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1,
	times_used INTEGER NOT NULL DEFAULT 0,
	times_correct INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_questions_pool ON questions (subject_id, difficulty, active);

CREATE TABLE IF NOT EXISTS exams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	total_questions INTEGER NOT NULL,
	easy_count INTEGER NOT NULL DEFAULT 0,
	medium_count INTEGER NOT NULL DEFAULT 0,
	hard_count INTEGER NOT NULL DEFAULT 0,
	variation_count INTEGER NOT NULL DEFAULT 1,
	passing_score REAL NOT NULL DEFAULT 6,
	randomize_questions BOOLEAN NOT NULL DEFAULT 1,
	randomize_alternatives BOOLEAN NOT NULL DEFAULT 1,
	published BOOLEAN NOT NULL DEFAULT 0,
	expires_at DATETIME,
	generation INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_subjects (
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	subject_id INTEGER NOT NULL REFERENCES subjects(id),
	PRIMARY KEY (exam_id, subject_id)
);

CREATE TABLE IF NOT EXISTS variations (
	id TEXT PRIMARY KEY,
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	generation INTEGER NOT NULL,
	seq INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_variations_exam ON variations (exam_id, generation);

CREATE TABLE IF NOT EXISTS variation_questions (
	variation_id TEXT NOT NULL REFERENCES variations(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE RESTRICT,
	type TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	text TEXT NOT NULL,
	points REAL NOT NULL,
	alternatives TEXT NOT NULL DEFAULT '[]',
	alt_order TEXT NOT NULL DEFAULT '[]',
	correct_index INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (variation_id, position)
);

CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	variation_id TEXT NOT NULL REFERENCES variations(id) ON DELETE CASCADE,
	student_id INTEGER NOT NULL,
	answers TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'submitted',
	score REAL,
	correct_count INTEGER NOT NULL DEFAULT 0,
	percentage REAL NOT NULL DEFAULT 0,
	submitted_at DATETIME NOT NULL,
	graded_at DATETIME,
	reviewed_at DATETIME,
	reviewed_by INTEGER,
	review_comment TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_submissions_exam ON submissions (exam_id);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'student',
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS imported_files (
	path TEXT PRIMARY KEY,
	sha256 TEXT NOT NULL,
	imported_at DATETIME NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS subjects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id BIGSERIAL PRIMARY KEY,
	subject_id BIGINT NOT NULL REFERENCES subjects(id),
	difficulty TEXT NOT NULL,
	type TEXT NOT NULL,
	text TEXT NOT NULL,
	alternatives TEXT NOT NULL DEFAULT '[]',
	correct_index INTEGER NOT NULL DEFAULT 0,
	points DOUBLE PRECISION NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	times_used BIGINT NOT NULL DEFAULT 0,
	times_correct BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_questions_pool ON questions (subject_id, difficulty, active);

CREATE TABLE IF NOT EXISTS exams (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	total_questions INTEGER NOT NULL,
	easy_count INTEGER NOT NULL DEFAULT 0,
	medium_count INTEGER NOT NULL DEFAULT 0,
	hard_count INTEGER NOT NULL DEFAULT 0,
	variation_count INTEGER NOT NULL DEFAULT 1,
	passing_score DOUBLE PRECISION NOT NULL DEFAULT 6,
	randomize_questions BOOLEAN NOT NULL DEFAULT TRUE,
	randomize_alternatives BOOLEAN NOT NULL DEFAULT TRUE,
	published BOOLEAN NOT NULL DEFAULT FALSE,
	expires_at TIMESTAMPTZ,
	generation INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_subjects (
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	subject_id BIGINT NOT NULL REFERENCES subjects(id),
	PRIMARY KEY (exam_id, subject_id)
);

CREATE TABLE IF NOT EXISTS variations (
	id TEXT PRIMARY KEY,
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	generation INTEGER NOT NULL,
	seq INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_variations_exam ON variations (exam_id, generation);

CREATE TABLE IF NOT EXISTS variation_questions (
	variation_id TEXT NOT NULL REFERENCES variations(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE RESTRICT,
	type TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	text TEXT NOT NULL,
	points DOUBLE PRECISION NOT NULL,
	alternatives TEXT NOT NULL DEFAULT '[]',
	alt_order TEXT NOT NULL DEFAULT '[]',
	correct_index INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (variation_id, position)
);

CREATE TABLE IF NOT EXISTS submissions (
	id BIGSERIAL PRIMARY KEY,
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	variation_id TEXT NOT NULL REFERENCES variations(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL,
	answers TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'submitted',
	score DOUBLE PRECISION,
	correct_count INTEGER NOT NULL DEFAULT 0,
	percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	submitted_at TIMESTAMPTZ NOT NULL,
	graded_at TIMESTAMPTZ,
	reviewed_at TIMESTAMPTZ,
	reviewed_by BIGINT,
	review_comment TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_submissions_exam ON submissions (exam_id);

CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'student',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS imported_files (
	path TEXT PRIMARY KEY,
	sha256 TEXT NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL
);
`
