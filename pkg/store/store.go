// Package store persists mining results in a SQLite database, one row per
// repository source with the scenarios kept as an LZ4-compressed JSON payload.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/Sumatoshi-tech/scenariominer/pkg/batch"
	"github.com/Sumatoshi-tech/scenariominer/pkg/miner"
)

// ErrNotFound is returned by Load for a repository that was never saved.
var ErrNotFound = errors.New("repository not found in store")

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
	source        TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	language      TEXT NOT NULL,
	window_size   INTEGER NOT NULL,
	branches      INTEGER NOT NULL,
	commits       INTEGER NOT NULL,
	file_chains   INTEGER NOT NULL,
	merges        INTEGER NOT NULL,
	cherry_picks  INTEGER NOT NULL,
	payload       BLOB NOT NULL,
	payload_codec TEXT NOT NULL,
	payload_size  INTEGER NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	duration_ns   INTEGER NOT NULL,
	mined_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_repositories_name ON repositories(name);
CREATE INDEX IF NOT EXISTS idx_repositories_mined_at ON repositories(mined_at DESC);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// Entry summarizes a stored repository without decoding its scenarios.
type Entry struct {
	Name        string
	Source      string
	Language    string
	Error       string
	MinedAt     time.Time
	WindowSize  int
	Branches    int
	Commits     int
	FileChains  int
	Merges      int
	CherryPicks int
}

// Store is a SQLite-backed result store. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	// A single connection serializes writers from concurrent batch workers.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		_, err = db.ExecContext(ctx, pragma)
		if err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize store schema: %w", err)
	}

	logger.DebugContext(ctx, "store opened", "path", path)

	return &Store{db: db, logger: logger, path: path}, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Save inserts or replaces the row of result.Source. Repositories sharing a
// display name, such as two local checkouts both called "repo", keep
// separate rows.
func (s *Store) Save(ctx context.Context, result batch.RepositoryResult) error {
	data, err := json.Marshal(result.Scenarios)
	if err != nil {
		return fmt.Errorf("encode scenarios of %s: %w", result.Source, err)
	}

	blob, codec, err := compressPayload(data)
	if err != nil {
		return err
	}

	minedAt := result.MinedAt
	if minedAt.IsZero() {
		minedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO repositories (
			name, source, language, window_size, branches, commits,
			file_chains, merges, cherry_picks,
			payload, payload_codec, payload_size, error, duration_ns, mined_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Name, result.Source, result.Language, result.WindowSize,
		result.Branches, result.Commits,
		len(result.Scenarios.FileChains), len(result.Scenarios.Merges), len(result.Scenarios.CherryPicks),
		blob, codec, len(data), result.Error, int64(result.Duration),
		minedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", result.Source, err)
	}

	s.logger.DebugContext(ctx, "result saved",
		"repository", result.Name, "source", result.Source, "payload_bytes", len(blob), "codec", codec)

	return nil
}

const selectResult = `
	SELECT name, source, language, window_size, branches, commits,
		payload, payload_codec, payload_size, error, duration_ns, mined_at
	FROM repositories`

// Load reads the full result of the repository mined from source.
func (s *Store) Load(ctx context.Context, source string) (batch.RepositoryResult, error) {
	row := s.db.QueryRowContext(ctx, selectResult+` WHERE source = ?`, source)

	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return batch.RepositoryResult{}, fmt.Errorf("%w: %s", ErrNotFound, source)
	}

	if err != nil {
		return batch.RepositoryResult{}, fmt.Errorf("load %s: %w", source, err)
	}

	return result, nil
}

// Find reads every result whose source or display name equals ref, ordered
// by source.
func (s *Store) Find(ctx context.Context, ref string) ([]batch.RepositoryResult, error) {
	rows, err := s.db.QueryContext(ctx, selectResult+` WHERE source = ? OR name = ? ORDER BY source`, ref, ref)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", ref, err)
	}
	defer rows.Close()

	var results []batch.RepositoryResult

	for rows.Next() {
		result, scanErr := scanResult(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("find %s: %w", ref, scanErr)
		}

		results = append(results, result)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", ref, err)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (batch.RepositoryResult, error) {
	var (
		result   batch.RepositoryResult
		blob     []byte
		codec    string
		size     int
		duration int64
		minedAt  string
	)

	err := row.Scan(&result.Name, &result.Source, &result.Language, &result.WindowSize,
		&result.Branches, &result.Commits, &blob, &codec, &size, &result.Error, &duration, &minedAt)
	if err != nil {
		return batch.RepositoryResult{}, err
	}

	data, err := decompressPayload(blob, codec, size)
	if err != nil {
		return batch.RepositoryResult{}, err
	}

	var scenarios miner.Result

	err = json.Unmarshal(data, &scenarios)
	if err != nil {
		return batch.RepositoryResult{}, fmt.Errorf("decode scenarios: %w", err)
	}

	result.Scenarios = scenarios
	result.Duration = time.Duration(duration)

	result.MinedAt, err = time.Parse(time.RFC3339Nano, minedAt)
	if err != nil {
		return batch.RepositoryResult{}, fmt.Errorf("mined_at: %w", err)
	}

	return result, nil
}

// List returns a summary of every stored repository ordered by name, then
// source.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, source, language, window_size, branches, commits,
			file_chains, merges, cherry_picks, error, mined_at
		FROM repositories ORDER BY name, source`)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			entry   Entry
			minedAt string
		)

		err = rows.Scan(&entry.Name, &entry.Source, &entry.Language, &entry.WindowSize,
			&entry.Branches, &entry.Commits, &entry.FileChains, &entry.Merges, &entry.CherryPicks,
			&entry.Error, &minedAt)
		if err != nil {
			return nil, fmt.Errorf("list repositories: %w", err)
		}

		entry.MinedAt, err = time.Parse(time.RFC3339Nano, minedAt)
		if err != nil {
			return nil, fmt.Errorf("list repositories: mined_at of %s: %w", entry.Source, err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	return entries, nil
}
