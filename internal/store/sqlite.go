package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

// dbFileName is the SQLite file inside the data directory.
const dbFileName = "codescout.db"

// lockFileName guards the data directory against concurrent processes.
const lockFileName = ".codescout.lock"

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open creates the data directory if needed, takes the directory lock,
// opens the database, and applies migrations.
func Open(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, cserr.New(cserr.ErrCodeStoreOpen,
			fmt.Sprintf("failed to create data directory %q", dataDir), err)
	}

	lock := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, cserr.New(cserr.ErrCodeStoreLocked, "failed to acquire data directory lock", err)
	}
	if !locked {
		return nil, cserr.New(cserr.ErrCodeStoreLocked,
			fmt.Sprintf("data directory %q is in use by another process", dataDir), nil)
	}

	db, err := openDatabase(filepath.Join(dataDir, dbFileName))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, cserr.New(cserr.ErrCodeStoreMigration, "failed to apply schema migrations", err)
	}

	return &SQLiteStore{db: db, lock: lock}, nil
}

// openDatabase opens the SQLite file with WAL and foreign keys enabled.
// A single connection sidesteps SQLite's writer contention.
func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, cserr.New(cserr.ErrCodeStoreOpen, "failed to open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cserr.New(cserr.ErrCodeStoreOpen, fmt.Sprintf("failed to apply %q", pragma), err)
		}
	}
	return db, nil
}

// Close releases the database and the data-directory lock.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		if uerr := s.lock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}

const repositoryColumns = `id, location, name, branch, status, message,
	total_files, processed_files, total_lines, truncated, index_ready,
	tool_ready, COALESCE(last_processed_at, ''), created_at, updated_at`

// UpsertRepository registers location or returns the existing record.
func (s *SQLiteStore) UpsertRepository(ctx context.Context, location, name, branch string) (*Repository, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (location, name, branch)
		VALUES (?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET
			name = excluded.name,
			branch = excluded.branch,
			updated_at = CURRENT_TIMESTAMP`,
		location, name, branch)
	if err != nil {
		return nil, storeErr("failed to upsert repository", err)
	}
	return s.GetRepositoryByLocation(ctx, location)
}

// GetRepository fetches a repository by id.
func (s *SQLiteStore) GetRepository(ctx context.Context, id int64) (*Repository, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE id = ?`, id)
	return scanRepository(row)
}

// GetRepositoryByLocation fetches a repository by its location.
func (s *SQLiteStore) GetRepositoryByLocation(ctx context.Context, location string) (*Repository, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE location = ?`, location)
	return scanRepository(row)
}

// ListRepositories returns all registered repositories ordered by name.
func (s *SQLiteStore) ListRepositories(ctx context.Context) ([]*Repository, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+repositoryColumns+` FROM repositories ORDER BY name, location`)
	if err != nil {
		return nil, storeErr("failed to list repositories", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []*Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// UpdateRepositoryStatus persists the current phase and message.
func (s *SQLiteStore) UpdateRepositoryStatus(ctx context.Context, id int64, status, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE repositories
		SET status = ?, message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, message, id)
	if err != nil {
		return storeErr("failed to update repository status", err)
	}
	return requireRowAffected(res)
}

// UpdateRepositoryProgress persists the run counters.
func (s *SQLiteStore) UpdateRepositoryProgress(ctx context.Context, id int64, total, processed int, truncated bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE repositories
		SET total_files = ?, processed_files = ?, truncated = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		total, processed, boolToInt(truncated), id)
	if err != nil {
		return storeErr("failed to update repository progress", err)
	}
	return requireRowAffected(res)
}

// SetRepositoryReady persists the readiness flags, refreshes the aggregate
// line count from the recorded files, and stamps the run time.
func (s *SQLiteStore) SetRepositoryReady(ctx context.Context, id int64, indexReady, toolReady bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE repositories
		SET index_ready = ?,
			tool_ready = ?,
			total_lines = (SELECT COALESCE(SUM(line_count), 0) FROM code_files WHERE repository_id = repositories.id),
			last_processed_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		boolToInt(indexReady), boolToInt(toolReady), id)
	if err != nil {
		return storeErr("failed to update repository readiness", err)
	}
	return requireRowAffected(res)
}

// DeleteRepository removes the repository; files and entities cascade.
func (s *SQLiteStore) DeleteRepository(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id)
	if err != nil {
		return storeErr("failed to delete repository", err)
	}
	return requireRowAffected(res)
}

// GetFile fetches one file record.
func (s *SQLiteStore) GetFile(ctx context.Context, repositoryID int64, path string) (*CodeFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, repository_id, path, fingerprint, language, line_count, entity_count, analyzed, updated_at
		FROM code_files WHERE repository_id = ? AND path = ?`,
		repositoryID, path)
	return scanFile(row)
}

// ListFiles returns all file records of a repository ordered by path.
func (s *SQLiteStore) ListFiles(ctx context.Context, repositoryID int64) ([]*CodeFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repository_id, path, fingerprint, language, line_count, entity_count, analyzed, updated_at
		FROM code_files WHERE repository_id = ? ORDER BY path`,
		repositoryID)
	if err != nil {
		return nil, storeErr("failed to list files", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*CodeFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// UpsertFile inserts or updates the record keyed by (repository, path).
func (s *SQLiteStore) UpsertFile(ctx context.Context, file *CodeFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO code_files (repository_id, path, fingerprint, language, line_count, entity_count, analyzed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository_id, path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			language = excluded.language,
			line_count = excluded.line_count,
			entity_count = excluded.entity_count,
			analyzed = excluded.analyzed,
			updated_at = CURRENT_TIMESTAMP`,
		file.RepositoryID, file.Path, file.Fingerprint, file.Language,
		file.LineCount, file.EntityCount, boolToInt(file.Analyzed))
	if err != nil {
		return storeErr("failed to upsert file", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM code_files WHERE repository_id = ? AND path = ?`,
		file.RepositoryID, file.Path)
	if err := row.Scan(&file.ID); err != nil {
		return storeErr("failed to read back file id", err)
	}
	return nil
}

// MarkFileAnalyzed flips the analyzed flag.
func (s *SQLiteStore) MarkFileAnalyzed(ctx context.Context, fileID int64, analyzed bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE code_files SET analyzed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		boolToInt(analyzed), fileID)
	if err != nil {
		return storeErr("failed to mark file analyzed", err)
	}
	return requireRowAffected(res)
}

// DeleteFile removes a file record; its entity records cascade.
func (s *SQLiteStore) DeleteFile(ctx context.Context, fileID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM code_files WHERE id = ?`, fileID)
	if err != nil {
		return storeErr("failed to delete file", err)
	}
	return requireRowAffected(res)
}

// ReplaceEntities atomically swaps the recorded entity set of a file.
func (s *SQLiteStore) ReplaceEntities(ctx context.Context, fileID int64, entities []*CodeEntity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM code_entities WHERE file_id = ?`, fileID); err != nil {
		return storeErr("failed to clear entity records", err)
	}
	for _, e := range entities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO code_entities (file_id, object_id, kind, name, start_line)
			VALUES (?, ?, ?, ?, ?)`,
			fileID, e.ObjectID, e.Kind, e.Name, e.StartLine); err != nil {
			return storeErr("failed to record entity", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("failed to commit entity records", err)
	}
	return nil
}

// ListFileObjectIDs returns the recorded object identifiers for a file.
func (s *SQLiteStore) ListFileObjectIDs(ctx context.Context, fileID int64) ([]string, error) {
	return s.objectIDs(ctx,
		`SELECT object_id FROM code_entities WHERE file_id = ? ORDER BY object_id`, fileID)
}

// ListRepositoryObjectIDs returns every recorded object identifier of a
// repository.
func (s *SQLiteStore) ListRepositoryObjectIDs(ctx context.Context, repositoryID int64) ([]string, error) {
	return s.objectIDs(ctx, `
		SELECT e.object_id FROM code_entities e
		JOIN code_files f ON f.id = e.file_id
		WHERE f.repository_id = ? ORDER BY e.object_id`, repositoryID)
}

func (s *SQLiteStore) objectIDs(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storeErr("failed to list object ids", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("failed to scan object id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(row scanner) (*Repository, error) {
	var (
		repo                             Repository
		truncated, indexReady, toolReady int
		lastProcessed                    string
		createdAt, updatedAt             time.Time
	)
	err := row.Scan(&repo.ID, &repo.Location, &repo.Name, &repo.Branch,
		&repo.Status, &repo.Message, &repo.TotalFiles, &repo.ProcessedFiles,
		&repo.TotalLines, &truncated, &indexReady, &toolReady,
		&lastProcessed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cserr.New(cserr.ErrCodeNotFound, "repository not found", err)
		}
		return nil, storeErr("failed to scan repository", err)
	}
	repo.Truncated = truncated != 0
	repo.IndexReady = indexReady != 0
	repo.ToolReady = toolReady != 0
	repo.LastProcessedAt = parseTimestamp(lastProcessed)
	repo.CreatedAt = createdAt
	repo.UpdatedAt = updatedAt
	return &repo, nil
}

func scanFile(row scanner) (*CodeFile, error) {
	var (
		file     CodeFile
		analyzed int
	)
	err := row.Scan(&file.ID, &file.RepositoryID, &file.Path, &file.Fingerprint,
		&file.Language, &file.LineCount, &file.EntityCount, &analyzed, &file.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cserr.New(cserr.ErrCodeNotFound, "file not found", err)
		}
		return nil, storeErr("failed to scan file", err)
	}
	file.Analyzed = analyzed != 0
	return &file, nil
}

// parseTimestamp parses SQLite's CURRENT_TIMESTAMP text form. Empty or
// unparseable values yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// requireRowAffected converts a zero-row update into ErrNotFound.
func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("failed to read affected rows", err)
	}
	if n == 0 {
		return cserr.New(cserr.ErrCodeNotFound, "record not found", nil)
	}
	return nil
}

func storeErr(msg string, err error) error {
	return cserr.New(cserr.ErrCodeStoreQuery, msg, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
