package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: is a separate database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

func (s *SQLiteStore) dsn() string {
	params := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if s.cfg.Path != MemoryPath {
		params = append(params, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)", "_txlock=immediate")
	}
	return s.cfg.Path + "?" + strings.Join(params, "&")
}

// Init opens the database connection and applies connection PRAGMAs.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMeta returns a meta value, or ErrNotFound.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta inserts or replaces a meta value.
func (s *SQLiteStore) SetMeta(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}

// CreateOrganization creates a new organization record
func (s *SQLiteStore) CreateOrganization(ctx context.Context, org *Organization) error {
	query := `
		INSERT INTO organizations (id, name, revision_date, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		org.ID,
		org.Name,
		formatTime(org.RevisionDate),
		formatTime(org.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID
func (s *SQLiteStore) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	query := `SELECT id, name, revision_date, created_at FROM organizations WHERE id = ?`

	org := &Organization{}
	var revision, created string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&org.ID, &org.Name, &revision, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if org.RevisionDate, err = parseTime(revision); err != nil {
		return nil, err
	}
	if org.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrganizationRevision returns the time secrets of the organization last changed.
func (s *SQLiteStore) GetOrganizationRevision(ctx context.Context, id uuid.UUID) (time.Time, error) {
	var revision string
	err := s.db.QueryRowContext(ctx, `SELECT revision_date FROM organizations WHERE id = ?`, id).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get organization revision: %w", err)
	}
	return parseTime(revision)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func touchOrganization(ctx context.Context, db execer, id uuid.UUID, at time.Time) error {
	result, err := db.ExecContext(ctx, `UPDATE organizations SET revision_date = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to touch organization: %w", err)
	}
	return expectOne(result, "organization", id)
}

// CreateAccessToken stores a new access token
func (s *SQLiteStore) CreateAccessToken(ctx context.Context, token *AccessToken) error {
	query := `
		INSERT INTO access_tokens (id, organization_id, name, secret_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.OrganizationID,
		token.Name,
		token.SecretHash,
		formatNullTime(token.ExpiresAt),
		formatTime(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

// GetAccessToken retrieves an access token by ID
func (s *SQLiteStore) GetAccessToken(ctx context.Context, id uuid.UUID) (*AccessToken, error) {
	query := `
		SELECT id, organization_id, name, secret_hash, expires_at, created_at
		FROM access_tokens
		WHERE id = ?
	`

	token := &AccessToken{}
	var expires sql.NullString
	var created string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&token.ID,
		&token.OrganizationID,
		&token.Name,
		&token.SecretHash,
		&expires,
		&created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("access token %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	if token.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if expires.Valid {
		t, err := parseTime(expires.String)
		if err != nil {
			return nil, err
		}
		token.ExpiresAt = &t
	}
	return token, nil
}

// CreateProject creates a new project record
func (s *SQLiteStore) CreateProject(ctx context.Context, project *Project) error {
	query := `
		INSERT INTO projects (id, organization_id, name, created_at, revision_date)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		project.ID,
		project.OrganizationID,
		project.Name,
		formatTime(project.CreatedAt),
		formatTime(project.RevisionDate),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

const projectColumns = `id, organization_id, name, created_at, revision_date`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	p := &Project{}
	var created, revision string
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &created, &revision); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.RevisionDate, err = parseTime(revision); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject retrieves a project by ID
func (s *SQLiteStore) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects lists the projects of an organization ordered by name.
func (s *SQLiteStore) ListProjects(ctx context.Context, organizationID uuid.UUID) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE organization_id = ? ORDER BY name, id`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// UpdateProject renames a project and sets its revision date.
func (s *SQLiteStore) UpdateProject(ctx context.Context, project *Project) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, revision_date = ? WHERE id = ?`,
		project.Name,
		formatTime(project.RevisionDate),
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return expectOne(result, "project", project.ID)
}

// DeleteProject deletes a project. Its secrets are kept and lose their
// project; when any were attached their revision and the organization
// revision move to at.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var orgID uuid.UUID
		err := tx.QueryRowContext(ctx, `SELECT organization_id FROM projects WHERE id = ?`, id).Scan(&orgID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE secrets SET project_id = NULL, revision_date = ? WHERE project_id = ?`,
			formatTime(at), id)
		if err != nil {
			return fmt.Errorf("failed to detach secrets: %w", err)
		}
		detached, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to detach secrets: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		if detached == 0 {
			return nil
		}
		return touchOrganization(ctx, tx, orgID, at)
	})
}

// CreateSecret creates a secret and bumps the organization revision.
func (s *SQLiteStore) CreateSecret(ctx context.Context, secret *Secret) error {
	query := `
		INSERT INTO secrets (id, organization_id, project_id, key, value, note, created_at, revision_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			secret.ID,
			secret.OrganizationID,
			secret.ProjectID,
			secret.Key,
			secret.Value,
			secret.Note,
			formatTime(secret.CreatedAt),
			formatTime(secret.RevisionDate),
		)
		if err != nil {
			return fmt.Errorf("failed to create secret: %w", err)
		}
		return touchOrganization(ctx, tx, secret.OrganizationID, secret.RevisionDate)
	})
}

const secretColumns = `id, organization_id, project_id, key, value, note, created_at, revision_date`

func scanSecret(row interface{ Scan(...any) error }) (*Secret, error) {
	sec := &Secret{}
	var created, revision string
	err := row.Scan(
		&sec.ID,
		&sec.OrganizationID,
		&sec.ProjectID,
		&sec.Key,
		&sec.Value,
		&sec.Note,
		&created,
		&revision,
	)
	if err != nil {
		return nil, err
	}
	if sec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if sec.RevisionDate, err = parseTime(revision); err != nil {
		return nil, err
	}
	return sec, nil
}

// GetSecret retrieves a secret by ID
func (s *SQLiteStore) GetSecret(ctx context.Context, id uuid.UUID) (*Secret, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+secretColumns+` FROM secrets WHERE id = ?`, id)
	sec, err := scanSecret(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("secret %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	return sec, nil
}

// ListSecrets lists the secrets of an organization ordered by key.
func (s *SQLiteStore) ListSecrets(ctx context.Context, organizationID uuid.UUID) ([]*Secret, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+secretColumns+` FROM secrets WHERE organization_id = ? ORDER BY key, id`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	defer rows.Close()

	var secrets []*Secret
	for rows.Next() {
		sec, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		secrets = append(secrets, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating secrets: %w", err)
	}
	return secrets, nil
}

// UpdateSecret replaces a secret's contents and bumps the organization revision.
func (s *SQLiteStore) UpdateSecret(ctx context.Context, secret *Secret) error {
	query := `
		UPDATE secrets
		SET project_id = ?, key = ?, value = ?, note = ?, revision_date = ?
		WHERE id = ? AND organization_id = ?
	`
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			secret.ProjectID,
			secret.Key,
			secret.Value,
			secret.Note,
			formatTime(secret.RevisionDate),
			secret.ID,
			secret.OrganizationID,
		)
		if err != nil {
			return fmt.Errorf("failed to update secret: %w", err)
		}
		if err := expectOne(result, "secret", secret.ID); err != nil {
			return err
		}
		return touchOrganization(ctx, tx, secret.OrganizationID, secret.RevisionDate)
	})
}

// DeleteSecret deletes a secret and sets its organization's revision to at.
func (s *SQLiteStore) DeleteSecret(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var orgID uuid.UUID
		err := tx.QueryRowContext(ctx, `SELECT organization_id FROM secrets WHERE id = ?`, id).Scan(&orgID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("secret %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to delete secret: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete secret: %w", err)
		}
		return touchOrganization(ctx, tx, orgID, at)
	})
}

// CreateAuditEntry appends an entry to the audit trail
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit (event_id, type, organization_id, actor_id, resource_id, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		entry.EventID,
		entry.Type,
		entry.OrganizationID,
		entry.ActorID,
		entry.ResourceID,
		entry.Message,
		formatTime(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}
	entry.ID = id
	return nil
}

// ListAuditEntries returns audit entries, newest first.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	query := `
		SELECT id, event_id, type, organization_id, actor_id, resource_id, message, timestamp
		FROM audit
		WHERE 1=1
	`
	var args []any
	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, *filter.Type)
	}
	if filter.OrganizationID != nil {
		query += " AND organization_id = ?"
		args = append(args, *filter.OrganizationID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		var ts string
		err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.Type,
			&entry.OrganizationID,
			&entry.ActorID,
			&entry.ResourceID,
			&entry.Message,
			&ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if entry.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	return nil
}

func expectOne(result sql.Result, what string, id uuid.UUID) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

// Times are stored as RFC 3339 text in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}
