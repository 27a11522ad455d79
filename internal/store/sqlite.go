package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/kiranshivaraju/vince/pkg/models"
)

// SQLiteStore implements the Store interface on an embedded SQLite database.
// It suits single-instance deployments and tests; the schema is applied on
// open.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (and creates if needed) the SQLite database at dsn.
// Pass ":memory:" for a throwaway database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS applications (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			prefix_label TEXT NOT NULL,
			key_prefix TEXT NOT NULL,
			client_secret TEXT NOT NULL,
			default_template TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			key_hash TEXT UNIQUE NOT NULL,
			key_preview TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_api_keys_application_id ON api_keys(application_id)`,

		`CREATE TABLE IF NOT EXISTS admin_sessions (
			session_id TEXT PRIMARY KEY,
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS service_credentials (
			version INTEGER PRIMARY KEY AUTOINCREMENT,
			key_hash TEXT UNIQUE NOT NULL,
			preview TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Applications ---

// applicationRow maps the applications columns; default_template is TEXT in
// SQLite and cannot be scanned into json.RawMessage directly.
type applicationRow struct {
	ID              uuid.UUID `db:"id"`
	Name            string    `db:"name"`
	PrefixLabel     string    `db:"prefix_label"`
	KeyPrefix       string    `db:"key_prefix"`
	ClientSecret    string    `db:"client_secret"`
	DefaultTemplate string    `db:"default_template"`
	KeyCount        int       `db:"key_count"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r applicationRow) toModel() *models.Application {
	return &models.Application{
		ID:              r.ID,
		Name:            r.Name,
		PrefixLabel:     r.PrefixLabel,
		KeyPrefix:       r.KeyPrefix,
		ClientSecret:    r.ClientSecret,
		DefaultTemplate: json.RawMessage(r.DefaultTemplate),
		KeyCount:        r.KeyCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

const sqliteApplicationSelect = `SELECT a.*,
	(SELECT COUNT(*) FROM api_keys k WHERE k.application_id = a.id) AS key_count
	FROM applications a`

func (s *SQLiteStore) CreateApplication(ctx context.Context, app *models.Application) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO applications (id, name, prefix_label, key_prefix, client_secret, default_template, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.Name, app.PrefixLabel, app.KeyPrefix, app.ClientSecret,
		templateText(app.DefaultTemplate), app.CreatedAt.UTC(), app.UpdatedAt.UTC())
	if err != nil {
		if isSQLiteUniqueError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var row applicationRow
	if err := s.db.GetContext(ctx, &row, sqliteApplicationSelect+" WHERE a.id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) GetApplicationByName(ctx context.Context, name string) (*models.Application, error) {
	var row applicationRow
	if err := s.db.GetContext(ctx, &row, sqliteApplicationSelect+" WHERE a.name = ?", name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get application by name: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) ListApplications(ctx context.Context) ([]*models.Application, error) {
	var rows []applicationRow
	if err := s.db.SelectContext(ctx, &rows, sqliteApplicationSelect+" ORDER BY a.created_at DESC"); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	apps := make([]*models.Application, len(rows))
	for i, r := range rows {
		apps[i] = r.toModel()
	}
	return apps, nil
}

func (s *SQLiteStore) UpdateApplicationKeyPrefix(ctx context.Context, id uuid.UUID, keyPrefix string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE applications SET key_prefix = ?, updated_at = ? WHERE id = ?`,
		keyPrefix, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update application key prefix: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) UpdateClientSecret(ctx context.Context, id uuid.UUID, clientSecret string) (*models.Application, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE applications SET client_secret = ?, updated_at = ? WHERE id = ?`,
		clientSecret, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update client secret: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetApplication(ctx, id)
}

func (s *SQLiteStore) DeleteApplication(ctx context.Context, id uuid.UUID) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete application: %w", err)
	}
	defer tx.Rollback()

	keys, err := tx.ExecContext(ctx, `DELETE FROM api_keys WHERE application_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete application keys: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete application: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return 0, err
	}
	removed, err := keys.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted keys: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete application: %w", err)
	}
	return int(removed), nil
}

// --- API Keys ---

const sqliteAPIKeyJoinSelect = `SELECT k.*, a.name AS application_name, a.key_prefix, a.client_secret
	FROM api_keys k JOIN applications a ON a.id = k.application_id`

func (s *SQLiteStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, application_id, key_hash, key_preview, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.ApplicationID, key.KeyHash, key.KeyPreview, key.Metadata,
		key.CreatedAt.UTC(), key.UpdatedAt.UTC())
	if err != nil {
		if isSQLiteUniqueError(err) {
			return ErrDuplicateKey
		}
		if isSQLiteForeignKeyError(err) {
			return ErrNotFound
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAPIKey(ctx context.Context, id uuid.UUID) (*models.APIKeyWithApplication, error) {
	var k models.APIKeyWithApplication
	if err := s.db.GetContext(ctx, &k, sqliteAPIKeyJoinSelect+" WHERE k.id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &k, nil
}

func (s *SQLiteStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKeyWithApplication, error) {
	var k models.APIKeyWithApplication
	if err := s.db.GetContext(ctx, &k, sqliteAPIKeyJoinSelect+" WHERE k.key_hash = ?", keyHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &k, nil
}

func (s *SQLiteStore) ListAPIKeys(ctx context.Context, applicationID uuid.UUID) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	if err := s.db.SelectContext(ctx, &keys,
		`SELECT * FROM api_keys WHERE application_id = ? ORDER BY created_at DESC`, applicationID); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

func (s *SQLiteStore) UpdateAPIKeyCredential(ctx context.Context, id uuid.UUID, keyHash, keyPreview string) (*models.APIKey, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET key_hash = ?, key_preview = ?, updated_at = ? WHERE id = ?`,
		keyHash, keyPreview, time.Now().UTC(), id)
	if err != nil {
		if isSQLiteUniqueError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("update api key credential: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	var k models.APIKey
	if err := s.db.GetContext(ctx, &k, `SELECT * FROM api_keys WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("reload api key: %w", err)
	}
	return &k, nil
}

func (s *SQLiteStore) DeleteAPIKey(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return requireAffected(res)
}

// --- Admin Sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.AdminSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_sessions (session_id, expires_at, created_at) VALUES (?, ?, ?)`,
		session.SessionID, session.ExpiresAt.UTC(), session.CreatedAt.UTC())
	if err != nil {
		if isSQLiteUniqueError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.AdminSession, error) {
	var sess models.AdminSession
	if err := s.db.GetContext(ctx, &sess, `SELECT * FROM admin_sessions WHERE session_id = ?`, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// --- Service Credential ---

func (s *SQLiteStore) GetServiceCredential(ctx context.Context) (*models.ServiceCredential, error) {
	var c models.ServiceCredential
	if err := s.db.GetContext(ctx, &c,
		`SELECT * FROM service_credentials ORDER BY version DESC LIMIT 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get service credential: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) PutServiceCredential(ctx context.Context, keyHash, preview string) (*models.ServiceCredential, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO service_credentials (key_hash, preview, created_at) VALUES (?, ?, ?)`,
		keyHash, preview, now)
	if err != nil {
		if isSQLiteUniqueError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("put service credential: %w", err)
	}
	version, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get service credential version: %w", err)
	}
	return &models.ServiceCredential{Version: version, KeyHash: keyHash, Preview: preview, CreatedAt: now}, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isSQLiteUniqueError(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isSQLiteForeignKeyError(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
