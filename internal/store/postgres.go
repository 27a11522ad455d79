package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/vince/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Applications ---

const applicationColumns = `a.id, a.name, a.prefix_label, a.key_prefix, a.client_secret,
	a.default_template::text, a.created_at, a.updated_at`

func scanApplication(row pgx.Row, extra ...any) (*models.Application, error) {
	var a models.Application
	var template string
	dest := append([]any{&a.ID, &a.Name, &a.PrefixLabel, &a.KeyPrefix, &a.ClientSecret,
		&template, &a.CreatedAt, &a.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	a.DefaultTemplate = json.RawMessage(template)
	return &a, nil
}

func (s *PostgresStore) CreateApplication(ctx context.Context, app *models.Application) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO applications (id, name, prefix_label, key_prefix, client_secret, default_template, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`,
		app.ID, app.Name, app.PrefixLabel, app.KeyPrefix, app.ClientSecret,
		templateText(app.DefaultTemplate), app.CreatedAt, app.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var count int
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+`,
		   (SELECT COUNT(*) FROM api_keys k WHERE k.application_id = a.id)
		 FROM applications a WHERE a.id = $1`, id), &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	app.KeyCount = count
	return app, nil
}

func (s *PostgresStore) GetApplicationByName(ctx context.Context, name string) (*models.Application, error) {
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications a WHERE a.name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application by name: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) ListApplications(ctx context.Context) ([]*models.Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+applicationColumns+`,
		   (SELECT COUNT(*) FROM api_keys k WHERE k.application_id = a.id)
		 FROM applications a ORDER BY a.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		var count int
		app, err := scanApplication(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		app.KeyCount = count
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *PostgresStore) UpdateApplicationKeyPrefix(ctx context.Context, id uuid.UUID, keyPrefix string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE applications SET key_prefix = $2, updated_at = $3 WHERE id = $1`,
		id, keyPrefix, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update application key prefix: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateClientSecret(ctx context.Context, id uuid.UUID, clientSecret string) (*models.Application, error) {
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`UPDATE applications a SET client_secret = $2, updated_at = $3 WHERE a.id = $1
		 RETURNING `+applicationColumns,
		id, clientSecret, time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update client secret: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) DeleteApplication(ctx context.Context, id uuid.UUID) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin delete application: %w", err)
	}
	defer tx.Rollback(ctx)

	keys, err := tx.Exec(ctx, `DELETE FROM api_keys WHERE application_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete application keys: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit delete application: %w", err)
	}
	return int(keys.RowsAffected()), nil
}

// --- API Keys ---

const apiKeyColumns = `k.id, k.application_id, k.key_hash, k.key_preview, k.metadata, k.created_at, k.updated_at`

func scanAPIKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	if err := row.Scan(&k.ID, &k.ApplicationID, &k.KeyHash, &k.KeyPreview, &k.Metadata,
		&k.CreatedAt, &k.UpdatedAt); err != nil {
		return nil, err
	}
	return &k, nil
}

func scanAPIKeyWithApplication(row pgx.Row) (*models.APIKeyWithApplication, error) {
	var k models.APIKeyWithApplication
	if err := row.Scan(&k.ID, &k.ApplicationID, &k.KeyHash, &k.KeyPreview, &k.Metadata,
		&k.CreatedAt, &k.UpdatedAt, &k.ApplicationName, &k.KeyPrefix, &k.ClientSecret); err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, application_id, key_hash, key_preview, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.ApplicationID, key.KeyHash, key.KeyPreview, key.Metadata, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return ErrNotFound
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKey(ctx context.Context, id uuid.UUID) (*models.APIKeyWithApplication, error) {
	k, err := scanAPIKeyWithApplication(s.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+`, a.name, a.key_prefix, a.client_secret
		 FROM api_keys k JOIN applications a ON a.id = k.application_id
		 WHERE k.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

func (s *PostgresStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKeyWithApplication, error) {
	k, err := scanAPIKeyWithApplication(s.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+`, a.name, a.key_prefix, a.client_secret
		 FROM api_keys k JOIN applications a ON a.id = k.application_id
		 WHERE k.key_hash = $1`, keyHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return k, nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, applicationID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys k
		 WHERE k.application_id = $1 ORDER BY k.created_at DESC`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyCredential(ctx context.Context, id uuid.UUID, keyHash, keyPreview string) (*models.APIKey, error) {
	k, err := scanAPIKey(s.pool.QueryRow(ctx,
		`UPDATE api_keys k SET key_hash = $2, key_preview = $3, updated_at = $4
		 WHERE k.id = $1 RETURNING `+apiKeyColumns,
		id, keyHash, keyPreview, time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("update api key credential: %w", err)
	}
	return k, nil
}

func (s *PostgresStore) DeleteAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Admin Sessions ---

func (s *PostgresStore) CreateSession(ctx context.Context, session *models.AdminSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO admin_sessions (session_id, expires_at, created_at) VALUES ($1, $2, $3)`,
		session.SessionID, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*models.AdminSession, error) {
	var sess models.AdminSession
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, expires_at, created_at FROM admin_sessions WHERE session_id = $1`, sessionID,
	).Scan(&sess.SessionID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM admin_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM admin_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Service Credential ---

func (s *PostgresStore) GetServiceCredential(ctx context.Context) (*models.ServiceCredential, error) {
	var c models.ServiceCredential
	err := s.pool.QueryRow(ctx,
		`SELECT version, key_hash, preview, created_at FROM service_credentials
		 ORDER BY version DESC LIMIT 1`,
	).Scan(&c.Version, &c.KeyHash, &c.Preview, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service credential: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) PutServiceCredential(ctx context.Context, keyHash, preview string) (*models.ServiceCredential, error) {
	var c models.ServiceCredential
	err := s.pool.QueryRow(ctx,
		`INSERT INTO service_credentials (key_hash, preview, created_at) VALUES ($1, $2, $3)
		 RETURNING version, key_hash, preview, created_at`,
		keyHash, preview, time.Now().UTC(),
	).Scan(&c.Version, &c.KeyHash, &c.Preview, &c.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("put service credential: %w", err)
	}
	return &c, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}

func templateText(t json.RawMessage) string {
	if len(t) == 0 {
		return "{}"
	}
	return string(t)
}
