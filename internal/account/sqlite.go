package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/unimail/unimail/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite
// database for account records and a CredentialSource for passwords.
type SQLiteStore struct {
	db    *sqlx.DB
	creds CredentialSource
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations. Passwords
// are resolved through creds; a nil creds leaves passwords empty.
func NewSQLiteStore(dbPath string, creds CredentialSource) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, creds: creds}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// GetAccount loads a single account and fills in its password from the
// credential source. A missing credential is not an error: the account
// is returned with an empty password and the connection test will fail
// in a user-visible way instead.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM accounts WHERE id = ?", id)

	acct, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("loading account %s: %w", id, err)
	}

	if s.creds != nil {
		if password, err := s.creds.Get(credentialKey(id)); err == nil {
			acct.Password = password
		}
	}

	return acct, nil
}

// ListAccounts retrieves all account records ordered by email address.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM accounts ORDER BY email")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}

	return accounts, rows.Err()
}

// UpsertAccount inserts or replaces an account record and returns its
// ID. If the account has no ID, a new UUID is generated.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, acct model.Account) (string, error) {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO accounts (
			id, email, imap_host, imap_port, username,
			use_tls, enabled, poll_interval_sec, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.Email, acct.IMAPHost, acct.IMAPPort, acct.Username,
		boolToInt(acct.UseTLS), boolToInt(acct.Enabled), acct.PollIntervalSec,
		acct.CreatedAt, now,
	)
	if err != nil {
		return "", fmt.Errorf("upserting account %s: %w", acct.ID, err)
	}

	return acct.ID, nil
}

// DeleteAccount removes an account by ID.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	return nil
}

// credentialKey is the credential store key for an account's password.
func credentialKey(accountID string) string {
	return "account:" + accountID
}

// scanAccount scans an account row from a sqlx.Rows result set.
func scanAccount(rows *sqlx.Rows) (model.Account, error) {
	var (
		acct      model.Account
		useTLS    int
		enabled   int
		createdAt time.Time
		updatedAt time.Time
	)

	err := rows.Scan(
		&acct.ID, &acct.Email, &acct.IMAPHost, &acct.IMAPPort,
		&acct.Username, &useTLS, &enabled, &acct.PollIntervalSec,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return model.Account{}, fmt.Errorf("scanning account row: %w", err)
	}

	acct.UseTLS = useTLS != 0
	acct.Enabled = enabled != 0
	acct.CreatedAt = createdAt
	acct.UpdatedAt = updatedAt

	return acct, nil
}

// scanAccountRow scans a single account row from a sqlx.Row.
func scanAccountRow(row *sqlx.Row) (*model.Account, error) {
	var (
		acct      model.Account
		useTLS    int
		enabled   int
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&acct.ID, &acct.Email, &acct.IMAPHost, &acct.IMAPPort,
		&acct.Username, &useTLS, &enabled, &acct.PollIntervalSec,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	acct.UseTLS = useTLS != 0
	acct.Enabled = enabled != 0
	acct.CreatedAt = createdAt
	acct.UpdatedAt = updatedAt

	return &acct, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
