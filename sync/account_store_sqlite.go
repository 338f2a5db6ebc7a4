package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteAccountsSchema = `
CREATE TABLE IF NOT EXISTS sync_accounts (
	hub_id            TEXT PRIMARY KEY,
	access_token      TEXT NOT NULL DEFAULT '',
	refresh_token     TEXT NOT NULL DEFAULT '',
	expires_at        INTEGER NOT NULL DEFAULT 0,
	last_pulled_dates TEXT NOT NULL DEFAULT '{}',
	updated_at        INTEGER NOT NULL DEFAULT 0
)`

// SQLiteAccountStore persists accounts in a SQLite database.
type SQLiteAccountStore struct {
	db *sql.DB
}

func OpenSQLiteAccountStore(path string) (*SQLiteAccountStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open account database %w", err)
	}
	if _, err := db.Exec(sqliteAccountsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create accounts table %w", err)
	}
	return &SQLiteAccountStore{db: db}, nil
}

func (s *SQLiteAccountStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteAccountStore) Accounts(ctx context.Context) ([]*SyncAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hub_id, access_token, refresh_token, expires_at, last_pulled_dates
		FROM sync_accounts ORDER BY hub_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts %w", err)
	}
	defer rows.Close()

	var result []*SyncAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *SQLiteAccountStore) Account(ctx context.Context, hubID string) (*SyncAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT hub_id, access_token, refresh_token, expires_at, last_pulled_dates
		FROM sync_accounts WHERE hub_id = ?`, hubID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

func (s *SQLiteAccountStore) SaveAccount(ctx context.Context, account *SyncAccount) error {
	dates := make(map[string]int64, len(account.LastPulledDates))
	for entity, t := range account.LastPulledDates {
		dates[string(entity)] = t.UnixMilli()
	}
	datesJSON, err := json.Marshal(dates)
	if err != nil {
		return err
	}
	var expiresAt int64
	if !account.ExpiresAt.IsZero() {
		expiresAt = account.ExpiresAt.UnixMilli()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_accounts (hub_id, access_token, refresh_token, expires_at, last_pulled_dates, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hub_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			last_pulled_dates = excluded.last_pulled_dates,
			updated_at = excluded.updated_at`,
		account.HubID, account.AccessToken, account.RefreshToken, expiresAt, string(datesJSON), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save account %s %w", account.HubID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*SyncAccount, error) {
	var (
		a         SyncAccount
		expiresAt int64
		datesJSON string
	)
	if err := row.Scan(&a.HubID, &a.AccessToken, &a.RefreshToken, &expiresAt, &datesJSON); err != nil {
		return nil, err
	}
	if expiresAt > 0 {
		a.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	}
	dates := make(map[string]int64)
	if err := json.Unmarshal([]byte(datesJSON), &dates); err != nil {
		return nil, fmt.Errorf("failed to read last pulled dates of account %s %w", a.HubID, err)
	}
	a.LastPulledDates = make(map[EntityType]time.Time, len(dates))
	for k, v := range dates {
		entity, err := ParseEntityType(k)
		if err != nil {
			continue
		}
		a.LastPulledDates[entity] = time.UnixMilli(v).UTC()
	}
	return &a, nil
}
