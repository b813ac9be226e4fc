package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// PostgresStore persists identities in PostgreSQL. The failure-counter
// methods rely on single-statement UPDATE ... RETURNING so racing logins
// for one phone serialize inside the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record Identity) error {
	query := `
		INSERT INTO identities (id, phone, mpin_hash, mpin_salt, failed_attempts, locked_until, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Phone,
		record.MPINHash,
		record.MPINSalt,
		record.FailedAttempts,
		record.LockedUntil,
		record.CreatedAt,
		record.LastLoginAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create identity: %w", err)
	}

	for _, binding := range record.Devices {
		if err := s.SaveBinding(ctx, record.Phone, binding); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (Identity, error) {
	query := `
		SELECT id, phone, mpin_hash, mpin_salt, failed_attempts, locked_until, created_at, last_login_at
		FROM identities
		WHERE phone = $1
	`
	var record Identity
	err := s.db.QueryRowContext(ctx, query, phone).Scan(
		&record.ID,
		&record.Phone,
		&record.MPINHash,
		&record.MPINSalt,
		&record.FailedAttempts,
		&record.LockedUntil,
		&record.CreatedAt,
		&record.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("find identity: %w", err)
	}

	devices, err := s.bindingsFor(ctx, phone)
	if err != nil {
		return Identity{}, err
	}
	record.Devices = devices
	return record, nil
}

func (s *PostgresStore) RecordFailure(ctx context.Context, phone string) (int, *time.Time, error) {
	query := `
		UPDATE identities
		SET failed_attempts = failed_attempts + 1
		WHERE phone = $1
		RETURNING failed_attempts, locked_until
	`
	var count int
	var lockedUntil *time.Time
	err := s.db.QueryRowContext(ctx, query, phone).Scan(&count, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, fmt.Errorf("record failure: %w", err)
	}
	return count, lockedUntil, nil
}

func (s *PostgresStore) ApplyLock(ctx context.Context, phone string, until time.Time, threshold int) (time.Time, bool, error) {
	query := `
		UPDATE identities
		SET failed_attempts = 0, locked_until = $2
		WHERE phone = $1 AND failed_attempts >= $3
	`
	result, err := s.db.ExecContext(ctx, query, phone, until, threshold)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("apply lock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("apply lock rows affected: %w", err)
	}
	if rows > 0 {
		return until, true, nil
	}

	// Lost the race: the winner's UPDATE already committed, so read back
	// the lock it stored.
	var stored *time.Time
	err = s.db.QueryRowContext(ctx,
		`SELECT locked_until FROM identities WHERE phone = $1`, phone,
	).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, ErrNotFound
		}
		return time.Time{}, false, fmt.Errorf("apply lock readback: %w", err)
	}
	if stored == nil {
		return time.Time{}, false, nil
	}
	return *stored, false, nil
}

func (s *PostgresStore) ClearFailures(ctx context.Context, phone string, loginAt time.Time) error {
	query := `
		UPDATE identities
		SET failed_attempts = 0, locked_until = NULL, last_login_at = $2
		WHERE phone = $1
	`
	result, err := s.db.ExecContext(ctx, query, phone, loginAt)
	if err != nil {
		return fmt.Errorf("clear failures: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear failures rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveBinding(ctx context.Context, phone string, binding DeviceBinding) error {
	query := `
		INSERT INTO device_bindings (phone, fingerprint, last_user_agent, last_used_at, trusted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone, fingerprint) DO UPDATE SET
			last_user_agent = EXCLUDED.last_user_agent,
			last_used_at = EXCLUDED.last_used_at
	`
	_, err := s.db.ExecContext(ctx, query,
		phone,
		binding.Fingerprint,
		binding.LastUserAgent,
		binding.LastUsedAt,
		binding.Trusted,
	)
	if err != nil {
		return fmt.Errorf("save device binding: %w", err)
	}
	return nil
}

func (s *PostgresStore) bindingsFor(ctx context.Context, phone string) ([]DeviceBinding, error) {
	query := `
		SELECT fingerprint, last_user_agent, last_used_at, trusted
		FROM device_bindings
		WHERE phone = $1
		ORDER BY last_used_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, phone)
	if err != nil {
		return nil, fmt.Errorf("list device bindings: %w", err)
	}
	defer rows.Close()

	var devices []DeviceBinding
	for rows.Next() {
		var binding DeviceBinding
		if err := rows.Scan(&binding.Fingerprint, &binding.LastUserAgent, &binding.LastUsedAt, &binding.Trusted); err != nil {
			return nil, fmt.Errorf("scan device binding: %w", err)
		}
		devices = append(devices, binding)
	}
	return devices, rows.Err()
}
