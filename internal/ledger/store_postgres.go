package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists attempts in the login_attempts table. Appends are
// independent rows, so concurrent writers never contend beyond the index.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, attempt Attempt) error {
	query := `
		INSERT INTO login_attempts (id, phone, ip, fingerprint, user_agent, success, reason, risk_score, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.Phone,
		attempt.IP,
		attempt.Fingerprint,
		attempt.UserAgent,
		attempt.Success,
		string(attempt.Reason),
		attempt.RiskScore,
		attempt.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentFor(ctx context.Context, phone string, since time.Time, limit int) ([]Attempt, error) {
	query := `
		SELECT id, phone, ip, fingerprint, user_agent, success, reason, risk_score, occurred_at
		FROM login_attempts
		WHERE phone = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, phone, since, limit)
	if err != nil {
		return nil, fmt.Errorf("read attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var attempt Attempt
		var reason string
		if err := rows.Scan(
			&attempt.ID,
			&attempt.Phone,
			&attempt.IP,
			&attempt.Fingerprint,
			&attempt.UserAgent,
			&attempt.Success,
			&reason,
			&attempt.RiskScore,
			&attempt.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempt.Reason = Reason(reason)
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge attempts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return int(rows), nil
}
