package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type dedupRepository struct {
	db *sql.DB
}

// NewEventDedupRepository создаёт PostgreSQL-реализацию EventDedupRepository.
func NewEventDedupRepository(store *Store) domain.EventDedupRepository {
	return &dedupRepository{db: store.DB()}
}

func (r *dedupRepository) Seen(eventID string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var outcome string
	err := r.db.QueryRowContext(ctx, `
		SELECT outcome FROM processed_events WHERE event_id = $1
	`, eventID).Scan(&outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select processed event: %w", err)
	}

	return outcome, true, nil
}

func (r *dedupRepository) Record(eventID, outcome string, ttlAt time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if ttlAt.IsZero() {
		ttlAt = time.Now().UTC().Add(24 * time.Hour)
	}

	// Повторная запись одного event_id не ошибка: первый исход сохраняется.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, outcome, ttl_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, outcome, ttlAt)
	if err != nil {
		return fmt.Errorf("record processed event: %w", err)
	}

	return nil
}

func (r *dedupRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)

	if limit > 0 {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM processed_events
			WHERE event_id IN (
				SELECT event_id
				FROM processed_events
				WHERE ttl_at <= $1
				ORDER BY ttl_at ASC
				LIMIT $2
			)
		`, before, limit)
	} else {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM processed_events
			WHERE ttl_at <= $1
		`, before)
	}
	if err != nil {
		return 0, fmt.Errorf("delete expired processed events: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("processed events rows affected: %w", err)
	}

	return int(affected), nil
}

var _ domain.EventDedupRepository = (*dedupRepository)(nil)
