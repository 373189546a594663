package memory

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type outboxRepo struct {
	s *Store
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его идентификатор.
func (r *outboxRepo) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.s.outbox[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    "pending",
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending`, старые первыми.
func (r *outboxRepo) PullPending(limit int) ([]domain.OutboxMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	pending := r.pendingSorted()
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// pendingSorted собирает все pending-сообщения, старые первыми.
// Вызывающий держит блокировку.
func (r *outboxRepo) pendingSorted() []domain.OutboxMessage {
	pending := make([]*outboxRecord, 0)
	for _, rec := range r.s.outbox {
		if rec.status == "pending" {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].createdAt.Equal(pending[j].createdAt) {
			return pending[i].createdAt.Before(pending[j].createdAt)
		}
		return pending[i].msg.ID < pending[j].msg.ID
	})

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result
}

// Stats возвращает размер backlog и возраст самой старой pending-записи.
func (r *outboxRepo) Stats() (domain.OutboxStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var stats domain.OutboxStats
	for _, rec := range r.s.outbox {
		if rec.status != "pending" {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepo) MarkSent(id string) error {
	return r.markStatus(id, "sent")
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepo) MarkFailed(id string) error {
	return r.markStatus(id, "failed")
}

func (r *outboxRepo) markStatus(id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	rec.status = status
	rec.attempts++
	rec.updatedAt = time.Now().UTC()
	return nil
}

// AllPending возвращает копию всех pending-сообщений без ограничения размера
// (используется в тестах).
func (r *outboxRepo) AllPending() []domain.OutboxMessage {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.pendingSorted()
}

var _ domain.OutboxRepository = (*outboxRepo)(nil)

type dedupRepo struct {
	s *Store
}

// Seen возвращает записанный исход события, если оно уже обрабатывалось.
func (r *dedupRepo) Seen(eventID string) (string, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.processed[eventID]
	if !ok {
		return "", false, nil
	}
	return rec.outcome, true, nil
}

// Record фиксирует исход обработки события с TTL.
func (r *dedupRepo) Record(eventID, outcome string, ttlAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if ttlAt.IsZero() {
		ttlAt = time.Now().UTC().Add(24 * time.Hour)
	}
	r.s.processed[eventID] = processedEvent{outcome: outcome, ttlAt: ttlAt}
	return nil
}

// DeleteExpired удаляет протухшие записи и возвращает их количество.
func (r *dedupRepo) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	removed := 0
	for id, rec := range r.s.processed {
		if rec.ttlAt.After(before) {
			continue
		}
		delete(r.s.processed, id)
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}
	return removed, nil
}

var _ domain.EventDedupRepository = (*dedupRepo)(nil)
