package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type promoRepository struct {
	db *sql.DB
}

// NewPromoRepository создаёт PostgreSQL-реализацию PromoRepository.
func NewPromoRepository(store *Store) domain.PromoRepository {
	return &promoRepository{db: store.DB()}
}

func (r *promoRepository) Create(p domain.Promo) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO promo_codes (
			id, code, discount_percent, discount_amount_minor,
			is_active, valid_from, valid_to, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		p.ID, p.Code, p.DiscountPercent, p.DiscountAmountMinor,
		p.IsActive, p.ValidFrom, p.ValidTo, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert promo: %w", err)
	}

	return nil
}

func (r *promoRepository) GetByCode(code string) (domain.Promo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var p domain.Promo
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, discount_percent, discount_amount_minor,
		       is_active, valid_from, valid_to, created_at, updated_at
		FROM promo_codes
		WHERE code = $1
	`, code).Scan(
		&p.ID, &p.Code, &p.DiscountPercent, &p.DiscountAmountMinor,
		&p.IsActive, &p.ValidFrom, &p.ValidTo, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Promo{}, domain.ErrPromoNotFound
		}
		return domain.Promo{}, fmt.Errorf("select promo: %w", err)
	}

	return p, nil
}

var _ domain.PromoRepository = (*promoRepository)(nil)
