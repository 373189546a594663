package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type variantRepository struct {
	db *sql.DB
}

// NewVariantRepository создаёт PostgreSQL-реализацию VariantRepository.
func NewVariantRepository(store *Store) domain.VariantRepository {
	return &variantRepository{db: store.DB()}
}

func (r *variantRepository) Create(v domain.Variant) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_variants (
			id, sku, price_minor, stock, is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, v.ID, v.SKU, v.PriceMinor, v.Stock, v.IsActive, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert variant: %w", err)
	}

	return nil
}

func (r *variantRepository) Get(id string) (domain.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var v domain.Variant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, sku, price_minor, stock, is_active, created_at, updated_at
		FROM product_variants
		WHERE id = $1
	`, id).Scan(&v.ID, &v.SKU, &v.PriceMinor, &v.Stock, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Variant{}, domain.ErrVariantNotFound
		}
		return domain.Variant{}, fmt.Errorf("select variant: %w", err)
	}

	return v, nil
}

func (r *variantRepository) List() ([]domain.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sku, price_minor, stock, is_active, created_at, updated_at
		FROM product_variants
		ORDER BY sku ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	variants := make([]domain.Variant, 0)
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.SKU, &v.PriceMinor, &v.Stock, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}

	return variants, nil
}

// Reserve — условный декремент. Оставшийся сток проверяется в самом UPDATE,
// гонка двух резервов разрешается на уровне строки.
func (r *variantRepository) Reserve(id string, qty int32) (domain.Variant, error) {
	return r.adjustStock(id, -qty)
}

// Release безусловно возвращает qty на сток.
func (r *variantRepository) Release(id string, qty int32) (domain.Variant, error) {
	return r.adjustStock(id, qty)
}

func (r *variantRepository) adjustStock(id string, delta int32) (domain.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var v domain.Variant
	err := r.db.QueryRowContext(ctx, `
		UPDATE product_variants
		SET stock = stock + $2,
		    updated_at = $3
		WHERE id = $1
		  AND stock + $2 >= 0
		RETURNING id, sku, price_minor, stock, is_active, created_at, updated_at
	`, id, delta, time.Now().UTC()).Scan(
		&v.ID, &v.SKU, &v.PriceMinor, &v.Stock, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Variant{}, fmt.Errorf("adjust stock: %w", err)
	}

	if _, getErr := r.Get(id); getErr != nil {
		return domain.Variant{}, getErr
	}
	return domain.Variant{}, domain.ErrInsufficientStock
}

var _ domain.VariantRepository = (*variantRepository)(nil)
