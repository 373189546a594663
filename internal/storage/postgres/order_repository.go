package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// CreateCheckout одной транзакцией резервирует сток по каждой позиции,
// вставляет заказ, его позиции и pending-доставку. Резерв делается условным
// UPDATE с проверкой остатка, поэтому при конкуренции транзакция либо
// полностью проходит, либо откатывается без частичных списаний.
func (r *orderRepository) CreateCheckout(order domain.Order, delivery domain.Delivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, item := range order.Items {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `
			UPDATE product_variants
			SET stock = stock - $2,
			    updated_at = $3
			WHERE id = $1
			  AND is_active
			  AND stock >= $2
		`, item.VariantID, item.Qty, order.CreatedAt)
		if err != nil {
			return fmt.Errorf("reserve stock for %s: %w", item.VariantID, err)
		}
		var affected int64
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			err = r.classifyReserveFailure(ctx, tx, item.VariantID)
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, status, currency,
			subtotal_minor, discount_minor, total_minor, promo_code,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		order.ID, order.UserID, string(order.Status), order.Currency,
		order.SubtotalMinor, order.DiscountMinor, order.TotalMinor, order.PromoCode,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, variant_id, sku, qty, price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			item.ID, order.ID, item.VariantID, item.SKU, item.Qty, item.PriceMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deliveries (
			id, order_id, courier_id, address_id, status,
			assigned_at, delivered_at, created_at, updated_at
		) VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9)
	`,
		delivery.ID, delivery.OrderID, delivery.CourierID, delivery.AddressID,
		string(delivery.Status), delivery.AssignedAt, delivery.DeliveredAt,
		delivery.CreatedAt, delivery.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit checkout: %w", err)
	}

	return nil
}

// classifyReserveFailure различает отсутствующий, неактивный вариант
// и нехватку остатка после неудачного условного UPDATE.
func (r *orderRepository) classifyReserveFailure(ctx context.Context, tx *sql.Tx, variantID string) error {
	var active bool
	err := tx.QueryRowContext(ctx, `
		SELECT is_active FROM product_variants WHERE id = $1
	`, variantID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrVariantNotFound
	}
	if err != nil {
		return fmt.Errorf("check variant %s: %w", variantID, err)
	}
	if !active {
		return domain.ErrVariantInactive
	}
	return domain.ErrInsufficientStock
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := r.getCtx(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) getCtx(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	var status string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, currency,
		       subtotal_minor, discount_minor, total_minor, promo_code,
		       version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.UserID, &status, &order.Currency,
		&order.SubtotalMinor, &order.DiscountMinor, &order.TotalMinor, &order.PromoCode,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	return order, nil
}

func (r *orderRepository) ListByUser(userID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, user_id, status, currency,
		       subtotal_minor, discount_minor, total_minor, promo_code,
		       version, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		var status string
		if err := rows.Scan(
			&order.ID, &order.UserID, &status, &order.Currency,
			&order.SubtotalMinor, &order.DiscountMinor, &order.TotalMinor, &order.PromoCode,
			&order.Version, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    subtotal_minor = $2,
		    discount_minor = $3,
		    total_minor = $4,
		    promo_code = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $7
		  AND version = $8
	`,
		string(order.Status),
		order.SubtotalMinor,
		order.DiscountMinor,
		order.TotalMinor,
		order.PromoCode,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

// CancelRestock одной транзакцией переводит заказ в cancelled с CAS по версии,
// возвращает сток по зафиксированным позициям и отменяет доставку, если она
// ещё не в терминальном статусе.
func (r *orderRepository) CancelRestock(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := order.UpdatedAt

	var res sql.Result
	res, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    version = version + 1,
		    updated_at = $2
		WHERE id = $3
		  AND version = $4
	`, string(domain.OrderStatusCancelled), now, order.ID, order.Version)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	var affected int64
	affected, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrVersionConflict
		return err
	}

	// Восстановление строго по снапшоту позиций заказа.
	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			UPDATE product_variants
			SET stock = stock + $2,
			    updated_at = $3
			WHERE id = $1
		`, item.VariantID, item.Qty, now); err != nil {
			return fmt.Errorf("restock variant %s: %w", item.VariantID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE deliveries
		SET status = $1,
		    updated_at = $2
		WHERE order_id = $3
		  AND status NOT IN ($4, $5)
	`,
		string(domain.DeliveryStatusCanceled), now, order.ID,
		string(domain.DeliveryStatusDelivered), string(domain.DeliveryStatusCanceled),
	); err != nil {
		return fmt.Errorf("cancel delivery: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}

	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, variant_id, sku, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.VariantID, &item.SKU, &item.Qty, &item.PriceMinor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
