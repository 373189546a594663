package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type deliveryRepository struct {
	db *sql.DB
}

// NewDeliveryRepository создаёт PostgreSQL-реализацию DeliveryRepository.
func NewDeliveryRepository(store *Store) domain.DeliveryRepository {
	return &deliveryRepository{db: store.DB()}
}

func scanDelivery(row interface{ Scan(...any) error }) (domain.Delivery, error) {
	var d domain.Delivery
	var courierID sql.NullString
	var status string
	err := row.Scan(
		&d.ID, &d.OrderID, &courierID, &d.AddressID, &status,
		&d.AssignedAt, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return domain.Delivery{}, err
	}
	d.CourierID = courierID.String
	d.Status = domain.DeliveryStatus(status)
	return d, nil
}

func (r *deliveryRepository) GetByOrder(orderID string) (domain.Delivery, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	d, err := scanDelivery(r.db.QueryRowContext(ctx, `
		SELECT id, order_id, courier_id, address_id, status,
		       assigned_at, delivered_at, created_at, updated_at
		FROM deliveries
		WHERE order_id = $1
	`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Delivery{}, domain.ErrDeliveryNotFound
		}
		return domain.Delivery{}, fmt.Errorf("select delivery: %w", err)
	}

	return d, nil
}

// Assign одной транзакцией забирает курьера и привязывает его к доставке.
// Claim выражен условным UPDATE по is_available AND is_verified: из двух
// конкурентных назначений на одного курьера пройдёт ровно одно.
func (r *deliveryRepository) Assign(orderID, courierID string, now time.Time) (domain.Delivery, domain.Courier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Delivery{}, domain.Courier{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var d domain.Delivery
	d, err = scanDelivery(tx.QueryRowContext(ctx, `
		SELECT id, order_id, courier_id, address_id, status,
		       assigned_at, delivered_at, created_at, updated_at
		FROM deliveries
		WHERE order_id = $1
		FOR UPDATE
	`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrDeliveryNotFound
			return domain.Delivery{}, domain.Courier{}, err
		}
		return domain.Delivery{}, domain.Courier{}, fmt.Errorf("select delivery: %w", err)
	}
	if !d.Status.CanTransition(domain.DeliveryStatusAssigned) {
		err = domain.ErrInvalidState
		return domain.Delivery{}, domain.Courier{}, err
	}

	var c domain.Courier
	c, err = scanCourier(tx.QueryRowContext(ctx, `
		UPDATE couriers
		SET is_available = FALSE,
		    status = $2,
		    updated_at = $3
		WHERE id = $1
		  AND is_available
		  AND is_verified
		RETURNING `+courierColumns+`
	`, courierID, string(domain.CourierStatusBusy), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = r.classifyClaimFailure(ctx, tx, courierID)
			return domain.Delivery{}, domain.Courier{}, err
		}
		return domain.Delivery{}, domain.Courier{}, fmt.Errorf("claim courier: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE deliveries
		SET courier_id = $2,
		    status = $3,
		    assigned_at = $4,
		    updated_at = $4
		WHERE order_id = $1
	`, orderID, courierID, string(domain.DeliveryStatusAssigned), now)
	if err != nil {
		return domain.Delivery{}, domain.Courier{}, fmt.Errorf("assign delivery: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.Delivery{}, domain.Courier{}, fmt.Errorf("commit assign: %w", err)
	}

	d.CourierID = courierID
	d.Status = domain.DeliveryStatusAssigned
	assignedAt := now
	d.AssignedAt = &assignedAt
	d.UpdatedAt = now

	return d, c, nil
}

func (r *deliveryRepository) classifyClaimFailure(ctx context.Context, tx *sql.Tx, courierID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM couriers WHERE id = $1`, courierID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCourierNotFound
	}
	if err != nil {
		return fmt.Errorf("check courier exists: %w", err)
	}
	return domain.ErrCourierUnavailable
}

func (r *deliveryRepository) Save(delivery domain.Delivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET courier_id = NULLIF($1, ''),
		    status = $2,
		    assigned_at = $3,
		    delivered_at = $4,
		    updated_at = $5
		WHERE order_id = $6
	`,
		delivery.CourierID, string(delivery.Status),
		delivery.AssignedAt, delivery.DeliveredAt, delivery.UpdatedAt,
		delivery.OrderID,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrDeliveryNotFound
	}

	return nil
}

// Complete одной транзакцией фиксирует вручение и освобождает курьера,
// увеличивая его счётчик выполненных доставок.
func (r *deliveryRepository) Complete(delivery domain.Delivery) (domain.Delivery, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `
		UPDATE deliveries
		SET status = $1,
		    delivered_at = $2,
		    updated_at = $3
		WHERE order_id = $4
	`,
		string(delivery.Status), delivery.DeliveredAt, delivery.UpdatedAt,
		delivery.OrderID,
	)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("complete delivery: %w", err)
	}
	var affected int64
	affected, err = res.RowsAffected()
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrDeliveryNotFound
		return domain.Delivery{}, err
	}

	if delivery.CourierID != "" {
		if _, err = tx.ExecContext(ctx, `
			UPDATE couriers
			SET is_available = TRUE,
			    status = $2,
			    completed_deliveries = completed_deliveries + 1,
			    updated_at = $3
			WHERE id = $1
		`, delivery.CourierID, string(domain.CourierStatusActive), delivery.UpdatedAt); err != nil {
			return domain.Delivery{}, fmt.Errorf("free courier: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Delivery{}, fmt.Errorf("commit complete: %w", err)
	}

	return delivery, nil
}

var _ domain.DeliveryRepository = (*deliveryRepository)(nil)
