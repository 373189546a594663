package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type courierRepository struct {
	db *sql.DB
}

// NewCourierRepository создаёт PostgreSQL-реализацию CourierRepository.
func NewCourierRepository(store *Store) domain.CourierRepository {
	return &courierRepository{db: store.DB()}
}

const courierColumns = `
	id, user_id, transport_type, is_available, is_verified,
	status, rating, completed_deliveries, latitude, longitude,
	created_at, updated_at
`

func scanCourier(row interface{ Scan(...any) error }) (domain.Courier, error) {
	var c domain.Courier
	var transport, status string
	err := row.Scan(
		&c.ID, &c.UserID, &transport, &c.IsAvailable, &c.IsVerified,
		&status, &c.Rating, &c.CompletedDeliveries, &c.Latitude, &c.Longitude,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Courier{}, err
	}
	c.TransportType = domain.TransportType(transport)
	c.Status = domain.CourierStatus(status)
	return c, nil
}

func (r *courierRepository) Create(c domain.Courier) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO couriers (
			id, user_id, transport_type, is_available, is_verified,
			status, rating, completed_deliveries, latitude, longitude,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		c.ID, c.UserID, string(c.TransportType), c.IsAvailable, c.IsVerified,
		string(c.Status), c.Rating, c.CompletedDeliveries, c.Latitude, c.Longitude,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert courier: %w", err)
	}

	return nil
}

func (r *courierRepository) Get(id string) (domain.Courier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	c, err := scanCourier(r.db.QueryRowContext(ctx, `
		SELECT `+courierColumns+`
		FROM couriers
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Courier{}, domain.ErrCourierNotFound
		}
		return domain.Courier{}, fmt.Errorf("select courier: %w", err)
	}

	return c, nil
}

func (r *courierRepository) ListAvailable() ([]domain.Courier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+courierColumns+`
		FROM couriers
		WHERE is_available AND is_verified
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list available couriers: %w", err)
	}
	defer rows.Close()

	couriers := make([]domain.Courier, 0)
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan courier row: %w", err)
		}
		couriers = append(couriers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courier rows: %w", err)
	}

	return couriers, nil
}

// Update читает курьера, накладывает изменения через CourierUpdate.Apply и
// перезаписывает строку. Поля занятости здесь не арбитрируются, эксклюзивность
// курьера обеспечивает DeliveryRepository.Assign.
func (r *courierRepository) Update(id string, upd domain.CourierUpdate) (domain.Courier, error) {
	c, err := r.Get(id)
	if err != nil {
		return domain.Courier{}, err
	}
	if err := upd.Apply(&c, time.Now().UTC()); err != nil {
		return domain.Courier{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE couriers
		SET transport_type = $1,
		    is_available = $2,
		    is_verified = $3,
		    status = $4,
		    rating = $5,
		    updated_at = $6
		WHERE id = $7
	`,
		string(c.TransportType), c.IsAvailable, c.IsVerified,
		string(c.Status), c.Rating, c.UpdatedAt, id,
	)
	if err != nil {
		return domain.Courier{}, fmt.Errorf("update courier: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Courier{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Courier{}, domain.ErrCourierNotFound
	}

	return c, nil
}

func (r *courierRepository) UpdateLocation(id string, lat, lon float64) (domain.Courier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	c, err := scanCourier(r.db.QueryRowContext(ctx, `
		UPDATE couriers
		SET latitude = $2,
		    longitude = $3,
		    updated_at = $4
		WHERE id = $1
		RETURNING `+courierColumns+`
	`, id, lat, lon, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Courier{}, domain.ErrCourierNotFound
		}
		return domain.Courier{}, fmt.Errorf("update courier location: %w", err)
	}

	return c, nil
}

var _ domain.CourierRepository = (*courierRepository)(nil)
