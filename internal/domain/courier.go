package domain

import "time"

// CourierStatus описывает рабочее состояние курьера.
type CourierStatus string

const (
	// CourierStatusActive — курьер на линии и готов брать заказы.
	CourierStatusActive CourierStatus = "active"
	// CourierStatusBusy — курьер выполняет доставку.
	CourierStatusBusy CourierStatus = "busy"
	// CourierStatusOffline — курьер не на линии.
	CourierStatusOffline CourierStatus = "offline"
)

// TransportType — транспорт курьера.
type TransportType string

const (
	TransportFoot TransportType = "foot"
	TransportBike TransportType = "bike"
	TransportMoto TransportType = "moto"
	TransportCar  TransportType = "car"
)

// Courier — исполнитель доставки. Доступность курьера — разделяемый ресурс,
// который арбитрирует исключительно диспетчеризация доставок.
type Courier struct {
	ID                  string
	UserID              string
	TransportType       TransportType
	IsAvailable         bool
	IsVerified          bool
	Status              CourierStatus
	Rating              float64
	CompletedDeliveries int32
	Latitude            *float64
	Longitude           *float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Assignable сообщает, можно ли назначить курьера на доставку.
func (c *Courier) Assignable() bool {
	return c.IsAvailable && c.IsVerified
}

// CourierUpdate перечисляет изменяемые поля курьера. Каждое поле опционально:
// nil означает "не трогать". Динамические patch-словари здесь запрещены.
type CourierUpdate struct {
	TransportType *TransportType
	IsAvailable   *bool
	IsVerified    *bool
	Status        *CourierStatus
	Rating        *float64
}

// Apply накладывает обновление на курьера, валидируя значения.
func (u CourierUpdate) Apply(c *Courier, now time.Time) error {
	if u.Status != nil {
		switch *u.Status {
		case CourierStatusActive, CourierStatusBusy, CourierStatusOffline:
		default:
			return ErrInvalidState
		}
		c.Status = *u.Status
	}
	if u.TransportType != nil {
		c.TransportType = *u.TransportType
	}
	if u.IsAvailable != nil {
		c.IsAvailable = *u.IsAvailable
	}
	if u.IsVerified != nil {
		c.IsVerified = *u.IsVerified
	}
	if u.Rating != nil {
		c.Rating = *u.Rating
	}
	c.UpdatedAt = now
	return nil
}
