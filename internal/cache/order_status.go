package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	keyOrderStatus = "order_status:%s"

	defaultStatusTTL = 5 * time.Minute
	cacheOpTimeout   = 2 * time.Second
)

// NewClient создаёт Redis-клиент для кэша маркетплейса.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Commands — подмножество клиента Redis, которым пользуется кэш. Тесты
// подставляют сюда свою реализацию вместо живого соединения.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// StatusEntry кэшированный статус заказа.
type StatusEntry struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderStatusCache кэширует статусы заказов в Redis по схеме cache-aside.
// Все операции best-effort: ошибка Redis не должна ломать основной поток.
type OrderStatusCache struct {
	client Commands
	logger *log.Entry
	ttl    time.Duration
}

// NewOrderStatusCache создаёт кэш статусов заказов.
func NewOrderStatusCache(client *redis.Client, logger *log.Entry) *OrderStatusCache {
	return NewOrderStatusCacheWithCommands(client, logger)
}

// NewOrderStatusCacheWithCommands создаёт кэш поверх произвольной реализации
// команд Redis.
func NewOrderStatusCacheWithCommands(client Commands, logger *log.Entry) *OrderStatusCache {
	if logger == nil {
		logger = log.WithField("component", "order-status-cache")
	}
	return &OrderStatusCache{
		client: client,
		logger: logger,
		ttl:    defaultStatusTTL,
	}
}

// Get возвращает кэшированный статус заказа.
func (c *OrderStatusCache) Get(orderID string) (StatusEntry, bool) {
	if c == nil || c.client == nil || orderID == "" {
		return StatusEntry{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("order_id", orderID).Warn("order status cache read failed")
		}
		return StatusEntry{}, false
	}

	var entry StatusEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.WithError(err).WithField("order_id", orderID).Warn("order status cache entry is corrupted")
		return StatusEntry{}, false
	}
	return entry, true
}

// Set сохраняет статус заказа с TTL.
func (c *OrderStatusCache) Set(orderID, status string, updatedAt time.Time) {
	if c == nil || c.client == nil || orderID == "" {
		return
	}

	raw, err := json.Marshal(StatusEntry{Status: status, UpdatedAt: updatedAt})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	if err := c.client.Set(ctx, fmt.Sprintf(keyOrderStatus, orderID), raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("order_id", orderID).Warn("order status cache write failed")
	}
}

// Invalidate удаляет статус заказа из кэша.
func (c *OrderStatusCache) Invalidate(orderID string) {
	if c == nil || c.client == nil || orderID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	if err := c.client.Del(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Err(); err != nil {
		c.logger.WithError(err).WithField("order_id", orderID).Warn("order status cache invalidation failed")
	}
}

// Ping проверяет доступность Redis, используется health-чекером.
func (c *OrderStatusCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return c.client.Ping(ctx).Err()
}
