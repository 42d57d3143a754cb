package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the connection for the readiness endpoint
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CartKey builds the key of a user cart or, when userID is empty, a guest session cart
func CartKey(clientID, userID, sessionID string) string {
	if userID != "" {
		return fmt.Sprintf("cart:%s:user:%s", clientID, userID)
	}
	return fmt.Sprintf("cart:%s:session:%s", clientID, sessionID)
}

// GetCart loads a cart. It returns nil, nil when the cart does not exist or has expired.
func (c *Client) GetCart(ctx context.Context, key string) (*models.Cart, error) {
	return getCart(ctx, c.rdb, key)
}

func getCart(ctx context.Context, r interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}, key string) (*models.Cart, error) {
	raw, err := r.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", key, err)
	}
	return &cart, nil
}

// SaveCart stores a cart. A zero ttl keeps the cart until deleted.
func (c *Client) SaveCart(ctx context.Context, key string, cart *models.Cart, ttl time.Duration) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// DeleteCart removes a cart
func (c *Client) DeleteCart(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// CartFold combines the carts stored under two keys. Either may be nil. Returning a
// nil cart leaves both keys untouched.
type CartFold func(from, to *models.Cart) (*models.Cart, error)

// ErrCartContended is returned when the carts keep changing under MergeCart
var ErrCartContended = errors.New("cart changed concurrently, try again")

const mergeAttempts = 5

// MergeCart runs fold over the carts at fromKey and toKey, stores the result under
// toKey and drops fromKey in one MULTI. Both keys are watched, so a write landing
// between the read and EXEC makes fold run again on fresh data.
func (c *Client) MergeCart(ctx context.Context, fromKey, toKey string, ttl time.Duration, fold CartFold) (*models.Cart, error) {
	var merged *models.Cart

	txf := func(tx *redis.Tx) error {
		from, err := getCart(ctx, tx, fromKey)
		if err != nil {
			return err
		}
		to, err := getCart(ctx, tx, toKey)
		if err != nil {
			return err
		}

		merged, err = fold(from, to)
		if err != nil || merged == nil {
			return err
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to encode cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, toKey, raw, ttl)
			pipe.Del(ctx, fromKey)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < mergeAttempts; attempt++ {
		err := c.rdb.Watch(ctx, txf, fromKey, toKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return merged, nil
	}
	return nil, ErrCartContended
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// AcquireLock acquires a distributed lock and returns the owner token.
// An empty token means the lock is held by someone else.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock releases a lock only if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
