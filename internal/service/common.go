package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/redisclient"
	"github.com/MohamedNashad/seafood-node-api/internal/store"

	"github.com/google/uuid"
)

// EventPublisher is the subset of broker.EventPublisher the services use
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishPaymentRejected(ctx context.Context, event *models.PaymentRejectedEvent) error
}

// PaymentGuard deduplicates gateway notifications. Implemented by redisclient.Client.
type PaymentGuard interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// CartStore persists carts. Implemented by redisclient.Client.
type CartStore interface {
	GetCart(ctx context.Context, key string) (*models.Cart, error)
	SaveCart(ctx context.Context, key string, cart *models.Cart, ttl time.Duration) error
	DeleteCart(ctx context.Context, key string) error
	MergeCart(ctx context.Context, fromKey, toKey string, ttl time.Duration, fold redisclient.CartFold) (*models.Cart, error)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

var nonWord = regexp.MustCompile(`\W+`)

// ToUnderscoreUpper turns "super admin" into "SUPER_ADMIN"
func ToUnderscoreUpper(s string) string {
	s = nonWord.ReplaceAllString(strings.TrimSpace(s), "_")
	return strings.ToUpper(strings.Trim(s, "_"))
}

// Capitalize lower-cases s and upper-cases the first letter of every word
func Capitalize(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// lifecycle implements soft delete, activate and hard delete for one entity table
type lifecycle struct {
	repo   store.LifecycleRepository
	entity string
}

func (l lifecycle) SoftDelete(ctx context.Context, id string) error {
	return l.repo.SetDeleted(ctx, l.entity, id, true)
}

func (l lifecycle) Activate(ctx context.Context, id string) error {
	return l.repo.SetDeleted(ctx, l.entity, id, false)
}

func (l lifecycle) Delete(ctx context.Context, id string) error {
	return l.repo.HardDelete(ctx, l.entity, id)
}
