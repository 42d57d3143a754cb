package service

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	notifyKeyPrefix  = "payhere:notify:"
	notifyLockPrefix = "payhere:lock:"
	notifyKeyTTL     = 24 * time.Hour
)

// Rejection reasons, also used as metric labels
const (
	rejectMissingFields = "missing_fields"
	rejectMerchant      = "merchant_mismatch"
	rejectSignature     = "bad_signature"
	rejectStatus        = "not_successful"
	rejectUnknownOrder  = "unknown_order"
	rejectAmount        = "amount_mismatch"
	rejectOrderState    = "order_state"
)

// PaymentSettings holds the merchant credentials for the gateway
type PaymentSettings struct {
	MerchantID     string
	MerchantSecret string
	Currency       string
	VerifyTimeout  time.Duration
}

// PaymentService signs checkout requests and verifies gateway notifications
type PaymentService struct {
	orders   *OrderService
	guard    PaymentGuard
	events   EventPublisher
	settings PaymentSettings
	logger   *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(orders *OrderService, guard PaymentGuard, events EventPublisher, settings PaymentSettings) *PaymentService {
	if settings.VerifyTimeout <= 0 {
		settings.VerifyTimeout = 10 * time.Second
	}
	return &PaymentService{
		orders:   orders,
		guard:    guard,
		events:   events,
		settings: settings,
		logger:   util.GetLogger(),
	}
}

// StartPayment returns the checkout hash for an amount such as "1500" or "1500.5"
func (ps *PaymentService) StartPayment(orderID, amount, currency string) (*models.PaymentStart, error) {
	if currency == "" {
		currency = ps.settings.Currency
	}
	fields := map[string]string{}
	if strings.TrimSpace(orderID) == "" {
		fields["order_id"] = "required"
	}
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !value.IsPositive() {
		fields["amount"] = "must be a positive number"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid payment request", fields)
	}

	formatted := value.StringFixed(2)
	return &models.PaymentStart{
		Hash:       ps.sign(ps.settings.MerchantID, orderID, formatted, currency),
		MerchantID: ps.settings.MerchantID,
		Amount:     formatted,
		Currency:   currency,
	}, nil
}

// StartOrderPayment returns the checkout hash for a stored order's total
func (ps *PaymentService) StartOrderPayment(ctx context.Context, orderID string) (*models.PaymentStart, error) {
	order, err := ps.orders.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return nil, apperr.Conflictf("order %s is already paid", orderID)
	}
	return ps.StartPayment(order.ID, decimal.New(order.Total, -2).String(), ps.settings.Currency)
}

// NotifyPayment handles the gateway's server-to-server callback. A nil error means
// the payment is accepted. Unavailable means the outcome is unknown and the gateway
// should retry; any other error rejects the notification.
func (ps *PaymentService) NotifyPayment(ctx context.Context, n models.PaymentNotification) error {
	ctx, span := util.StartSpanWith(ctx, "PaymentService.NotifyPayment", "order_id", n.OrderID)
	defer span.End()
	log := util.WithTrace(ctx, ps.logger)

	if missing := n.Missing(); len(missing) > 0 {
		fields := map[string]string{}
		for _, f := range missing {
			fields[f] = "required"
		}
		return ps.reject(ctx, n.OrderID, rejectMissingFields,
			apperr.Validation("incomplete payment notification", fields))
	}

	if n.MerchantID != ps.settings.MerchantID {
		return ps.reject(ctx, n.OrderID, rejectMerchant,
			apperr.Validation("unknown merchant", map[string]string{"merchant_id": "does not match"}))
	}

	expected := ps.sign(n.MerchantID, n.OrderID, n.PayhereAmount, n.PayhereCurrency, n.StatusCode)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToUpper(n.MD5Sig))) != 1 {
		return ps.reject(ctx, n.OrderID, rejectSignature,
			apperr.Validation("invalid payment signature", map[string]string{"md5sig": "does not match"}))
	}

	if n.StatusCode != models.PaymentStatusSuccess {
		return ps.reject(ctx, n.OrderID, rejectStatus,
			apperr.Validation("payment was not successful", map[string]string{"status_code": n.StatusCode}))
	}

	key := notifyKeyPrefix + n.OrderID
	done, err := ps.guard.CheckIdempotencyKey(ctx, key)
	if err != nil {
		log.Warn("Idempotency check failed, falling back to database", zap.Error(err))
	}
	if done {
		util.PaymentNotificationsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	token, err := ps.guard.AcquireLock(ctx, notifyLockPrefix+n.OrderID, ps.settings.VerifyTimeout+5*time.Second)
	if err != nil {
		return ps.unknown(span, n.OrderID, apperr.Unavailable("payment lock unavailable", err))
	}
	if token == "" {
		return ps.unknown(span, n.OrderID, apperr.Unavailable("payment notification already in progress", nil))
	}
	defer func() {
		if err := ps.guard.ReleaseLock(context.Background(), notifyLockPrefix+n.OrderID, token); err != nil {
			log.Warn("Failed to release payment lock", zap.String("order_id", n.OrderID), zap.Error(err))
		}
	}()

	verifyCtx, cancel := context.WithTimeout(ctx, ps.settings.VerifyTimeout)
	defer cancel()

	if err := ps.checkOrder(verifyCtx, n); err != nil {
		return err
	}

	_, applied, err := ps.orders.VerifyPayment(verifyCtx, n.OrderID, n.Receipt())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(verifyCtx.Err(), context.DeadlineExceeded):
		return ps.unknown(span, n.OrderID, apperr.Unavailable("payment verification timed out", err))
	case apperr.KindOf(err) == apperr.KindConflict || apperr.KindOf(err) == apperr.KindNotFound:
		return ps.reject(ctx, n.OrderID, rejectOrderState, err)
	case err != nil:
		return util.RecordError(span, err)
	}

	if err := ps.guard.SetIdempotencyKey(ctx, key, n.PaymentID, notifyKeyTTL); err != nil {
		log.Warn("Failed to store idempotency key", zap.String("order_id", n.OrderID), zap.Error(err))
	}

	outcome := "accepted"
	if !applied {
		outcome = "duplicate"
	}
	util.PaymentNotificationsTotal.WithLabelValues(outcome).Inc()
	log.Info("Payment notification accepted",
		zap.String("order_id", n.OrderID),
		zap.String("payment_id", n.PaymentID),
		zap.Bool("applied", applied))
	return nil
}

// checkOrder makes sure the notified amount and currency match the stored order
func (ps *PaymentService) checkOrder(ctx context.Context, n models.PaymentNotification) error {
	order, err := ps.orders.repo.GetOrderByID(ctx, n.OrderID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return ps.reject(ctx, n.OrderID, rejectUnknownOrder, err)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperr.Unavailable("payment verification timed out", err)
		}
		return err
	}

	amount, err := decimal.NewFromString(n.PayhereAmount)
	cents := amount.Shift(2)
	if err != nil || !cents.IsInteger() || cents.IntPart() != order.Total ||
		!strings.EqualFold(n.PayhereCurrency, ps.settings.Currency) {
		return ps.reject(ctx, n.OrderID, rejectAmount, apperr.Validation("payment does not match order",
			map[string]string{"payhere_amount": fmt.Sprintf("expected %s %s", decimal.New(order.Total, -2).StringFixed(2), ps.settings.Currency)}))
	}
	return nil
}

func (ps *PaymentService) reject(ctx context.Context, orderID, reason string, err error) error {
	util.PaymentNotificationsTotal.WithLabelValues(reason).Inc()
	util.WithTrace(ctx, ps.logger).Warn("Payment notification rejected",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
		zap.Error(err))

	event := &models.PaymentRejectedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentRejected),
		OrderID:   orderID,
		Reason:    reason,
	}
	if pubErr := ps.events.PublishPaymentRejected(ctx, event); pubErr != nil {
		ps.logger.Error("Failed to publish PaymentRejected event", zap.Error(pubErr))
	}
	return err
}

func (ps *PaymentService) unknown(span trace.Span, orderID string, err error) error {
	util.PaymentNotificationsTotal.WithLabelValues("unknown").Inc()
	ps.logger.Warn("Payment outcome unknown", zap.String("order_id", orderID), zap.Error(err))
	return util.RecordError(span, err)
}

// sign computes upper(md5(parts... + upper(md5(secret))))
func (ps *PaymentService) sign(parts ...string) string {
	secret := md5Upper(ps.settings.MerchantSecret)
	return md5Upper(strings.Join(parts, "") + secret)
}

func md5Upper(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
