package worker

import (
	"context"
	"fmt"

	"github.com/MohamedNashad/seafood-node-api/internal/broker"
	"github.com/MohamedNashad/seafood-node-api/internal/mailer"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/store"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"go.uber.org/zap"
)

// Consumer is the message source the worker reads from. Implemented by broker.Consumer.
type Consumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// NotificationWorker mails buyers about their orders as order events arrive.
// Each event is handled at most once per event id.
type NotificationWorker struct {
	consumer     Consumer
	eventHandler *broker.EventHandler
	mail         mailer.Dispatcher
	processed    store.EventRepository
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer Consumer,
	mail mailer.Dispatcher,
	processed store.EventRepository,
) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		mail:         mail,
		processed:    processed,
		logger:       util.Named("notification-worker"),
	}

	w.eventHandler.OnOrderCreated(w.handleOrderCreated)
	w.eventHandler.OnOrderPaid(w.handleOrderPaid)
	w.eventHandler.OnPaymentRejected(w.handlePaymentRejected)

	return w
}

// Start blocks consuming events until ctx is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the consumer
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// Handle processes one raw event payload
func (w *NotificationWorker) Handle(ctx context.Context, payload []byte) error {
	return w.eventHandler.Dispatch(ctx, payload)
}

func (w *NotificationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return w.once(ctx, event.BaseEvent, func(ctx context.Context) error {
		lines := make([]string, 0, len(event.Items))
		for _, item := range event.Items {
			lines = append(lines, fmt.Sprintf("%d x %s @ %s",
				item.Quantity, item.Name, mailer.FormatCents(item.UnitPrice)))
		}
		msg := mailer.OrderReceived(event.RecipientName, event.OrderID, event.Total, lines)
		return w.send(ctx, "order_received", event.RecipientEmail, event.OrderID, msg)
	})
}

func (w *NotificationWorker) handleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	return w.once(ctx, event.BaseEvent, func(ctx context.Context) error {
		msg := mailer.PaymentConfirmed(event.RecipientName, event.OrderID, event.Total)
		return w.send(ctx, "payment_confirmed", event.RecipientEmail, event.OrderID, msg)
	})
}

func (w *NotificationWorker) handlePaymentRejected(ctx context.Context, event *models.PaymentRejectedEvent) error {
	return w.once(ctx, event.BaseEvent, func(ctx context.Context) error {
		w.logger.Warn("Payment rejected",
			zap.String("order_id", event.OrderID),
			zap.String("reason", event.Reason))
		return nil
	})
}

// once runs fn unless the event was already processed, then records it
func (w *NotificationWorker) once(ctx context.Context, base models.BaseEvent, fn func(context.Context) error) error {
	ctx, span := util.StartSpanWith(ctx, "NotificationWorker.Handle", "event_type", base.EventType)
	defer span.End()

	processed, err := w.processed.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return util.RecordError(span, fmt.Errorf("failed to check event %s: %w", base.EventID, err))
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	if err := fn(ctx); err != nil {
		return util.RecordError(span, err)
	}

	if err := w.processed.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		return util.RecordError(span, fmt.Errorf("failed to mark event %s: %w", base.EventID, err))
	}
	return nil
}

func (w *NotificationWorker) send(ctx context.Context, kind, to, orderID string, msg mailer.Message) error {
	if to == "" {
		w.logger.Warn("Order has no recipient email", zap.String("order_id", orderID))
		return nil
	}
	if err := w.mail.Send(ctx, to, msg.Subject, msg.Body); err != nil {
		util.NotificationMailFailed.WithLabelValues(kind).Inc()
		return fmt.Errorf("failed to mail order %s: %w", orderID, err)
	}
	return nil
}
