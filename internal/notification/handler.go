package notification

import (
	"context"
	"encoding/json"

	"github.com/example/grocery-ordering/internal/domain/order"
	"github.com/example/grocery-ordering/internal/email"
	"github.com/example/grocery-ordering/internal/infrastructure/kafka"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mailer sends the order confirmation.
type Mailer interface {
	SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []email.OrderItem) error
}

// Handler turns OrderPlaced events into confirmation mails.
type Handler struct {
	mailer Mailer
	logger *zap.Logger
}

func NewHandler(mailer Mailer, logger *zap.Logger) *Handler {
	return &Handler{
		mailer: mailer,
		logger: logger.Named("notifier"),
	}
}

// HandleEvent processes an event from Kafka. Malformed messages are logged
// and dropped so they do not block the partition.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event kafka.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Warn("failed to unmarshal event", zap.ByteString("key", key), zap.Error(err))
		return nil
	}

	// Only process OrderPlaced events
	if event.EventType != order.EventOrderPlaced {
		return nil
	}
	return h.handleOrderPlaced(event)
}

func (h *Handler) handleOrderPlaced(event kafka.Event) error {
	var e order.OrderPlaced
	if err := json.Unmarshal(event.Data, &e); err != nil {
		h.logger.Warn("failed to unmarshal OrderPlaced", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	if e.ContactEmail == "" {
		h.logger.Info("no contact email, skipping confirmation",
			zap.String("order_id", e.OrderID),
			zap.String("user_id", e.UserID),
		)
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, line := range e.Items {
		items[i] = email.OrderItem{
			Name:     line.ProductName,
			Unit:     line.ProductUnit,
			Quantity: line.Quantity,
			Price:    line.Price,
		}
	}

	if err := h.mailer.SendOrderConfirmation(e.ContactEmail, e.OrderID, e.TotalAmount, items); err != nil {
		return err
	}

	h.logger.Info("order confirmation sent", zap.String("order_id", e.OrderID))
	return nil
}
