package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventOrderCompleted = "order_completed"

// OrderEvent is the backend's order lifecycle message.
type OrderEvent struct {
	EventType string `json:"event_type"`
	OwnerID   string `json:"owner_id"`
	OrderID   string `json:"order_id"`
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CartClearer empties the owner's cart.
type CartClearer interface {
	Clear()
}

// Poller clears the local cart once the backend reports that the owner's order completed,
// which covers orders finished from another device or after a lost response.
type Poller struct {
	ownerID string
	cart    CartClearer
	reader  MessageReader
	log     *zap.Logger
	backoff time.Duration
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewPoller(ownerID string, cart CartClearer, cfg Config, log *zap.Logger) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return NewPollerWithReader(ownerID, cart, reader, log)
}

func NewPollerWithReader(ownerID string, cart CartClearer, reader MessageReader, log *zap.Logger) *Poller {
	return &Poller{
		ownerID: ownerID,
		cart:    cart,
		reader:  reader,
		log:     log.With(zap.String("component", "order-poller")),
		backoff: time.Second,
	}
}

// Run consumes until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.processMessage(ctx); err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing kafka reader", zap.Error(err))
	}
}

// processMessage returns an error only when reading failed.
func (p *Poller) processMessage(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		p.log.Error("error reading message", zap.Error(err))
		return err
	}

	var event OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.Warn("error parsing message",
			zap.Int64("offset", m.Offset),
			zap.Error(err))
		return nil
	}

	if event.EventType != EventOrderCompleted || event.OwnerID != p.ownerID {
		return nil
	}

	p.cart.Clear()
	p.log.Info("cart cleared after completed order", zap.String("order_id", event.OrderID))
	return nil
}
