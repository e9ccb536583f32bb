package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const OrderConfirmedType = "order.confirmed"

// OrderConfirmed is emitted once a checkout has committed.
type OrderConfirmed struct {
	Type            string     `json:"type"`
	OrderID         uuid.UUID  `json:"order_id"`
	CustomerID      string     `json:"customer_id"`
	TotalAmount     int64      `json:"total_amount"`
	Currency        string     `json:"currency"`
	PromoCodeID     *uuid.UUID `json:"promo_code_id,omitempty"`
	PointsRedeemed  int64      `json:"points_redeemed,omitempty"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

type Publisher interface {
	PublishOrderConfirmed(ctx context.Context, evt OrderConfirmed) error
	Close() error
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderConfirmed(context.Context, OrderConfirmed) error { return nil }
func (NopPublisher) Close() error { return nil }

const (
	BackendNone  = "none"
	BackendKafka = "kafka"
	BackendAMQP  = "amqp"
)

type Options struct {
	Backend      string
	KafkaBrokers []string
	KafkaTopic   string
	AMQPURL      string
	AMQPExchange string
}

// New builds the publisher selected by opts.Backend.
func New(opts Options) (Publisher, error) {
	switch opts.Backend {
	case "", BackendNone:
		return NopPublisher{}, nil
	case BackendKafka:
		if len(opts.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka backend needs at least one broker")
		}
		return NewKafkaPublisher(opts.KafkaBrokers, opts.KafkaTopic), nil
	case BackendAMQP:
		return NewAMQPPublisher(opts.AMQPURL, opts.AMQPExchange)
	default:
		return nil, fmt.Errorf("unknown events backend %q", opts.Backend)
	}
}
