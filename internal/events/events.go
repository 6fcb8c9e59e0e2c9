// Package events publishes domain notifications to interested consumers.
// Publishing is best-effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/creditscore/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// RoutingKeyScoreComputed is used for every ScoreComputed event.
const RoutingKeyScoreComputed = "score.computed"

// ScoreComputed is emitted after a score has been recomputed and saved.
type ScoreComputed struct {
	BusinessID  string          `json:"business_id"`
	Score       int             `json:"score"`
	RiskTier    domain.RiskTier `json:"risk_tier"`
	Version     string          `json:"version"`
	ComputedAt  time.Time       `json:"computed_at"`
	RequestedBy string          `json:"requested_by"`
	StatementID string          `json:"statement_id,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	PublishScoreComputed(ctx context.Context, ev ScoreComputed) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) PublishScoreComputed(context.Context, ScoreComputed) error { return nil }
func (Noop) Close() error                                              { return nil }

// AMQPPublisher publishes JSON events to a topic exchange.
type AMQPPublisher struct {
	exchange string
	log      zerolog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher dials url and declares a durable topic exchange.
func NewAMQPPublisher(url, exchange string, log zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info().Str("exchange", exchange).Msg("Connected to RabbitMQ")
	return &AMQPPublisher{exchange: exchange, log: log, conn: conn, channel: ch}, nil
}

// PublishScoreComputed implements Publisher.
func (p *AMQPPublisher) PublishScoreComputed(ctx context.Context, ev ScoreComputed) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("PublishScoreComputed: marshal: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return fmt.Errorf("PublishScoreComputed: publisher is closed")
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		RoutingKeyScoreComputed,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.ComputedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("PublishScoreComputed: publish: %w", err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

var (
	_ Publisher = Noop{}
	_ Publisher = (*AMQPPublisher)(nil)
)
