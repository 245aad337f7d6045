package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"jobmatch-engine/internal/domain"
)

// AMQPConfig points the publisher at a broker. The exchange is declared as a
// durable topic exchange on first use.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// AMQPPublisher delivers match events to RabbitMQ. Connections are lazy and
// re-established after a failure; any broker problem surfaces as
// ErrUnavailable so the buffering layer can absorb it.
type AMQPPublisher struct {
	cfg AMQPConfig
	log *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(cfg AMQPConfig, log *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{cfg: cfg, log: log}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev domain.MatchEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode match event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	err = ch.PublishWithContext(ctx,
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		p.dropLocked()
		return fmt.Errorf("%w: publish: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.ch = nil
	return err
}

func (p *AMQPPublisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p.conn = conn
	p.ch = ch
	p.log.Info("connected to broker", "exchange", p.cfg.Exchange)
	return ch, nil
}

func (p *AMQPPublisher) dropLocked() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = nil
	p.ch = nil
}
