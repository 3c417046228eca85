package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"dobro-cards-bot/internal/domain"
	"dobro-cards-bot/internal/infra/metrics"
)

// RabbitEngagementQueue реализует очередь задач через AMQP.
type RabbitEngagementQueue struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queue     string
	deliverCh <-chan amqp.Delivery
}

var _ domain.EngagementQueue = (*RabbitEngagementQueue)(nil)

// NewRabbitEngagementQueue подключается к брокеру и объявляет устойчивую очередь.
func NewRabbitEngagementQueue(amqpURL, queue string) (*RabbitEngagementQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitEngagementQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitEngagementQueue) Enqueue(ctx context.Context, job domain.EngagementJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди. Подтверждение с success=false
// возвращает задачу брокеру для повторной доставки.
func (q *RabbitEngagementQueue) Receive(ctx context.Context) (domain.EngagementJob, domain.EngagementAckFunc, error) {
	if q.deliverCh == nil {
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.EngagementJob{}, nil, fmt.Errorf("consume: %w", err)
		}
		q.deliverCh = deliveries
	}
	select {
	case <-ctx.Done():
		return domain.EngagementJob{}, nil, ctx.Err()
	case delivery, ok := <-q.deliverCh:
		if !ok {
			return domain.EngagementJob{}, nil, errors.New("amqp queue: deliveries closed")
		}
		var job domain.EngagementJob
		if err := json.Unmarshal(delivery.Body, &job); err != nil {
			_ = delivery.Nack(false, false)
			return domain.EngagementJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return delivery.Ack(false)
			}
			return delivery.Nack(false, true)
		}
		return job, ack, nil
	}
}

// Close закрывает канал и подключение к брокеру.
func (q *RabbitEngagementQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
