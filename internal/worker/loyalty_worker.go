package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/repository"
)

const (
	orderQueueName = "orders.placed"
	dlxExchange    = "orders.dlx"
	dlqQueueName   = "orders.dlq"
	idempotencyTTL = 24 * time.Hour
)

// LoyaltyWorker consumes placed-order messages and writes the point ledger.
// Points are already granted on the user row inside the order transaction;
// the ledger is the audit trail behind the account page.
type LoyaltyWorker struct {
	channel     *amqp.Channel
	loyaltyRepo repository.LoyaltyRepository
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewLoyaltyWorker(
	ch *amqp.Channel,
	loyaltyRepo repository.LoyaltyRepository,
	redisClient *redis.Client,
	log *slog.Logger,
) *LoyaltyWorker {
	return &LoyaltyWorker{
		channel:     ch,
		loyaltyRepo: loyaltyRepo,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares exchanges, queues, and bindings (DLX/DLQ).
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, orderQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(orderQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": orderQueueName,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *LoyaltyWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("loyalty worker started")
	return nil
}

func (w *LoyaltyWorker) Stop() { close(w.done) }

func (w *LoyaltyWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var placed model.OrderPlacedMessage
	if err := json.Unmarshal(msg.Body, &placed); err != nil {
		w.log.Error("unmarshal order placed message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", placed.OrderID, "user_id", placed.UserID)

	// Guest orders carry no account to credit.
	if placed.UserID == uuid.Nil || placed.EarnedPoints == 0 {
		_ = msg.Ack(false)
		return
	}

	idempotencyKey := "points_recorded:" + placed.OrderID.String()
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("points already recorded, skipping")
		_ = msg.Ack(false)
		return
	}

	event := &repository.PointEvent{
		UserID:  placed.UserID,
		OrderID: placed.OrderID,
		Points:  placed.EarnedPoints,
	}
	if err := w.loyaltyRepo.Record(ctx, event); err != nil {
		log.Error("record point event failed", "error", err)
		_ = msg.Nack(false, false) // to DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("point event recorded", "points", placed.EarnedPoints)
}
