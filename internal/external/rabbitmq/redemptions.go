// Package rabbitmq - очередь списаний от касс и очередь подтверждений
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/glkeru/loyalty/pay2win/internal/services"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type RedemptionConsumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	Msg      <-chan amqp.Delivery
	chout    *amqp.Channel
	queueout string
}

func NewRedemptionConsumer(url, queue, queueout string, prefetch int) (rabbit *RedemptionConsumer, err error) {
	if url == "" {
		return nil, fmt.Errorf("env PAY2WIN_RABBIT_URL is not set")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			conn.Close()
		}
	}()

	// канал для входящих
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return nil, err
	}
	if err = ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}

	// канал для исходящих
	chout, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err = chout.QueueDeclare(
		queueout, // name
		true,     // durable
		false,    // delete when unused
		false,    // exclusive
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return nil, err
	}

	msg, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, err
	}

	return &RedemptionConsumer{conn, ch, msg, chout, queueout}, nil
}

func (r *RedemptionConsumer) Close() {
	r.ch.Close()
	r.chout.Close()
	r.conn.Close()
}

// подтверждение списания
func (r *RedemptionConsumer) Processed(ctx context.Context, confirm services.RedemptionConfirm) error {
	msg, err := json.Marshal(confirm)
	if err != nil {
		return err
	}
	return r.chout.PublishWithContext(ctx,
		"",         // exchange
		r.queueout, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         msg,
		})
}

// Worker - разбор очереди одним обработчиком до закрытия канала или ctx.
// Сообщение подтверждается после ответа в очередь подтверждений;
// если ответ не ушел, сообщение возвращается в очередь.
func Worker(ctx context.Context, msgs <-chan amqp.Delivery, handle func(context.Context, []byte) services.RedemptionConfirm, processed func(context.Context, services.RedemptionConfirm) error, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			confirm := handle(ctx, msg.Body)
			if !confirm.Success {
				logger.Warn("Redemption rejected",
					zap.String("service", "redemptions"),
					zap.Int64("transaction", confirm.TransactionID),
					zap.String("error", confirm.Error),
				)
			}
			if err := processed(ctx, confirm); err != nil {
				logger.Error("Redemption confirm",
					zap.String("service", "redemptions"),
					zap.Error(err),
				)
				_ = msg.Nack(false, true)
				continue
			}
			if err := msg.Ack(false); err != nil {
				logger.Error("Redemption ack",
					zap.String("service", "redemptions"),
					zap.Error(err),
				)
			}
		}
	}
}
