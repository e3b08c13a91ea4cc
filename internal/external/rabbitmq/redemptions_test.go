package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glkeru/loyalty/pay2win/internal/services"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// acker запоминает ack/nack по тегу
type acker struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *acker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *acker) Nack(tag uint64, multiple bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *acker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestWorker(t *testing.T) {
	ack := &acker{}
	msgs := make(chan amqp.Delivery, 3)
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("1")}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("2")}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte("3")}
	close(msgs)

	handle := func(ctx context.Context, body []byte) services.RedemptionConfirm {
		switch string(body) {
		case "1":
			return services.RedemptionConfirm{TransactionID: 1, Success: true}
		case "2":
			return services.RedemptionConfirm{TransactionID: 2, Error: "conflict"}
		}
		return services.RedemptionConfirm{TransactionID: 3, Success: true}
	}
	var sent []services.RedemptionConfirm
	processed := func(ctx context.Context, confirm services.RedemptionConfirm) error {
		if confirm.TransactionID == 3 {
			return errors.New("channel closed")
		}
		sent = append(sent, confirm)
		return nil
	}

	Worker(context.Background(), msgs, handle, processed, zap.NewNop())

	require.Equal(t, []services.RedemptionConfirm{
		{TransactionID: 1, Success: true},
		{TransactionID: 2, Error: "conflict"},
	}, sent)
	require.Equal(t, []uint64{1, 2}, ack.acked)
	require.Equal(t, []uint64{3}, ack.nacked)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	msgs := make(chan amqp.Delivery)
	done := make(chan struct{})
	go func() {
		Worker(ctx, msgs, nil, nil, zap.NewNop())
		close(done)
	}()
	<-done
}

func TestNewRedemptionConsumerConfig(t *testing.T) {
	_, err := NewRedemptionConsumer("", "redemptions", "redemption_confirms", 1)
	require.EqualError(t, err, "env PAY2WIN_RABBIT_URL is not set")
}
