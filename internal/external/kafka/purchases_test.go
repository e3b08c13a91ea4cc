package kafka

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	uuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewPurchaseReaderConfig(t *testing.T) {
	_, err := NewPurchaseReader(nil, "purchases", "group")
	require.EqualError(t, err, "env PAY2WIN_KAFKA_BROKERS is not set")

	_, err = NewPurchaseReader([]string{"localhost:9092"}, "", "group")
	require.EqualError(t, err, "env PAY2WIN_KAFKA_TOPIC is not set")
}

// PAY2WIN_TEST_KAFKA=host:port
func TestPurchaseRoundTrip(t *testing.T) {
	brokers := os.Getenv("PAY2WIN_TEST_KAFKA")
	if brokers == "" {
		t.Skip("PAY2WIN_TEST_KAFKA is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "purchases-" + uuid.NewString()
	writer := NewPurchaseWriter(strings.Split(brokers, ","), topic)
	defer writer.Close()
	body := []byte(`{"utorid":"alice001","spent":"10","cashier":"cash0001"}`)
	require.NoError(t, writer.Send(ctx, "alice001", body))

	reader, err := NewPurchaseReader(strings.Split(brokers, ","), topic, "test-"+uuid.NewString())
	require.NoError(t, err)
	defer reader.Close()

	got, err := reader.GetNewMessage(ctx)
	require.NoError(t, err)
	require.JSONEq(t, string(body), string(got))
}
