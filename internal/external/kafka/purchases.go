// Package kafka - чтение покупок кассовых терминалов из Kafka
package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type PurchaseReader struct {
	reader *kafka.Reader
}

func NewPurchaseReader(brokers []string, topic, group string) (*PurchaseReader, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("env PAY2WIN_KAFKA_BROKERS is not set")
	}
	if topic == "" {
		return nil, fmt.Errorf("env PAY2WIN_KAFKA_TOPIC is not set")
	}
	kafkaconfig := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	}
	return &PurchaseReader{kafka.NewReader(kafkaconfig)}, nil
}

// GetNewMessage - следующее сообщение; offset фиксируется группой
func (k *PurchaseReader) GetNewMessage(ctx context.Context) ([]byte, error) {
	msg, err := k.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Value, nil
}

func (k *PurchaseReader) Close() error {
	return k.reader.Close()
}

// PurchaseWriter - отправка покупок в топик (кассы, интеграционные тесты)
type PurchaseWriter struct {
	writer *kafka.Writer
}

func NewPurchaseWriter(brokers []string, topic string) *PurchaseWriter {
	return &PurchaseWriter{&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

// Send: ключ - utorid покупателя, покупки одного счета идут в одну партицию
func (k *PurchaseWriter) Send(ctx context.Context, utorid string, value []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(utorid), Value: value})
}

func (k *PurchaseWriter) Close() error {
	return k.writer.Close()
}
