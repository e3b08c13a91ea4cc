// Job - прием покупок с кассовых терминалов
// Опрос Kafka -> покупка в журнале от имени кассира из сообщения
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/glkeru/loyalty/pay2win/internal/app"
	"github.com/glkeru/loyalty/pay2win/internal/config"
	kafka "github.com/glkeru/loyalty/pay2win/internal/external/kafka"
	"github.com/glkeru/loyalty/pay2win/internal/logging"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	observability "github.com/glkeru/loyalty/pay2win/observability/otel"
	"go.uber.org/zap"
)

const defaultWorkers = 5

func main() {
	configPath := flag.String("config", "", "path to config file")
	workers := flag.Int("workers", defaultWorkers, "concurrent purchases")
	flag.Parse()

	// config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err = cfg.ValidateKafka(); err != nil {
		panic(err)
	}
	// log
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTel.Endpoint, "pay2win-purchases", logger)
	if err != nil {
		logger.Fatal("Tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// kafka
	reader, err := kafka.NewPurchaseReader(cfg.Kafka.BrokerList(), cfg.Kafka.Topic, cfg.Kafka.Group)
	if err != nil {
		logger.Fatal("Kafka", zap.Error(err))
	}
	defer reader.Close()

	// storage + services
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Startup", zap.Error(err))
	}
	defer a.Close()

	consume(ctx, reader, a.Intake.Purchase, *workers, logger)
}

type purchaseSource interface {
	GetNewMessage(ctx context.Context) ([]byte, error)
}

type recordFunc func(ctx context.Context, raw []byte) (model.Transaction, error)

// consume - чтение до отмены ctx, не больше workers покупок одновременно
func consume(ctx context.Context, src purchaseSource, record recordFunc, workers int, logger *zap.Logger) {
	if workers < 1 {
		workers = 1
	}
	wg := &sync.WaitGroup{}
	semaphore := make(chan struct{}, workers)
	// offset фиксируется при чтении: начатые покупки доводятся до конца после сигнала
	work := context.WithoutCancel(ctx)

	for {
		msg, err := src.GetNewMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Kafka read", zap.Error(err))
			}
			break
		}

		semaphore <- struct{}{}
		wg.Add(1)
		go func(msg []byte) {
			defer wg.Done()
			defer func() { <-semaphore }()
			tnx, err := record(work, msg)
			if err != nil {
				// offset уже зафиксирован, сообщение не повторяется
				logger.Error("Purchase rejected", zap.String("service", "purchases"), zap.ByteString("message", msg), zap.Error(err))
				return
			}
			logger.Info("Purchase recorded", zap.Int64("transaction", tnx.ID), zap.String("utorid", tnx.Utorid), zap.Int64("amount", tnx.Amount))
		}(msg)
	}
	wg.Wait()
}
