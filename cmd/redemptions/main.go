// Job - обработка списаний баллов кассами через RabbitMQ
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/glkeru/loyalty/pay2win/internal/app"
	"github.com/glkeru/loyalty/pay2win/internal/config"
	rabbit "github.com/glkeru/loyalty/pay2win/internal/external/rabbitmq"
	"github.com/glkeru/loyalty/pay2win/internal/logging"
	observability "github.com/glkeru/loyalty/pay2win/observability/otel"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err = cfg.ValidateRabbit(); err != nil {
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

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTel.Endpoint, "pay2win-redemptions", logger)
	if err != nil {
		logger.Fatal("Tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// rabbitmq
	reader, err := rabbit.NewRedemptionConsumer(cfg.Rabbit.URL, cfg.Rabbit.Queue, cfg.Rabbit.ConfirmQueue, cfg.Rabbit.Workers)
	if err != nil {
		logger.Fatal("RabbitMQ", zap.Error(err))
	}
	defer reader.Close()

	// storage + services
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Startup", zap.Error(err))
	}
	defer a.Close()

	// workers
	wg := &sync.WaitGroup{}
	wg.Add(cfg.Rabbit.Workers)
	for i := 0; i < cfg.Rabbit.Workers; i++ {
		go func() {
			defer wg.Done()
			rabbit.Worker(ctx, reader.Msg, a.Intake.Redemption, reader.Processed, logger)
		}()
	}
	wg.Wait()
}
