// REST + gRPC сервер ledger
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glkeru/loyalty/pay2win/internal/api"
	pointsgrpc "github.com/glkeru/loyalty/pay2win/internal/api/grpc"
	"github.com/glkeru/loyalty/pay2win/internal/app"
	"github.com/glkeru/loyalty/pay2win/internal/config"
	"github.com/glkeru/loyalty/pay2win/internal/logging"
	observability "github.com/glkeru/loyalty/pay2win/observability/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// config
	cfg, err := config.Load(*configPath)
	if err != nil {
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

	// tracing
	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTel.Endpoint, "pay2win", logger)
	if err != nil {
		logger.Fatal("Tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// storage + services
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Startup", zap.Error(err))
	}
	defer a.Close()

	// api handlers
	h := api.NewHandler(api.Services{
		Accounts:   a.Accounts,
		Ledger:     a.Ledger,
		Promotions: a.PromotionSvc,
		Events:     a.Events,
	}, api.Options{
		LoginRate:  cfg.Auth.LoginRate,
		LoginBurst: cfg.Auth.LoginBurst,

		ExposeResetTokens: cfg.Auth.ExposeResetTokens,
	}, logger)
	srv := &http.Server{
		Handler:      h,
		Addr:         cfg.HTTPAddr,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	// grpc
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("gRPC listen", zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	pointsgrpc.RegisterPointsServer(grpcServer, pointsgrpc.NewPointsService(a.Ledger, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server started", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server started", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})

	// shutdown
	g.Go(func() error {
		<-gctx.Done()
		timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		return srv.Shutdown(timeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
