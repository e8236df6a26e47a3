package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/LavaJover/lockin-market-service/internal/app/background"
	"github.com/LavaJover/lockin-market-service/internal/app/setup"
	"github.com/LavaJover/lockin-market-service/internal/config"
	"github.com/LavaJover/lockin-market-service/internal/delivery/grpcapi"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/router"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	cfg := config.MustLoad()

	if _, err := logger.Setup(cfg.LogConfig); err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup.InitializeDependencies(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize dependencies: %v", err)
	}
	defer deps.Close()

	ucs := setup.InitializeUseCases(deps)

	// HTTP
	e := router.New(router.Deps{
		Listings:  ucs.ListingUsecase,
		Locks:     ucs.LockUsecase,
		Orders:    ucs.OrderUsecase,
		Webhooks:  ucs.WebhookUsecase,
		Sweeper:   ucs.SweeperUsecase,
		Ledger:    ucs.LedgerUsecase,
		Verifier:  ucs.Verifier,
		Clock:     deps.Clock,
		JWTSecret: cfg.Auth.JWTSecret,
		RateLimit: cfg.RateLimit,
		Redis:     deps.Redis,
		Gatherer:  deps.Registry,
	})
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPServer.Address())
		if err := e.Start(cfg.HTTPServer.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", "error", err)
			stop()
		}
	}()

	// gRPC
	grpcServer, health := grpcapi.NewServer(grpcapi.NewMarketHandler(
		ucs.ListingUsecase,
		ucs.LockUsecase,
		ucs.OrderUsecase,
		ucs.SweeperUsecase,
		ucs.LedgerUsecase,
	), cfg.Auth.JWTSecret)
	lis, err := net.Listen("tcp", cfg.GRPCServer.Address())
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	go func() {
		slog.Info("grpc server listening", "addr", cfg.GRPCServer.Address())
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("grpc server stopped", "error", err)
			stop()
		}
	}()

	// Background
	tasks := background.NewBackgroundTasks(
		ucs.SweeperUsecase,
		ucs.LedgerUsecase,
		ucs.WebhookUsecase,
		cfg.Sweeper.Interval,
		cfg.Ledger.PurgeInterval,
	)
	if sub := deps.PaymentSubscriber(); sub != nil {
		tasks.PaymentEvents = sub
		tasks.PaymentTopic = cfg.KafkaService.PaymentEventsTopic
		tasks.PaymentGroupID = cfg.KafkaService.GroupID
	}
	tasks.StartAll(ctx)

	<-ctx.Done()
	slog.Info("shutting down")

	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	tasks.Wait()
}
