package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manifold-proxy/manifold/config"
	"github.com/manifold-proxy/manifold/internal/clientip"
	"github.com/manifold-proxy/manifold/internal/handler"
	"github.com/manifold-proxy/manifold/internal/health"
	"github.com/manifold-proxy/manifold/internal/httpserver"
	"github.com/manifold-proxy/manifold/internal/loadbalancer"
	"github.com/manifold-proxy/manifold/internal/metrics"
	"github.com/manifold-proxy/manifold/internal/target"
	"github.com/manifold-proxy/manifold/internal/worker"
	"github.com/manifold-proxy/manifold/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	workerType, err := worker.ParseType(cfg.Workers.Type)
	if err != nil {
		log.Error("Invalid worker type", slog.Any("err", err))
		os.Exit(1)
	}

	interval, err := time.ParseDuration(cfg.Health.Interval)
	if err != nil {
		log.Error("Invalid health interval", slog.Any("err", err))
		os.Exit(1)
	}

	pool := worker.NewPool(worker.NewLauncher(workerType), cfg.Workers.Dir, log)
	if err := pool.Spawn(cfg.Workers.Count); err != nil {
		log.Error("Failed to spawn workers", slog.Any("err", err))
		pool.Stop()
		os.Exit(1)
	}

	addrs := pool.SocketAddrs()
	targets := target.FromAddrs(addrs)

	balancer, err := buildBalancer(cfg, targets)
	if err != nil {
		log.Error("Failed to create balancer",
			slog.String("strategy", cfg.Strategy.Type),
			slog.Any("err", err))
		pool.Stop()
		os.Exit(1)
	}

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)

	for _, addr := range addrs {
		go health.Monitor(ctx, addr, interval, log, collector)
	}

	proxyHandler := handler.NewProxyHandler(log, balancer, collector)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(proxyHandler, collector, cfg.Strategy.Type), log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		pool.Stop()
		os.Exit(1)
	}

	log.Info("Proxy started",
		slog.String("address", cfg.Server.Address),
		slog.Int("workers", len(addrs)),
		slog.String("strategy", cfg.Strategy.Type))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting proxy", slog.Any("err", err))
			pool.Stop()
			os.Exit(1)
		}
	}

	pool.Stop()
}

// buildBalancer wires the configured trust mode and strategy over the worker
// address snapshot.
func buildBalancer(cfg *config.Config, targets []*target.Target) (loadbalancer.LoadBalancer, error) {
	source, err := clientip.ParseSource(cfg.Proxy.IPFrom)
	if err != nil {
		return loadbalancer.LoadBalancer{}, err
	}

	return loadbalancer.New(cfg.Strategy.Type, clientip.New(source), targets)
}
