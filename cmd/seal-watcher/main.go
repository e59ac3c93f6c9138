package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/sealtransfer/internal/blocksignal"
	"github.com/goodnatureofminers/sealtransfer/internal/history"
	"github.com/goodnatureofminers/sealtransfer/internal/metrics"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/oracle"
	"github.com/goodnatureofminers/sealtransfer/internal/pkg/btcd/rpcclient"
	"github.com/goodnatureofminers/sealtransfer/internal/service/watcher"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type config struct {
	HistoryPath  string        `long:"history" env:"SEAL_WATCHER_HISTORY" description:"path to the history database" default:"sealtransfer.db"`
	Network      model.Network `long:"network" env:"SEAL_WATCHER_NETWORK" description:"network name" required:"true"`
	RPCURL       string        `long:"rpc-url" env:"SEAL_WATCHER_RPC_URL" description:"Bitcoin RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser      string        `long:"rpc-user" env:"SEAL_WATCHER_RPC_USER" description:"Bitcoin RPC username"`
	RPCPassword  string        `long:"rpc-password" env:"SEAL_WATCHER_RPC_PASSWORD" description:"Bitcoin RPC password"`
	RPCRate      int           `long:"rpc-rate" env:"SEAL_WATCHER_RPC_RATE" description:"max RPC calls per second, 0 for unlimited" default:"20"`
	SafetyDepth  uint32        `long:"safety-depth" env:"SEAL_WATCHER_SAFETY_DEPTH" description:"confirmations before an anchor is settled" default:"6"`
	Workers      int           `long:"workers" env:"SEAL_WATCHER_WORKERS" description:"concurrent confirmation lookups" default:"8"`
	Interval     time.Duration `long:"interval" env:"SEAL_WATCHER_INTERVAL" description:"pause between cycles while anchors are pending" default:"5s"`
	IdleInterval time.Duration `long:"idle-interval" env:"SEAL_WATCHER_IDLE_INTERVAL" description:"pause between cycles when nothing is pending" default:"1m"`
	ZMQBlockAddr string        `long:"zmq-block-addr" env:"SEAL_WATCHER_ZMQ_BLOCK_ADDR" description:"ZMQ endpoint for block notifications (hashblock)"`
	MetricsAddr  string        `long:"metrics-addr" env:"SEAL_WATCHER_METRICS_ADDR" description:"address for metrics server" default:":2112"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	network, err := model.ParseNetwork(string(cfg.Network))
	if err != nil {
		logger.Fatal("invalid network", zap.Error(err))
	}
	cfg.Network = network

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("seal watcher failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	store, err := history.Open(cfg.HistoryPath, logger, metrics.NewHistoryStore())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close history", zap.Error(err))
		}
	}()

	rpc, err := rpcclient.Dial(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword, metrics.NewRPCClient(string(cfg.Network)))
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer rpc.Close()

	blockSignal, err := blocksignal.Start(ctx, cfg.ZMQBlockAddr, logger)
	if err != nil {
		return fmt.Errorf("init block signal: %w", err)
	}

	svc, err := watcher.New(
		store,
		oracle.New(rpc, nil, cfg.Network, cfg.RPCRate, logger),
		metrics.NewWatcher(string(cfg.Network)),
		cfg.Network,
		watcher.Config{
			SafetyDepth:  cfg.SafetyDepth,
			Workers:      cfg.Workers,
			Interval:     cfg.Interval,
			IdleInterval: cfg.IdleInterval,
		},
		logger,
		blockSignal,
	)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}
