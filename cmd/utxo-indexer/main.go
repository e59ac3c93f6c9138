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
	"github.com/goodnatureofminers/sealtransfer/internal/metrics"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/pkg/btcd/rpcclient"
	"github.com/goodnatureofminers/sealtransfer/internal/repository/clickhouse"
	"github.com/goodnatureofminers/sealtransfer/internal/service/indexer"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type config struct {
	ClickhouseDSN string        `long:"clickhouse-dsn" env:"UTXO_INDEXER_CLICKHOUSE_DSN" description:"ClickHouse DSN" required:"true"`
	Network       model.Network `long:"network" env:"UTXO_INDEXER_NETWORK" description:"network name" required:"true"`
	RPCURL        string        `long:"rpc-url" env:"UTXO_INDEXER_RPC_URL" description:"Bitcoin RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser       string        `long:"rpc-user" env:"UTXO_INDEXER_RPC_USER" description:"Bitcoin RPC username"`
	RPCPassword   string        `long:"rpc-password" env:"UTXO_INDEXER_RPC_PASSWORD" description:"Bitcoin RPC password"`
	StartHeight   uint64        `long:"start-height" env:"UTXO_INDEXER_START_HEIGHT" description:"first height indexed into an empty index"`
	Workers       int           `long:"workers" env:"UTXO_INDEXER_WORKERS" description:"concurrent block fetches" default:"4"`
	BatchSize     int           `long:"batch-size" env:"UTXO_INDEXER_BATCH_SIZE" description:"blocks fetched per step" default:"100"`
	Interval      time.Duration `long:"interval" env:"UTXO_INDEXER_INTERVAL" description:"pause after a partial batch or a failure" default:"5s"`
	IdleInterval  time.Duration `long:"idle-interval" env:"UTXO_INDEXER_IDLE_INTERVAL" description:"pause while at the tip" default:"1m"`
	ZMQBlockAddr  string        `long:"zmq-block-addr" env:"UTXO_INDEXER_ZMQ_BLOCK_ADDR" description:"ZMQ endpoint for block notifications (hashblock)"`
	MetricsAddr   string        `long:"metrics-addr" env:"UTXO_INDEXER_METRICS_ADDR" description:"address for metrics server" default:":2113"`
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
		logger.Fatal("utxo indexer failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
	if err != nil {
		return fmt.Errorf("init clickhouse repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close clickhouse repository", zap.Error(err))
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

	svc, err := indexer.New(
		rpc,
		repo,
		metrics.NewIndexer(string(cfg.Network)),
		cfg.Network,
		indexer.Config{
			StartHeight:  cfg.StartHeight,
			Workers:      cfg.Workers,
			BatchSize:    cfg.BatchSize,
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
