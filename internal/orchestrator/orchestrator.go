// Package orchestrator wires every component named in SPEC_FULL.md into a
// running process: config, schema loader, detection engine and its rule
// registry, the storage writer pool, the action sinks, and the gRPC ingest
// server, then drives a single shutdown signal through all of them. It is
// grounded on the teacher's cmd/threatgraph/main.go wiring shape (construct
// every component from config, defer a cancel, select on SIGINT/SIGTERM,
// drain, close), generalized from one fixed pipeline to StrIEM's sink set.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"striem/config"
	"striem/internal/actions"
	"striem/internal/detection"
	"striem/internal/ingest"
	_ "striem/internal/ingest/jsoncodec"
	"striem/internal/ingest/pb"
	"striem/internal/logger"
	"striem/internal/registry"
	"striem/internal/schema"
	"striem/internal/storage"
)

// App holds every long-lived component once constructed, so Run can start
// them together and Shutdown can stop them in the right order.
type App struct {
	cfg *config.Config

	schemaLoader *schema.Loader
	storagePool  *storage.Pool
	detEngine    *detection.Engine
	detQueue     *detection.Queue
	ruleRegistry *registry.RuleRegistry
	srcRegistry  *registry.SourceRegistry

	actionSinks []closer
	grpcServer  *grpc.Server
	metricsSrv  *http.Server
}

// closer is the Close() error contract shared by actions.Webhook and
// actions.RedisPublisher.
type closer interface {
	Close() error
}

// New constructs every component from cfg but starts nothing yet.
func New(cfg *config.Config) (*App, error) {
	if err := logger.Init(cfg.Logging.Enabled, cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Console); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	loader, err := schema.Load(cfg.Storage.Schema)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	deadLetter, err := storage.NewDeadLetter(cfg.Storage.DeadLetter)
	if err != nil {
		return nil, fmt.Errorf("init dead letter: %w", err)
	}

	pool := storage.New(storage.Config{
		Root:       cfg.Storage.Path,
		Grain:      storage.ParseGrain(cfg.Storage.DateGrain),
		MaxRows:    cfg.Storage.MaxRows,
		MaxBytes:   cfg.Storage.MaxBytes,
		MaxAge:     cfg.Storage.MaxAge,
		QueueDepth: cfg.Storage.QueueCapacity,
	}, loader, deadLetter)

	engine := detection.NewEngine(detection.Config{
		YieldEvery:   cfg.Detection.YieldEvery,
		DedupeWindow: cfg.Detection.DedupeWindow,
	})

	ruleRegistry, err := registry.NewRuleRegistry(cfg.Registry.RulesDir, engine)
	if err != nil {
		return nil, fmt.Errorf("load rule registry: %w", err)
	}
	srcRegistry, err := registry.NewSourceRegistry(cfg.Registry.SourcesDir)
	if err != nil {
		return nil, fmt.Errorf("load source registry: %w", err)
	}

	var sinks []detection.FindingSink
	var closers []closer
	sinks = append(sinks, storage.FindingSink{Pool: pool})

	if cfg.Actions.Webhook.Enabled {
		hook, err := actions.NewWebhook(actions.WebhookConfig{
			URL:     cfg.Actions.Webhook.URL,
			Timeout: cfg.Actions.Webhook.Timeout,
			Headers: cfg.Actions.Webhook.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("init webhook action: %w", err)
		}
		sinks = append(sinks, hook)
		closers = append(closers, hook)
		logger.Infof("Webhook action sink enabled: %s", cfg.Actions.Webhook.URL)
	}
	if cfg.Actions.Redis.Enabled {
		pub, err := actions.NewRedisPublisher(actions.RedisConfig{
			Addr:     cfg.Actions.Redis.Addr,
			Password: cfg.Actions.Redis.Password,
			DB:       cfg.Actions.Redis.DB,
			Channel:  cfg.Actions.Redis.Channel,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis action: %w", err)
		}
		sinks = append(sinks, pub)
		closers = append(closers, pub)
		logger.Infof("Redis action sink enabled: %s", cfg.Actions.Redis.Addr)
	}

	detQueue := detection.NewQueue(engine, cfg.Ingest.QueueCapacity, sinks...)

	ingestServer := ingest.New(ingest.Config{AdmissionDeadline: cfg.Ingest.AdmissionDeadline}, detQueue, pool)
	ingestServer.SetQueueProbe(func() (int, int) {
		return detQueue.Depth() + pool.Depth(), detQueue.Headroom() + pool.Headroom()
	})

	grpcServer := grpc.NewServer()
	pb.RegisterVectorServer(grpcServer, ingestServer)

	return &App{
		cfg:          cfg,
		schemaLoader: loader,
		storagePool:  pool,
		detEngine:    engine,
		detQueue:     detQueue,
		ruleRegistry: ruleRegistry,
		srcRegistry:  srcRegistry,
		actionSinks:  closers,
		grpcServer:   grpcServer,
	}, nil
}

// Run starts every background loop, serves gRPC and the metrics listener,
// and blocks until a SIGINT/SIGTERM is received, then drains within the
// configured drain deadline (spec.md §5).
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.storagePool.Run(ctx)
	go a.detQueue.Run(ctx)
	go func() {
		if err := a.ruleRegistry.Watch(ctx); err != nil {
			logger.Errorf("Rule directory watch stopped: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", a.cfg.Input.Vector.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Input.Vector.Address, err)
	}
	go func() {
		logger.Infof("Ingest server listening on %s", a.cfg.Input.Vector.Address)
		if err := a.grpcServer.Serve(lis); err != nil {
			logger.Errorf("gRPC server stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsSrv = &http.Server{Addr: a.cfg.Observability.Address, Handler: mux}
	go func() {
		logger.Infof("Observability listener on %s", a.cfg.Observability.Address)
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Observability listener stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutdown signal received, draining")
	return a.shutdown(cancel)
}

func (a *App) shutdown(cancel context.CancelFunc) error {
	drainDeadline := a.cfg.Ingest.DrainDeadline
	if drainDeadline <= 0 {
		drainDeadline = 30 * time.Second
	}

	stopped := make(chan struct{})
	go func() {
		a.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(drainDeadline):
		logger.Warnf("Drain deadline exceeded, forcing gRPC stop")
		a.grpcServer.Stop()
	}

	if a.metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := a.metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Observability listener shutdown error: %v", err)
		}
	}

	cancel()

	if err := a.storagePool.Close(); err != nil {
		logger.Errorf("Error closing storage pool: %v", err)
	}
	for _, sink := range a.actionSinks {
		if err := sink.Close(); err != nil {
			logger.Warnf("Error closing action sink: %v", err)
		}
	}

	logger.Infof("StrIEM stopped")
	return nil
}
