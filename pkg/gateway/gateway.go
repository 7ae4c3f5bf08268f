package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/gatewayd/pkg/clustermanager/localprocess"
	"github.com/cuemby/gatewayd/pkg/config"
	"github.com/cuemby/gatewayd/pkg/events"
	"github.com/cuemby/gatewayd/pkg/lifecycle"
	"github.com/cuemby/gatewayd/pkg/log"
	"github.com/cuemby/gatewayd/pkg/metrics"
	"github.com/cuemby/gatewayd/pkg/recovery"
	"github.com/cuemby/gatewayd/pkg/registrar"
	"github.com/cuemby/gatewayd/pkg/security"
	"github.com/cuemby/gatewayd/pkg/storage"
	"github.com/cuemby/gatewayd/pkg/taskpool"
)

const (
	metricsCollectInterval = 15 * time.Second
	shutdownHandlerGrace   = 10 * time.Second
	version                = "0.1.0"
)

// Gateway owns every long-lived component wired from a config.Config and
// the two HTTP servers (Connection Registrar and metrics/health) built
// around them. Run blocks until ctx is cancelled or a server fails.
type Gateway struct {
	cfg *config.Config

	store  storage.Store
	pool   *taskpool.Pool
	broker *events.Broker
	engine *lifecycle.Engine

	registrarServer *http.Server
	metricsServer   *http.Server
	collector       *metrics.Collector

	isLocalProcess bool
}

// New wires every gateway component from cfg but does not start serving;
// call Run to accept connections and block. A failure here means the
// gateway never started: the caller should log and exit non-zero.
func New(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	ring, err := keyRingFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: build key ring: %w", err)
	}

	store, err := storage.Open(ctx, cfg.DBURL, ring)
	if err != nil {
		return nil, fmt.Errorf("gateway: open store: %w", err)
	}

	pool := taskpool.New()

	backend, err := newBackend(cfg, pool)
	if err != nil {
		store.Close()
		return nil, err
	}

	broker := events.NewBroker()
	broker.Start()

	engine := lifecycle.NewEngine(store, backend, pool, broker, lifecycle.RealClock, cfg.PublicURL)

	regServer := registrar.NewServer(engine)
	registrarHTTP := &http.Server{
		Addr:    mustHost(cfg.PrivateURL),
		Handler: regServer.Handler(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsMux.HandleFunc("/health", metrics.HealthHandler())
	metricsMux.HandleFunc("/ready", metrics.ReadyHandler())
	metricsMux.HandleFunc("/live", metrics.LivenessHandler())
	metricsHTTP := &http.Server{
		Addr:    mustHost(cfg.GatewayURL),
		Handler: metricsMux,
	}

	metrics.SetVersion(version)
	metrics.RegisterComponent("store", true, "")
	metrics.RegisterComponent("registrar", true, "")

	return &Gateway{
		cfg:             cfg,
		store:           store,
		pool:            pool,
		broker:          broker,
		engine:          engine,
		registrarServer: registrarHTTP,
		metricsServer:   metricsHTTP,
		collector:       metrics.NewCollector(store),
		isLocalProcess:  cfg.ClusterManagerClass == "localprocess",
	}, nil
}

// Run replays persisted cluster/worker state through pkg/recovery, starts
// both HTTP servers and the metrics collector, then blocks until ctx is
// cancelled. Shutdown is always ordered: stop accepting new requests
// first, then tear down clusters only if configured to, then release the
// store and subprocess resources last.
func (g *Gateway) Run(ctx context.Context) error {
	recoveryCtx, cancel := context.WithTimeout(ctx, g.cfg.CheckClusterTimeout*4+30*time.Second)
	controller := recovery.NewController(g.store, g.engine, g.cfg.CheckClusterTimeout)
	err := controller.Run(recoveryCtx)
	cancel()
	if err != nil {
		log.Logger.Error().Err(err).Msg("recovery pass reported an error")
		metrics.RegisterComponent("recovery", false, err.Error())
	} else {
		metrics.RegisterComponent("recovery", true, "")
	}

	g.collector.Start(metricsCollectInterval)

	errCh := make(chan error, 2)
	go func() {
		if err := g.registrarServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("gateway: registrar server: %w", err)
		}
	}()
	go func() {
		if err := g.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("gateway: metrics server: %w", err)
		}
	}()

	log.Logger.Info().Str("private_url", g.cfg.PrivateURL).Str("gateway_url", g.cfg.GatewayURL).Msg("gatewayd serving")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.Logger.Error().Err(runErr).Msg("server failed, shutting down")
	}

	g.shutdown()
	return runErr
}

func (g *Gateway) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownHandlerGrace)
	defer cancel()

	_ = g.registrarServer.Shutdown(shutdownCtx)
	_ = g.metricsServer.Shutdown(shutdownCtx)

	if g.cfg.StopClustersOnShutdown {
		g.stopAllClusters(shutdownCtx)
	}

	g.collector.Stop()
	g.broker.Stop()
	if err := g.pool.Close(shutdownHandlerGrace); err != nil {
		log.Logger.Warn().Err(err).Msg("task pool did not drain cleanly")
	}
	if g.isLocalProcess {
		localprocess.KillAll()
	}
	if err := g.store.Close(); err != nil {
		log.Logger.Warn().Err(err).Msg("failed to close store")
	}
}

func (g *Gateway) stopAllClusters(ctx context.Context) {
	clusters, err := g.store.ListClusters(ctx)
	if err != nil {
		log.Logger.Error().Err(err).Msg("failed to list clusters for shutdown")
		return
	}
	for _, c := range clusters {
		if c.Status.Terminal() {
			continue
		}
		if err := g.engine.StopCluster(ctx, c.Name); err != nil {
			log.WithCluster(c.Name).Warn().Err(err).Msg("failed to stop cluster during shutdown")
		}
	}
}

// keyRingFor builds the store's encryption key ring from configured keys,
// or generates a throwaway one when the config validated with none: an
// in-memory database that nothing will outlive still needs a live key for
// the store's encrypt-on-write columns.
func keyRingFor(cfg *config.Config) (*security.KeyRing, error) {
	if len(cfg.DBEncryptKeys) == 0 {
		key, err := security.GenerateEncryptionKey()
		if err != nil {
			return nil, err
		}
		return security.NewKeyRing([][]byte{key})
	}
	keys, err := config.DecodeEncryptKeys(cfg.DBEncryptKeys)
	if err != nil {
		return nil, err
	}
	return security.NewKeyRing(keys)
}
