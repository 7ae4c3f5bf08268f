package recovery

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/gatewayd/pkg/health"
	"github.com/cuemby/gatewayd/pkg/lifecycle"
	"github.com/cuemby/gatewayd/pkg/log"
	"github.com/cuemby/gatewayd/pkg/storage"
	"github.com/cuemby/gatewayd/pkg/types"
)

// Controller runs the startup reconciliation pass described for
// pkg/recovery: every cluster the store still considers non-terminal is
// either resumed or torn down before the rest of the gateway starts.
type Controller struct {
	store        storage.Store
	engine       *lifecycle.Engine
	checkTimeout time.Duration
}

// NewController wires a Controller. checkTimeout bounds each cluster's
// recovery health check (CheckClusterTimeout in pkg/config).
func NewController(store storage.Store, engine *lifecycle.Engine, checkTimeout time.Duration) *Controller {
	if checkTimeout <= 0 {
		checkTimeout = 10 * time.Second
	}
	return &Controller{store: store, engine: engine, checkTimeout: checkTimeout}
}

// Run reconciles every non-terminal cluster concurrently and waits for all
// of them to finish. A single cluster's reconciliation failure is logged
// and does not abort the others or the gateway's own startup.
func (c *Controller) Run(ctx context.Context) error {
	clusters, err := c.store.ListNonTerminalClusters(ctx)
	if err != nil {
		return fmt.Errorf("recovery: list non-terminal clusters: %w", err)
	}
	if len(clusters) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, cl := range clusters {
		cl := cl
		g.Go(func() error {
			c.reconcileCluster(gctx, cl)
			return nil
		})
	}
	return g.Wait()
}

func (c *Controller) reconcileCluster(ctx context.Context, cl *types.Cluster) {
	logger := log.WithCluster(cl.Name)

	switch cl.Status {
	case types.StatusRunning:
		if c.healthy(ctx, cl) {
			logger.Info().Msg("cluster passed recovery health check, resuming supervision")
			c.engine.ResumeCluster(cl)
			c.reconcileWorkers(ctx, cl)
			return
		}
		logger.Warn().Msg("cluster failed recovery health check, tearing down")
		c.terminate(cl, "failed health check during recovery")

	case types.StatusStarted:
		logger.Warn().Msg("cluster never confirmed a connection before gateway restart, tearing down")
		c.terminate(cl, "never confirmed a connection before gateway restart")

	case types.StatusStarting, types.StatusStopping:
		logger.Warn().Str("status", string(cl.Status)).Msg("cluster left mid-transition by a prior gateway process, tearing down")
		c.terminate(cl, fmt.Sprintf("found in %s state at startup", cl.Status))

	default:
		logger.Warn().Str("status", string(cl.Status)).Msg("unexpected non-terminal status at recovery, tearing down")
		c.terminate(cl, fmt.Sprintf("unexpected %s state at startup", cl.Status))
	}
}

func (c *Controller) terminate(cl *types.Cluster, reason string) {
	if err := c.engine.RecoverTerminateCluster(cl, reason); err != nil {
		log.WithCluster(cl.Name).Error().Err(err).Msg("recovery teardown failed")
	}
}

func (c *Controller) reconcileWorkers(ctx context.Context, cl *types.Cluster) {
	workers, err := c.store.ListWorkers(ctx, cl.Name)
	if err != nil {
		log.WithCluster(cl.Name).Error().Err(err).Msg("failed to list workers for recovery")
		return
	}
	for _, w := range workers {
		if w.Status.Terminal() {
			continue
		}
		logger := log.WithWorker(cl.Name, w.Name)
		if w.Status == types.StatusRunning {
			logger.Info().Msg("worker resumed under recovered cluster")
			c.engine.ResumeWorker(cl, w)
			continue
		}
		logger.Warn().Str("status", string(w.Status)).Msg("worker left mid-transition by a prior gateway process, tearing down")
		if err := c.engine.RecoverTerminateWorker(cl, w, fmt.Sprintf("found in %s state at startup", w.Status)); err != nil {
			logger.Error().Err(err).Msg("recovery teardown failed")
		}
	}
}

// healthy dials a RUNNING cluster's scheduler address. A cluster with no
// recorded address (shouldn't happen for StatusRunning, but the record is
// untrusted after a crash) is treated as unhealthy rather than panicking.
func (c *Controller) healthy(ctx context.Context, cl *types.Cluster) bool {
	if cl.SchedulerAddress == "" {
		return false
	}
	checker := health.NewTCPChecker(dialAddress(cl.SchedulerAddress))
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()
	return checker.Check(checkCtx).Healthy
}

// dialAddress strips a scheme from a scheduler address if present, since
// health.TCPChecker expects a bare host:port for net.Dialer.
func dialAddress(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
