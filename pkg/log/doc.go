/*
Package log provides structured logging built on zerolog.

A single global zerolog.Logger is configured once via Init and used
throughout the gateway. Init chooses between JSON output (production) and
a human-readable console writer (local development) and sets the minimum
level to emit.

# Context Loggers

WithComponent, WithCluster, and WithWorker return a child logger with
extra fields attached, so a cluster's or worker's name appears on every
line emitted while handling it without threading a logger argument through
every function:

	clusterLog := log.WithCluster(cluster.Name)
	clusterLog.Info().Msg("scheduler reachable")

	workerLog := log.WithWorker(cluster.Name, worker.Name)
	workerLog.Error().Err(err).Msg("start failed")

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("gateway starting")
	log.Logger.Error().Err(err).Str("cluster_name", name).Msg("start failed")
*/
package log
