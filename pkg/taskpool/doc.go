/*
Package taskpool tracks the goroutines that supervise non-terminal clusters
and workers, so the gateway can cancel and wait for all of them together at
shutdown instead of leaking a goroutine per entity.

Spawn starts a function in a goroutine derived from a cancellable child of
the caller's context and tracks it under a generated handle. Close cancels
every tracked goroutine, waits up to a grace period for them to exit, and
logs (rather than blocks on) any still running past that grace.

	pool := taskpool.New()
	h := pool.Spawn(ctx, "cluster:my-cluster", func(ctx context.Context) {
		superviseCluster(ctx, cluster)
	})
	defer pool.Close(30 * time.Second)
*/
package taskpool
