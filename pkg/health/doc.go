/*
Package health provides health check mechanisms used by the recovery
controller to decide whether a persisted, supposedly-RUNNING cluster is
actually alive before re-attaching supervision to it.

# Architecture

	┌─────────────────────────────────────────────────────┐
	│                 Checker Interface                    │
	│  • Check(ctx) Result                                 │
	│  • Type() CheckType                                  │
	└─────────┬─────────────────────────────────────────────┘
	          │
	     ┌────┴─────┐
	     ▼          ▼
	┌────────┐  ┌──────┐
	│  HTTP  │  │ TCP  │
	│Checker │  │Checker│
	└────────┘  └──────┘
	     │          │
	     ▼          ▼
	  GET /      Connect
	  health      :port

# Health Check Types

## HTTP Health Checks

HTTP checks perform an HTTP request against a cluster's dashboard or API
address:

	Check Type: HTTP
	Configuration:
	├── URL: http://scheduler-addr:8787/health
	├── Method: GET, POST, HEAD
	├── Headers: Custom HTTP headers
	├── Expected Status: 200-399 (configurable)
	└── Timeout: check_cluster_timeout

## TCP Health Checks

TCP checks verify that a scheduler's address is accepting connections
without sending any data — useful when a backend doesn't expose an HTTP
endpoint at all:

	Check Type: TCP
	Configuration:
	├── Address: scheduler-addr:8786
	└── Timeout: check_cluster_timeout

# Status Tracking

Status implements hysteresis so a single transient failure doesn't flip a
cluster from healthy to unhealthy:

	Healthy → 1 failure → still healthy
	Healthy → Retries failures → unhealthy

This package does not itself decide what to do with an unhealthy result —
that decision belongs to the caller (the recovery controller treats a
failed check on a RUNNING cluster as a RecoveryMismatchError and proceeds
to cleanup; see pkg/recovery).

# Usage

	checker := health.NewTCPChecker(cluster.SchedulerAddress)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.CheckClusterTimeout)
	defer cancel()
	result := checker.Check(ctx)
	if !result.Healthy {
		// treat cluster as dead, run StopCluster with its persisted state
	}

# See Also

  - pkg/recovery - consumes Checker results at startup
  - pkg/lifecycle - the broader state machine this package supports
*/
package health
