/*
Package types defines the core data structures shared across the gateway:
Cluster, Worker, User, and the Status enum that drives both of their
lifecycles.

# Core Types

Cluster represents one scheduler process and its workers, owned by a User.
Worker represents a single compute process attached to a cluster's
scheduler. Both carry a Status and an opaque State map: the last snapshot
published by a backend's staged start, which is also what gets handed back
to the backend on stop.

# Status

	STARTING -> STARTED -> RUNNING -> STOPPING -> {STOPPED, FAILED}

STARTING, STARTED, and RUNNING may all transition directly to STOPPING.
STOPPED and FAILED are terminal; Status.Terminal reports this.

# Snapshots

Cluster.Snapshot and Worker.Snapshot return shallow copies safe to hand to
a goroutine that must not observe later mutation of the engine's live
record — the lifecycle engine owns the canonical Cluster/Worker value and
everyone else works from a snapshot.

# See Also

  - pkg/lifecycle owns the state machine that drives Status transitions
  - pkg/storage persists these types
*/
package types
