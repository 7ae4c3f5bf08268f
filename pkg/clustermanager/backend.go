package clustermanager

import (
	"context"
	"time"
)

// ClusterInfo is the immutable identity a backend needs to start or stop a
// cluster's scheduler or one of its workers. It is derived from a
// types.Cluster but carries only the fields a backend is allowed to see.
type ClusterInfo struct {
	ClusterName string
	Owner       string
	APIToken    string
	TLSCert     []byte
	TLSKey      []byte

	// APIAddress is where a started scheduler or worker should PUT its
	// connection details back to (the Connection Registrar's base URL).
	APIAddress string
}

// PublishFunc persists a staged-start snapshot. A backend calls it once per
// stage of StartCluster/StartWorker; the lifecycle engine's implementation
// writes the snapshot to the store and updates its in-memory record before
// returning, so that a crash at any point after a publish call leaves
// enough state behind to clean up.
type PublishFunc func(state map[string]any) error

// Timeouts carries the deadlines a backend expects the lifecycle engine to
// enforce around its calls.
type Timeouts struct {
	ClusterStart   time.Duration
	ClusterConnect time.Duration
	WorkerStart    time.Duration
	WorkerConnect  time.Duration
}

// Backend is the contract a cluster manager implementation must satisfy.
//
// StartCluster and StartWorker return nil once the backend has submitted
// the scheduler/worker and is waiting for it to connect back through the
// Connection Registrar; any error returned is treated as a start failure.
// StopCluster and StopWorker must tolerate a nil or partial lastState (the
// entity may have failed before its first publish call) and an
// already-gone backend job; they are called with an ordinary context that
// is not necessarily cancelled for the same reason the engine is cleaning
// up, and implementations should not assume more time than a cleanup
// budget allows.
type Backend interface {
	StartCluster(ctx context.Context, info *ClusterInfo, publish PublishFunc) error
	StopCluster(ctx context.Context, info *ClusterInfo, lastState map[string]any) error

	StartWorker(ctx context.Context, workerName string, info *ClusterInfo, clusterState map[string]any, publish PublishFunc) error
	StopWorker(ctx context.Context, workerName string, lastState map[string]any, info *ClusterInfo, clusterState map[string]any) error

	// IsJobRunning reports a liveness channel for a backend-managed job, if
	// this backend has one. The bool is false when the backend has no
	// job-queue signal to offer (e.g. inprocess, localprocess); in that
	// case the channel is nil and must not be used. When true, a value of
	// false received on the channel means the backend-managed job has
	// died and the entity should be torn down.
	IsJobRunning(jobID string) (<-chan bool, bool)

	Timeouts() Timeouts
}
