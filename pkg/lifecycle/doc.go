// Package lifecycle implements the cluster and worker staged-start
// procedure: generating credentials, draining a clustermanager.Backend's
// publish callback, racing a connection deadline against the Connection
// Registrar and a backend's job-liveness signal, and running cleanup on
// any failure path. It is the sole mutator of every Cluster and Worker
// record it supervises.
package lifecycle
