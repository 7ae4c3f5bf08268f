/*
Package clustermanager defines the contract a cluster backend must satisfy
to be driven by the lifecycle engine: start/stop a cluster's scheduler and
its workers, and report whether a backend-specific job is still alive.

Go has no generators, so the staged-start protocol described by the
specification's Python original (a generator that yields intermediate
state) is restated as a callback: StartCluster and StartWorker call the
supplied publish function once per stage, handing back the state the
backend would need to clean up if asked to stop right after that stage.
The caller (pkg/lifecycle) uses publish to persist the snapshot and update
its in-memory record before returning control to the backend.

Two concrete backends live in subpackages: inprocess (goroutines, for
tests and embedded mode) and localprocess (os/exec subprocesses). The
third, for batch schedulers such as Slurm, is jobqueue.Backend in
pkg/jobqueue.
*/
package clustermanager
