/*
Package jobqueue implements a clustermanager.Backend that submits a
cluster's scheduler and workers as jobs to an external batch queue (Slurm,
PBS, and similar), restating
dask_gateway_server.managers.jobqueue.{base,slurm} in idiomatic Go.

A Variant supplies the queue-specific command lines (submit/cancel/status)
and output parsers; pkg/jobqueue/slurm is the one concrete Variant in this
module. Backend wraps a Variant with the staged-start protocol shared by
every clustermanager.Backend, a background status tracker that polls the
queue on an interval and resolves per-job liveness channels, and memory
formatting for queue-specific size arguments.

pkg/jobqueue/launcher implements the privileged-helper protocol a gateway
running as root uses to drop privileges to a job's owning user before
touching its staging directory.
*/
package jobqueue
