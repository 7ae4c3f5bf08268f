package jobqueue

import "github.com/cuemby/gatewayd/pkg/clustermanager"

// Variant supplies the queue-specific command construction and output
// parsing Backend needs to drive a particular batch scheduler.
// pkg/jobqueue/slurm is the one concrete implementation in this module; a
// Variant is expected to hold its own copy of the relevant Config fields
// (staging directory template, core/memory requests, setup scripts,
// partition/qos/account) the way the Python original's concrete manager
// subclasses do.
type Variant interface {
	// BuildSubmitCmd returns the argv, subprocess environment, and script
	// body (written to the job's startup script / piped to its stdin) to
	// submit either a scheduler (worker == "") or a named worker.
	BuildSubmitCmd(info *clustermanager.ClusterInfo, worker string, clusterState map[string]any) (argv []string, env map[string]string, script string, err error)

	// BuildCancelCmd returns the argv to cancel a submitted job.
	BuildCancelCmd(jobID string) []string

	// BuildStatusCmd returns the argv to query the status of the given
	// job IDs in one call.
	BuildStatusCmd(jobIDs []string) []string

	// ParseJobID extracts the queue-assigned job ID from a submit
	// command's stdout.
	ParseJobID(stdout string) string

	// ParseJobStates splits a status command's stdout into job IDs that
	// are running/pending-but-alive and job IDs that have failed. IDs
	// absent from both are treated as still pending.
	ParseJobStates(stdout string) (running []string, failed []string)

	// IsAlreadyGone reports whether a cancel command's failure output
	// means the job had already finished, so Backend's cancel path does
	// not treat it as an error (ported from Slurm's "Job has finished" idiom in
	// the original source's stop_job).
	IsAlreadyGone(stderr string) bool
}
