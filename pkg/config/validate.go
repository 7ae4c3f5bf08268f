package config

import (
	"strings"

	"github.com/cuemby/gatewayd/pkg/lifecycle"
	"github.com/cuemby/gatewayd/pkg/security"
)

// Validate enforces the linked-option invariants a YAML file alone can't
// express: an in-memory database can't outlive clusters left running past
// shutdown, and a non-volatile database always needs an encryption ring.
func Validate(cfg *Config) error {
	volatile := strings.HasPrefix(cfg.DBURL, "sqlite://:memory:") || cfg.DBURL == "sqlite::memory:"

	if len(cfg.DBEncryptKeys) == 0 {
		if !volatile {
			return &lifecycle.ConfigError{Msg: "db_encrypt_keys (or " + EncryptKeysEnvVar + ") is required for a non-volatile db_url"}
		}
		if !cfg.StopClustersOnShutdown {
			return &lifecycle.ConfigError{Msg: "an in-memory db_url with no db_encrypt_keys requires stop_clusters_on_shutdown: true, since nothing could decrypt a recovered cluster's secrets after a restart"}
		}
	} else {
		keys, err := DecodeEncryptKeys(cfg.DBEncryptKeys)
		if err != nil {
			return &lifecycle.ConfigError{Msg: err.Error()}
		}
		if _, err := security.NewKeyRing(keys); err != nil {
			return &lifecycle.ConfigError{Msg: err.Error()}
		}
	}

	if volatile && !cfg.StopClustersOnShutdown {
		return &lifecycle.ConfigError{Msg: "stop_clusters_on_shutdown: false requires a non-volatile db_url"}
	}

	switch cfg.ClusterManagerClass {
	case "inprocess", "localprocess", "jobqueue.slurm":
	default:
		return &lifecycle.ConfigError{Msg: "cluster_manager_class must be one of inprocess, localprocess, jobqueue.slurm, got " + cfg.ClusterManagerClass}
	}

	if cfg.ClusterManagerClass == "jobqueue.slurm" {
		if cfg.JobQueue.StagingDirectory == "" {
			return &lifecycle.ConfigError{Msg: "job_queue.staging_directory is required for cluster_manager_class jobqueue.slurm"}
		}
	}

	if cfg.PrivateURL == "" {
		return &lifecycle.ConfigError{Msg: "private_url is required"}
	}
	if cfg.PublicURL == "" {
		return &lifecycle.ConfigError{Msg: "public_url is required"}
	}

	return nil
}
