package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// JobQueueConfig configures pkg/jobqueue/slurm.Variant (and any future
// Variant) when ClusterManagerClass selects the job-queue backend.
type JobQueueConfig struct {
	StagingDirectory string `yaml:"staging_directory"`
	WorkerSetup      string `yaml:"worker_setup"`
	SchedulerSetup   string `yaml:"scheduler_setup"`
	WorkerCommand    string `yaml:"worker_command"`
	SchedulerCommand string `yaml:"scheduler_command"`

	StatusPollInterval time.Duration `yaml:"status_poll_interval"`
	SubmitCommand      string        `yaml:"submit_command"`
	CancelCommand      string        `yaml:"cancel_command"`
	StatusCommand      string        `yaml:"status_command"`

	Partition string `yaml:"partition"`
	QOS       string `yaml:"qos"`
	Account   string `yaml:"account"`

	WorkerCores     int   `yaml:"worker_cores"`
	SchedulerCores  int   `yaml:"scheduler_cores"`
	WorkerMemory    int64 `yaml:"worker_memory"`
	SchedulerMemory int64 `yaml:"scheduler_memory"`

	// LauncherHelperPath, when set, routes job submission through the
	// privileged launcher helper at this path instead of running the
	// submit command directly as the gateway's own user.
	LauncherHelperPath string `yaml:"launcher_helper_path"`
}

// LocalProcessConfig configures pkg/clustermanager/localprocess when
// ClusterManagerClass selects the local-subprocess backend.
type LocalProcessConfig struct {
	SchedulerCommand string `yaml:"scheduler_command"`
	WorkerCommand    string `yaml:"worker_command"`
}

// Config is the gateway's top-level configuration, loaded from YAML with
// an environment-variable overlay for secret material.
type Config struct {
	GatewayURL string `yaml:"gateway_url"`
	PrivateURL string `yaml:"private_url"`
	PublicURL  string `yaml:"public_url"`

	DBURL         string   `yaml:"db_url"`
	DBEncryptKeys []string `yaml:"db_encrypt_keys"`

	StopClustersOnShutdown bool          `yaml:"stop_clusters_on_shutdown"`
	CheckClusterTimeout    time.Duration `yaml:"check_cluster_timeout"`

	TempDir string `yaml:"temp_dir"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	ClusterManagerClass string `yaml:"cluster_manager_class"`

	ClusterStartTimeout   time.Duration `yaml:"cluster_start_timeout"`
	ClusterConnectTimeout time.Duration `yaml:"cluster_connect_timeout"`
	WorkerStartTimeout    time.Duration `yaml:"worker_start_timeout"`
	WorkerConnectTimeout  time.Duration `yaml:"worker_connect_timeout"`

	JobQueue     JobQueueConfig     `yaml:"job_queue"`
	LocalProcess LocalProcessConfig `yaml:"local_process"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

const (
	// EncryptKeysEnvVar is the ";"-joined, base64-encoded key list consulted
	// when DBEncryptKeys is empty in the YAML file.
	EncryptKeysEnvVar = "DASK_GATEWAY_ENCRYPT_KEYS"

	// WorkerNameEnvVar is exported by pkg/jobqueue into worker subprocess
	// environments so a worker can identify itself back to the scheduler.
	WorkerNameEnvVar = "DASK_GATEWAY_WORKER_NAME"
)

func defaults() Config {
	return Config{
		GatewayURL:             "tls://0.0.0.0:8786",
		PrivateURL:             "http://127.0.0.1:8787",
		PublicURL:              "http://127.0.0.1:8788",
		DBURL:                  "sqlite://:memory:",
		StopClustersOnShutdown: true,
		CheckClusterTimeout:    10 * time.Second,
		TempDir:                os.TempDir(),
		ClusterManagerClass:    "inprocess",
		ClusterStartTimeout:    60 * time.Second,
		ClusterConnectTimeout:  60 * time.Second,
		WorkerStartTimeout:     60 * time.Second,
		WorkerConnectTimeout:   60 * time.Second,
		LogLevel:               "info",
	}
}

// Load reads path as YAML over top of the package defaults, overlays
// DASK_GATEWAY_ENCRYPT_KEYS when the file didn't set DBEncryptKeys, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if len(cfg.DBEncryptKeys) == 0 {
		if raw, ok := os.LookupEnv(EncryptKeysEnvVar); ok && raw != "" {
			cfg.DBEncryptKeys = strings.Split(raw, ";")
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DecodeEncryptKeys base64-decodes every configured key. It does not check
// key length; pkg/security.NewKeyRing does that and its error is what
// Validate surfaces as a ConfigError, so the two checks can't drift apart.
func DecodeEncryptKeys(keys []string) ([][]byte, error) {
	out := make([][]byte, 0, len(keys))
	for i, k := range keys {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("config: db_encrypt_keys[%d]: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}
