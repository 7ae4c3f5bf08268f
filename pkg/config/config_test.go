package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/gatewayd/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := defaults()
	cfg.DBURL = "sqlite://:memory:"
	cfg.StopClustersOnShutdown = true
	return cfg
}

func TestValidateAcceptsVolatileDBWithStopOnShutdown(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Validate(&cfg))
}

func TestValidateRejectsVolatileDBWithoutStopOnShutdown(t *testing.T) {
	cfg := validConfig()
	cfg.StopClustersOnShutdown = false
	err := Validate(&cfg)
	require.Error(t, err)
	var cerr *lifecycle.ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestValidateRejectsNonVolatileDBWithoutKeys(t *testing.T) {
	cfg := validConfig()
	cfg.DBURL = "sqlite:///var/lib/gatewayd/db.sqlite"
	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db_encrypt_keys")
}

func TestValidateAcceptsNonVolatileDBWithValidKey(t *testing.T) {
	cfg := validConfig()
	cfg.DBURL = "sqlite:///var/lib/gatewayd/db.sqlite"
	cfg.DBEncryptKeys = []string{base64.StdEncoding.EncodeToString(make([]byte, 32))}
	require.NoError(t, Validate(&cfg))
}

func TestValidateRejectsMalformedKey(t *testing.T) {
	cfg := validConfig()
	cfg.DBURL = "sqlite:///var/lib/gatewayd/db.sqlite"
	cfg.DBEncryptKeys = []string{"not-base64!!"}
	require.Error(t, Validate(&cfg))
}

func TestValidateRejectsWrongLengthKey(t *testing.T) {
	cfg := validConfig()
	cfg.DBURL = "sqlite:///var/lib/gatewayd/db.sqlite"
	cfg.DBEncryptKeys = []string{base64.StdEncoding.EncodeToString(make([]byte, 16))}
	require.Error(t, Validate(&cfg))
}

func TestValidateRejectsUnknownClusterManagerClass(t *testing.T) {
	cfg := validConfig()
	cfg.ClusterManagerClass = "kubernetes"
	require.Error(t, Validate(&cfg))
}

func TestValidateRequiresStagingDirectoryForJobQueue(t *testing.T) {
	cfg := validConfig()
	cfg.ClusterManagerClass = "jobqueue.slurm"
	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging_directory")

	cfg.JobQueue.StagingDirectory = "{{.Home}}/{{.ClusterName}}"
	require.NoError(t, Validate(&cfg))
}

func TestValidateRequiresPrivateAndPublicURL(t *testing.T) {
	cfg := validConfig()
	cfg.PrivateURL = ""
	require.Error(t, Validate(&cfg))

	cfg = validConfig()
	cfg.PublicURL = ""
	require.Error(t, Validate(&cfg))
}

func TestDecodeEncryptKeysRoundTrips(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	decoded, err := DecodeEncryptKeys([]string{encoded})
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, raw, decoded[0])
}

func TestLoadOverlaysEncryptKeysFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatewayd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_url: "sqlite:///var/lib/gatewayd/db.sqlite"
private_url: "http://127.0.0.1:8787"
public_url: "http://127.0.0.1:8788"
`), 0o600))

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	t.Setenv(EncryptKeysEnvVar, key)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{key}, cfg.DBEncryptKeys)
}

func TestLoadFailsValidationWithoutEncryptKeysOrEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatewayd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_url: "sqlite:///var/lib/gatewayd/db.sqlite"
private_url: "http://127.0.0.1:8787"
public_url: "http://127.0.0.1:8788"
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
