package launcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStagingPathRejectsTraversal(t *testing.T) {
	_, err := ResolveStagingPath("/var/gateway/staging", "cluster-1", "../../etc/passwd")
	assert.ErrorIs(t, err, ErrPathEscapesStaging)
}

func TestResolveStagingPathAllowsNested(t *testing.T) {
	p, err := ResolveStagingPath("/var/gateway/staging", "cluster-1", "logs/scheduler.log")
	require.NoError(t, err)
	assert.Equal(t, "/var/gateway/staging/cluster-1/logs/scheduler.log", p)
}

func TestResolveStagingPathAllowsRoot(t *testing.T) {
	p, err := ResolveStagingPath("/var/gateway/staging", "cluster-1", ".")
	require.NoError(t, err)
	assert.Equal(t, "/var/gateway/staging/cluster-1", p)
}
