package storage

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/gatewayd/pkg/security"
	"github.com/cuemby/gatewayd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	key, err := security.GenerateEncryptionKey()
	require.NoError(t, err)
	ring, err := security.NewKeyRing([][]byte{key})
	require.NoError(t, err)

	store, err := Open(context.Background(), "sqlite://:memory:", ring)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newCluster(name string) *types.Cluster {
	now := time.Now()
	return &types.Cluster{
		Name:      name,
		Owner:     "alice",
		APIToken:  []byte("super-secret-token"),
		Status:    types.StatusStarting,
		State:     map[string]any{"phase": "launching"},
		Workers:   map[string]*types.Worker{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetClusterRoundTripsSecrets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := newCluster("c1")
	c.TLSCert = []byte("cert-bytes")
	c.TLSKey = []byte("key-bytes")

	require.NoError(t, store.CreateCluster(ctx, c))

	got, err := store.GetCluster(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.APIToken, got.APIToken)
	assert.Equal(t, c.TLSCert, got.TLSCert)
	assert.Equal(t, c.TLSKey, got.TLSKey)
	assert.Equal(t, c.State, got.State)
	assert.Equal(t, c.Owner, got.Owner)
	assert.Equal(t, types.StatusStarting, got.Status)
}

func TestClusterStateIsEncryptedAtRest(t *testing.T) {
	key, err := security.GenerateEncryptionKey()
	require.NoError(t, err)
	ring, err := security.NewKeyRing([][]byte{key})
	require.NoError(t, err)
	s := &sqliteStore{ring: ring}

	c := newCluster("c1")
	model, err := s.toClusterModel(c)
	require.NoError(t, err)

	assert.NotContains(t, string(model.State), "launching", "state must not be stored as plaintext JSON")

	roundTripped, err := s.fromClusterModel(model)
	require.NoError(t, err)
	assert.Equal(t, c.State, roundTripped.State)
}

func TestGetClusterNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetCluster(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListClustersByOwnerFiltersCorrectly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newCluster("a")
	a.Owner = "alice"
	b := newCluster("b")
	b.Owner = "bob"
	require.NoError(t, store.CreateCluster(ctx, a))
	require.NoError(t, store.CreateCluster(ctx, b))

	aliceClusters, err := store.ListClustersByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceClusters, 1)
	assert.Equal(t, "a", aliceClusters[0].Name)
}

func TestListNonTerminalClustersExcludesStoppedAndFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	running := newCluster("running")
	running.Status = types.StatusRunning
	stopped := newCluster("stopped")
	stopped.Status = types.StatusStopped
	failed := newCluster("failed")
	failed.Status = types.StatusFailed

	for _, c := range []*types.Cluster{running, stopped, failed} {
		require.NoError(t, store.CreateCluster(ctx, c))
	}

	nonTerminal, err := store.ListNonTerminalClusters(ctx)
	require.NoError(t, err)
	require.Len(t, nonTerminal, 1)
	assert.Equal(t, "running", nonTerminal[0].Name)
}

func TestUpdateClusterOfUnknownNameReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	c := newCluster("ghost")
	err := store.UpdateCluster(context.Background(), c)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateClusterPersistsChanges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := newCluster("c1")
	require.NoError(t, store.CreateCluster(ctx, c))

	c.Status = types.StatusRunning
	c.SchedulerAddress = "tcp://10.0.0.1:8786"
	require.NoError(t, store.UpdateCluster(ctx, c))

	got, err := store.GetCluster(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, got.Status)
	assert.Equal(t, "tcp://10.0.0.1:8786", got.SchedulerAddress)
}

func TestDeleteClusterRemovesItsWorkers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := newCluster("c1")
	require.NoError(t, store.CreateCluster(ctx, c))

	w := &types.Worker{Name: "w1", ClusterName: "c1", Status: types.StatusStarting, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.CreateWorker(ctx, w))

	require.NoError(t, store.DeleteCluster(ctx, "c1"))

	_, err := store.GetCluster(ctx, "c1")
	require.ErrorIs(t, err, ErrNotFound)
	workers, err := store.ListWorkers(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, workers)
}

func TestWorkerCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := newCluster("c1")
	require.NoError(t, store.CreateCluster(ctx, c))

	w := &types.Worker{Name: "w1", ClusterName: "c1", Status: types.StatusStarting, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.CreateWorker(ctx, w))

	got, err := store.GetWorker(ctx, "c1", "w1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusStarting, got.Status)

	w.Status = types.StatusRunning
	require.NoError(t, store.UpdateWorker(ctx, w))

	got, err = store.GetWorker(ctx, "c1", "w1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, got.Status)

	require.NoError(t, store.DeleteWorker(ctx, "c1", "w1"))
	_, err = store.GetWorker(ctx, "c1", "w1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListNonTerminalWorkersExcludesStoppedAndFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := newCluster("c1")
	require.NoError(t, store.CreateCluster(ctx, c))

	for _, w := range []*types.Worker{
		{Name: "running", ClusterName: "c1", Status: types.StatusRunning, CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{Name: "stopped", ClusterName: "c1", Status: types.StatusStopped, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	} {
		require.NoError(t, store.CreateWorker(ctx, w))
	}

	nonTerminal, err := store.ListNonTerminalWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, nonTerminal, 1)
	assert.Equal(t, "running", nonTerminal[0].Name)
}

func TestGetClusterAttachesItsWorkers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := newCluster("c1")
	require.NoError(t, store.CreateCluster(ctx, c))
	w := &types.Worker{Name: "w1", ClusterName: "c1", Status: types.StatusRunning, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.CreateWorker(ctx, w))

	got, err := store.GetCluster(ctx, "c1")
	require.NoError(t, err)
	require.Contains(t, got.Workers, "w1")
	assert.Equal(t, types.StatusRunning, got.Workers["w1"].Status)
}
