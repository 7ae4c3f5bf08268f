package storage

import (
	"context"
	"errors"

	"github.com/cuemby/gatewayd/pkg/types"
)

// ErrNotFound is returned when a lookup by name finds no matching row.
var ErrNotFound = errors.New("storage: not found")

// Store persists Cluster and Worker records across gateway restarts.
//
// Secret fields (APIToken, TLSCert, TLSKey) are encrypted at rest by the
// implementation before being written and decrypted on read; callers
// always see plaintext bytes.
type Store interface {
	CreateCluster(ctx context.Context, cluster *types.Cluster) error
	GetCluster(ctx context.Context, name string) (*types.Cluster, error)
	ListClusters(ctx context.Context) ([]*types.Cluster, error)
	// ListClustersByOwner returns only clusters owned by owner.
	ListClustersByOwner(ctx context.Context, owner string) ([]*types.Cluster, error)
	// ListNonTerminalClusters returns clusters whose Status is not STOPPED
	// or FAILED, for use by the recovery controller at startup.
	ListNonTerminalClusters(ctx context.Context) ([]*types.Cluster, error)
	UpdateCluster(ctx context.Context, cluster *types.Cluster) error
	DeleteCluster(ctx context.Context, name string) error

	CreateWorker(ctx context.Context, worker *types.Worker) error
	GetWorker(ctx context.Context, clusterName, name string) (*types.Worker, error)
	ListWorkers(ctx context.Context, clusterName string) ([]*types.Worker, error)
	ListNonTerminalWorkers(ctx context.Context) ([]*types.Worker, error)
	UpdateWorker(ctx context.Context, worker *types.Worker) error
	DeleteWorker(ctx context.Context, clusterName, name string) error

	// Close releases the underlying database handle.
	Close() error
}
