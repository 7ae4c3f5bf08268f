package storage

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createClusterTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*clusterModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createWorkerTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*workerModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createClusterOwnerIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*clusterModel)(nil)).
		Index("idx_clusters_owner").
		Column("owner").
		IfNotExists().
		Exec(ctx)
	return err
}

func createClusterStatusIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*clusterModel)(nil)).
		Index("idx_clusters_status").
		Column("status").
		IfNotExists().
		Exec(ctx)
	return err
}

func createWorkerStatusIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*workerModel)(nil)).
		Index("idx_workers_status").
		Column("status").
		IfNotExists().
		Exec(ctx)
	return err
}

// initSchema creates the clusters and workers tables and their indexes
// inside a single transaction. It is idempotent.
func initSchema(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := createClusterTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createWorkerTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createClusterOwnerIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createClusterStatusIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createWorkerStatusIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}
