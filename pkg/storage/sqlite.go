package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cuemby/gatewayd/pkg/security"
	"github.com/cuemby/gatewayd/pkg/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

// sqliteStore is the default Store implementation, backed by sqlite
// through modernc.org/sqlite (pure Go, no cgo) and queried with bun.
type sqliteStore struct {
	db  *bun.DB
	ring *security.KeyRing
}

// Open connects to the sqlite database named by dbURL and ensures the
// schema exists. dbURL accepts the "sqlite://" family used by the gateway's
// configuration, including "sqlite://:memory:" for tests, as well as a bare
// modernc.org/sqlite DSN.
//
// ring encrypts and decrypts the Cluster and Worker secret columns
// (APIToken, TLSCert, TLSKey, State) on every write and read.
func Open(ctx context.Context, dbURL string, ring *security.KeyRing) (Store, error) {
	dsn := strings.TrimPrefix(dbURL, "sqlite://")
	if dsn == ":memory:" || dsn == "" {
		dsn = "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// A pooled :memory: database would hand out a fresh, empty
		// database to each connection.
		sqldb.SetMaxOpenConns(1)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}

	return &sqliteStore{db: db, ring: ring}, nil
}

func (s *sqliteStore) encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	return s.ring.Encrypt(plaintext)
}

func (s *sqliteStore) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	return s.ring.Decrypt(ciphertext)
}

func (s *sqliteStore) CreateCluster(ctx context.Context, c *types.Cluster) error {
	cm, err := s.toClusterModel(c)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(cm).Exec(ctx)
	return err
}

func (s *sqliteStore) GetCluster(ctx context.Context, name string) (*types.Cluster, error) {
	cm := new(clusterModel)
	err := s.db.NewSelect().Model(cm).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cluster, err := s.fromClusterModel(cm)
	if err != nil {
		return nil, err
	}
	workers, err := s.ListWorkers(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, w := range workers {
		cluster.Workers[w.Name] = w
	}
	return cluster, nil
}

func (s *sqliteStore) ListClusters(ctx context.Context) ([]*types.Cluster, error) {
	return s.listClustersWhere(ctx, nil)
}

func (s *sqliteStore) ListClustersByOwner(ctx context.Context, owner string) ([]*types.Cluster, error) {
	return s.listClustersWhere(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("owner = ?", owner)
	})
}

func (s *sqliteStore) ListNonTerminalClusters(ctx context.Context) ([]*types.Cluster, error) {
	return s.listClustersWhere(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("status NOT IN (?, ?)", string(types.StatusStopped), string(types.StatusFailed))
	})
}

func (s *sqliteStore) listClustersWhere(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]*types.Cluster, error) {
	var models []*clusterModel
	q := s.db.NewSelect().Model(&models).Order("name ASC")
	if filter != nil {
		q = filter(q)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	clusters := make([]*types.Cluster, 0, len(models))
	for _, cm := range models {
		cluster, err := s.fromClusterModel(cm)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}
	return clusters, nil
}

func (s *sqliteStore) UpdateCluster(ctx context.Context, c *types.Cluster) error {
	cm, err := s.toClusterModel(c)
	if err != nil {
		return err
	}
	res, err := s.db.NewUpdate().Model(cm).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (s *sqliteStore) DeleteCluster(ctx context.Context, name string) error {
	if _, err := s.db.NewDelete().Model((*workerModel)(nil)).Where("cluster_name = ?", name).Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewDelete().Model((*clusterModel)(nil)).Where("name = ?", name).Exec(ctx)
	return err
}

func (s *sqliteStore) CreateWorker(ctx context.Context, w *types.Worker) error {
	wm, err := s.toWorkerModel(w)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(wm).Exec(ctx)
	return err
}

func (s *sqliteStore) GetWorker(ctx context.Context, clusterName, name string) (*types.Worker, error) {
	wm := new(workerModel)
	err := s.db.NewSelect().Model(wm).
		Where("cluster_name = ? AND name = ?", clusterName, name).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.fromWorkerModel(wm)
}

func (s *sqliteStore) ListWorkers(ctx context.Context, clusterName string) ([]*types.Worker, error) {
	var models []*workerModel
	err := s.db.NewSelect().Model(&models).
		Where("cluster_name = ?", clusterName).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	workers := make([]*types.Worker, 0, len(models))
	for _, wm := range models {
		w, err := s.fromWorkerModel(wm)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, nil
}

func (s *sqliteStore) ListNonTerminalWorkers(ctx context.Context) ([]*types.Worker, error) {
	var models []*workerModel
	err := s.db.NewSelect().Model(&models).
		Where("status NOT IN (?, ?)", string(types.StatusStopped), string(types.StatusFailed)).
		Order("cluster_name ASC, name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	workers := make([]*types.Worker, 0, len(models))
	for _, wm := range models {
		w, err := s.fromWorkerModel(wm)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, nil
}

func (s *sqliteStore) UpdateWorker(ctx context.Context, w *types.Worker) error {
	wm, err := s.toWorkerModel(w)
	if err != nil {
		return err
	}
	res, err := s.db.NewUpdate().Model(wm).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (s *sqliteStore) DeleteWorker(ctx context.Context, clusterName, name string) error {
	_, err := s.db.NewDelete().Model((*workerModel)(nil)).
		Where("cluster_name = ? AND name = ?", clusterName, name).
		Exec(ctx)
	return err
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
