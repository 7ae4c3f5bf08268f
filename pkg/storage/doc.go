/*
Package storage provides sqlite-backed persistence for cluster and worker
records.

Clusters and workers are stored in two tables, clusters and workers, queried
through uptrace/bun against a modernc.org/sqlite connection (pure Go, no
cgo). The database is addressed by a "sqlite://" URL, including
"sqlite://:memory:" for tests, matching the gateway's general db_url
configuration convention.

# Encryption

Store does not let plaintext secrets reach disk: a cluster's APIToken,
TLSCert, and TLSKey are sealed with a security.KeyRing before insert or
update and opened again on every read. A Store is therefore always
constructed with a KeyRing, never a raw key.

# Schema

	clusters(name PK, owner, api_token, tls_cert, tls_key, status,
	         state blob, scheduler_address, dashboard_address,
	         api_address, created_at, updated_at)
	workers(cluster_name, name PK(cluster_name, name), status,
	        state blob, created_at, updated_at)

state is stored as a blob column holding the KeyRing-sealed JSON of the
backend-specific snapshot published during staged start; its contents are
opaque to this package.

# Usage

	ring, _ := security.NewKeyRing(cfg.EncryptionKeys)
	store, err := storage.Open(ctx, cfg.DBURL, ring)
	defer store.Close()

	clusters, err := store.ListNonTerminalClusters(ctx)

# See Also

  - pkg/security for the KeyRing this package depends on
  - pkg/recovery, the primary consumer of ListNonTerminalClusters, which
    reads each recovered cluster's workers with ListWorkers
*/
package storage
