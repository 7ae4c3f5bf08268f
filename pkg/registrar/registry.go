package registrar

// Addresses is the triple a scheduler posts once it has bound its
// listening endpoints.
type Addresses struct {
	SchedulerAddress string `json:"scheduler_address"`
	DashboardAddress string `json:"dashboard_address"`
	APIAddress       string `json:"api_address"`
}

// WorkerAddress is what a worker posts once it has connected to its
// cluster's scheduler.
type WorkerAddress struct {
	Address string `json:"address"`
}

// Registry is implemented by the lifecycle engine and is the only way the
// HTTP layer touches live cluster/worker state: a decrypt-per-request
// token lookup is avoided by keeping cluster tokens in the engine's
// in-memory record rather than round-tripping through the store.
type Registry interface {
	// TokenFor returns the current API token for clusterName, or false if
	// no such cluster is known to the engine right now.
	TokenFor(clusterName string) ([]byte, bool)

	// ConfirmCluster resolves the pending connect wait for clusterName
	// installed by the lifecycle engine's start procedure. An error here
	// (e.g. cluster unknown, already confirmed) is surfaced as the HTTP
	// response's failure.
	ConfirmCluster(clusterName string, addrs Addresses) error

	// ClusterAddresses returns the last confirmed addresses for
	// clusterName, or false if the cluster is unknown or not yet
	// confirmed.
	ClusterAddresses(clusterName string) (Addresses, bool)

	// ConfirmWorker resolves the pending connect wait for
	// (clusterName, workerName).
	ConfirmWorker(clusterName, workerName string, addr WorkerAddress) error

	// CancelWorker tells the engine a worker is withdrawing before ever
	// confirming (e.g. a graceful self-shutdown).
	CancelWorker(clusterName, workerName string) error
}
