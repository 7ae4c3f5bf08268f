package storage

import (
	"encoding/json"
	"time"

	"github.com/cuemby/gatewayd/pkg/types"
	"github.com/uptrace/bun"
)

type clusterModel struct {
	bun.BaseModel `bun:"table:clusters"`

	Name  string `bun:"name,pk"`
	Owner string `bun:"owner,notnull"`

	// APIToken, TLSCert, TLSKey, and State hold ciphertext produced by the
	// configured security.KeyRing, never plaintext. State is the backend's
	// opaque staged-start snapshot (e.g. job ids, subprocess pids) and is
	// handed back to a backend's Stop call verbatim, so it is as sensitive
	// as the credentials it can contain.
	APIToken []byte `bun:"api_token,type:blob"`
	TLSCert  []byte `bun:"tls_cert,type:blob"`
	TLSKey   []byte `bun:"tls_key,type:blob"`

	Status           string `bun:"status,notnull"`
	State            []byte `bun:"state,type:blob"`
	SchedulerAddress string `bun:"scheduler_address"`
	DashboardAddress string `bun:"dashboard_address"`
	APIAddress       string `bun:"api_address"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type workerModel struct {
	bun.BaseModel `bun:"table:workers"`

	ClusterName string `bun:"cluster_name,pk"`
	Name        string `bun:"name,pk"`

	Status string `bun:"status,notnull"`
	State  []byte `bun:"state,type:blob"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// encryptState marshals state to JSON and seals it with the store's
// KeyRing, the same treatment as APIToken/TLSCert/TLSKey: a backend's
// staged-start snapshot can carry job-queue credentials or other
// backend-specific secrets and is not safe to persist in cleartext.
func (s *sqliteStore) encryptState(state map[string]any) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	plaintext, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return s.encrypt(plaintext)
}

func (s *sqliteStore) decryptState(ciphertext []byte) (map[string]any, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	plaintext, err := s.decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	var state map[string]any
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *sqliteStore) toClusterModel(c *types.Cluster) (*clusterModel, error) {
	token, err := s.encrypt(c.APIToken)
	if err != nil {
		return nil, err
	}
	cert, err := s.encrypt(c.TLSCert)
	if err != nil {
		return nil, err
	}
	key, err := s.encrypt(c.TLSKey)
	if err != nil {
		return nil, err
	}
	state, err := s.encryptState(c.State)
	if err != nil {
		return nil, err
	}
	return &clusterModel{
		Name:             c.Name,
		Owner:            c.Owner,
		APIToken:         token,
		TLSCert:          cert,
		TLSKey:           key,
		Status:           string(c.Status),
		State:            state,
		SchedulerAddress: c.SchedulerAddress,
		DashboardAddress: c.DashboardAddress,
		APIAddress:       c.APIAddress,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}, nil
}

func (s *sqliteStore) fromClusterModel(cm *clusterModel) (*types.Cluster, error) {
	token, err := s.decrypt(cm.APIToken)
	if err != nil {
		return nil, err
	}
	cert, err := s.decrypt(cm.TLSCert)
	if err != nil {
		return nil, err
	}
	key, err := s.decrypt(cm.TLSKey)
	if err != nil {
		return nil, err
	}
	state, err := s.decryptState(cm.State)
	if err != nil {
		return nil, err
	}
	return &types.Cluster{
		Name:             cm.Name,
		Owner:            cm.Owner,
		APIToken:         token,
		TLSCert:          cert,
		TLSKey:           key,
		Status:           types.Status(cm.Status),
		State:            state,
		SchedulerAddress: cm.SchedulerAddress,
		DashboardAddress: cm.DashboardAddress,
		APIAddress:       cm.APIAddress,
		Workers:          make(map[string]*types.Worker),
		CreatedAt:        cm.CreatedAt,
		UpdatedAt:        cm.UpdatedAt,
	}, nil
}

func (s *sqliteStore) toWorkerModel(w *types.Worker) (*workerModel, error) {
	state, err := s.encryptState(w.State)
	if err != nil {
		return nil, err
	}
	return &workerModel{
		ClusterName: w.ClusterName,
		Name:        w.Name,
		Status:      string(w.Status),
		State:       state,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}, nil
}

func (s *sqliteStore) fromWorkerModel(wm *workerModel) (*types.Worker, error) {
	state, err := s.decryptState(wm.State)
	if err != nil {
		return nil, err
	}
	return &types.Worker{
		ClusterName: wm.ClusterName,
		Name:        wm.Name,
		Status:      types.Status(wm.Status),
		State:       state,
		CreatedAt:   wm.CreatedAt,
		UpdatedAt:   wm.UpdatedAt,
	}, nil
}
