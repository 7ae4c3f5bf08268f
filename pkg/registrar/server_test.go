package registrar

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	tokens          map[string][]byte
	clusterAddrs    map[string]Addresses
	confirmErr      error
	confirmWorkerFn func(cluster, worker string, addr WorkerAddress) error
	cancelledWorker string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		tokens:       map[string][]byte{"c1": []byte("secret-token")},
		clusterAddrs: map[string]Addresses{},
	}
}

func (f *fakeRegistry) TokenFor(name string) ([]byte, bool) {
	tok, ok := f.tokens[name]
	return tok, ok
}

func (f *fakeRegistry) ConfirmCluster(name string, addrs Addresses) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.clusterAddrs[name] = addrs
	return nil
}

func (f *fakeRegistry) ClusterAddresses(name string) (Addresses, bool) {
	a, ok := f.clusterAddrs[name]
	return a, ok
}

func (f *fakeRegistry) ConfirmWorker(cluster, worker string, addr WorkerAddress) error {
	if f.confirmWorkerFn != nil {
		return f.confirmWorkerFn(cluster, worker, addr)
	}
	return nil
}

func (f *fakeRegistry) CancelWorker(cluster, worker string) error {
	f.cancelledWorker = worker
	return nil
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPutAddressesRequiresAuth(t *testing.T) {
	reg := newFakeRegistry()
	s := NewServer(reg)

	rec := doRequest(t, s.Handler(), http.MethodPut, "/clusters/c1/addresses", "", Addresses{SchedulerAddress: "1.2.3.4:8786"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPutAddressesRejectsWrongToken(t *testing.T) {
	reg := newFakeRegistry()
	s := NewServer(reg)

	rec := doRequest(t, s.Handler(), http.MethodPut, "/clusters/c1/addresses", "wrong-token", Addresses{SchedulerAddress: "1.2.3.4:8786"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPutAddressesRejectsUnknownCluster(t *testing.T) {
	reg := newFakeRegistry()
	s := NewServer(reg)

	rec := doRequest(t, s.Handler(), http.MethodPut, "/clusters/unknown/addresses", "anything", Addresses{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, unauthorizedBody, rec.Body.String())
}

func TestPutAndGetAddressesRoundtrip(t *testing.T) {
	reg := newFakeRegistry()
	s := NewServer(reg)

	addrs := Addresses{SchedulerAddress: "1.2.3.4:8786", DashboardAddress: "1.2.3.4:8787", APIAddress: "1.2.3.4:8788"}
	rec := doRequest(t, s.Handler(), http.MethodPut, "/clusters/c1/addresses", "secret-token", addrs)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s.Handler(), http.MethodGet, "/clusters/c1/addresses", "secret-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got Addresses
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, addrs, got)
}

func TestPutWorkerConfirms(t *testing.T) {
	reg := newFakeRegistry()
	var gotCluster, gotWorker string
	var gotAddr WorkerAddress
	reg.confirmWorkerFn = func(cluster, worker string, addr WorkerAddress) error {
		gotCluster, gotWorker, gotAddr = cluster, worker, addr
		return nil
	}
	s := NewServer(reg)

	rec := doRequest(t, s.Handler(), http.MethodPut, "/clusters/c1/workers/w1", "secret-token", WorkerAddress{Address: "5.6.7.8:9000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", gotCluster)
	assert.Equal(t, "w1", gotWorker)
	assert.Equal(t, "5.6.7.8:9000", gotAddr.Address)
}

func TestDeleteWorkerCancels(t *testing.T) {
	reg := newFakeRegistry()
	s := NewServer(reg)

	rec := doRequest(t, s.Handler(), http.MethodDelete, "/clusters/c1/workers/w1", "secret-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "w1", reg.cancelledWorker)
}
