package registrar

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cuemby/gatewayd/pkg/log"
	"github.com/cuemby/gatewayd/pkg/metrics"
	"github.com/gorilla/mux"
)

// Server is the Connection Registrar's HTTP surface.
type Server struct {
	router *mux.Router
	reg    Registry
}

// NewServer builds a Server backed by reg (typically the lifecycle
// engine's registry) with every route behind authMiddleware.
func NewServer(reg Registry) *Server {
	s := &Server{router: mux.NewRouter(), reg: reg}

	sub := s.router.PathPrefix("/clusters/{name}").Subrouter()
	sub.Use(authMiddleware(reg))
	sub.HandleFunc("/addresses", s.track("put_addresses", s.putAddresses)).Methods(http.MethodPut)
	sub.HandleFunc("/addresses", s.track("get_addresses", s.getAddresses)).Methods(http.MethodGet)
	sub.HandleFunc("/workers/{worker}", s.track("put_worker", s.putWorker)).Methods(http.MethodPut)
	sub.HandleFunc("/workers/{worker}", s.track("delete_worker", s.deleteWorker)).Methods(http.MethodDelete)

	return s
}

// Handler returns the Server's http.Handler, suitable for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// statusRecorder captures the status code a handler wrote so track() can
// label the request-count metric by outcome, not just by route.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) track(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		timer := metrics.NewTimer()
		next(rec, r)
		timer.ObserveDurationVec(metrics.RegistrarRequestDuration, method)
		metrics.RegistrarRequestsTotal.WithLabelValues(method, strconv.Itoa(rec.status)).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) putAddresses(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	logger := log.WithCluster(name)

	var addrs Addresses
	if err := json.NewDecoder(r.Body).Decode(&addrs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.reg.ConfirmCluster(name, addrs); err != nil {
		logger.Warn().Err(err).Msg("failed to confirm cluster addresses")
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getAddresses(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	addrs, ok := s.reg.ClusterAddresses(name)
	if !ok {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	writeJSON(w, http.StatusOK, addrs)
}

func (s *Server) putWorker(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, worker := vars["name"], vars["worker"]
	logger := log.WithWorker(name, worker)

	var addr WorkerAddress
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.reg.ConfirmWorker(name, worker, addr); err != nil {
		logger.Warn().Err(err).Msg("failed to confirm worker address")
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) deleteWorker(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, worker := vars["name"], vars["worker"]

	if err := s.reg.CancelWorker(name, worker); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
