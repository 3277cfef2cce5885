package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"sfcplacement/invalidation"
	"sfcplacement/placement/adapter"
	"sfcplacement/placement/common"
	"sfcplacement/topology"
	"sfcplacement/traffic"
)

const DefaultTimeout = 60 * time.Second

// A Response is a wrapper object for server's responses
type Response struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// WeigherSpec selects the link weigher of a request. Without Annotated every
// link gets Bandwidth and Delay.
type WeigherSpec struct {
	Annotated bool    `json:"annotated"`
	Bandwidth float64 `json:"bandwidth"`
	Delay     float64 `json:"delay"`
}

// SolveRequest is the body of POST /v1/solve. Topology may be omitted to use
// the topology the server was started with.
type SolveRequest struct {
	Strategy  string           `json:"strategy"`
	Options   common.Options   `json:"options"`
	Topology  *topology.File   `json:"topology,omitempty"`
	Weigher   WeigherSpec      `json:"weigher"`
	Demands   []traffic.Demand `json:"demands"`
	TimeoutMs int64            `json:"timeout_ms,omitempty"`
}

func (w WeigherSpec) build() topology.LinkWeigher {
	if w.Annotated {
		return topology.AnnotatedLinkWeigher{}
	}
	return topology.NewConstantLinkWeigher(w.Bandwidth, w.Delay)
}

// Server exposes the solvers over HTTP and holds the last solution
type Server struct {
	topology *topology.Topology
	holder   *invalidation.Holder
	timeout  time.Duration
	router   *mux.Router
}

// NewServer creates the API server. topo may be nil, then every request must
// carry its own topology.
func NewServer(topo *topology.Topology, holder *invalidation.Holder, timeout time.Duration) *Server {
	if holder == nil {
		holder = invalidation.NewHolder()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Server{topology: topo, holder: holder, timeout: timeout}

	r := mux.NewRouter()
	r.HandleFunc("/v1/solve", s.solveHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/strategies", s.strategiesHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/solution", s.solutionHandler).Methods(http.MethodGet, http.MethodDelete)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func newResponse(message string, errorMessage string) *Response {
	return &Response{
		Message: message,
		Error:   errorMessage,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("api: failed to encode response: %v", err)
	}
}

// Handles error responses
func handleError(w http.ResponseWriter, status int, message string, args ...interface{}) {
	writeJSON(w, status, newResponse("", fmt.Sprintf(message, args...)))
}

func (s *Server) solveHandler(w http.ResponseWriter, r *http.Request) {
	var body SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handleError(w, http.StatusBadRequest, "invalid solve request: %v", err)
		return
	}

	topo := s.topology
	if body.Topology != nil {
		t, err := body.Topology.Build()
		if err != nil {
			handleError(w, http.StatusBadRequest, "invalid topology: %v", err)
			return
		}
		topo = t
	}
	if topo == nil {
		handleError(w, http.StatusBadRequest, "no topology in request and none configured")
		return
	}

	demands := make([]traffic.Demand, len(body.Demands))
	for i, d := range body.Demands {
		if d.ID == "" {
			d = traffic.NewDemand(d.Sfc, d.Ingress, d.Egress, d.Volume)
		}
		if d.Sfc == nil {
			d.Sfc = traffic.Sfc{}
		}
		demands[i] = d
	}
	req, err := common.NewRequest(topo, demands, body.Weigher.build())
	if err != nil {
		handleError(w, http.StatusBadRequest, "invalid placement request: %v", err)
		return
	}

	solver, err := adapter.NewSolver(body.Strategy, body.Options)
	if err != nil {
		handleError(w, http.StatusBadRequest, "%v", err)
		return
	}

	timeout := s.timeout
	if body.TimeoutMs > 0 {
		timeout = time.Duration(body.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	sol, err := solver.Solve(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			handleError(w, http.StatusGatewayTimeout, "solve timed out after %v", timeout)
			return
		}
		handleError(w, http.StatusInternalServerError, "solve failed: %v", err)
		return
	}

	s.holder.Set(sol, topo.VertexCount())
	log.Infof("api: %s solved %d demands, feasible %d", body.Strategy, len(demands), sol.FeasibleCount())
	writeJSON(w, http.StatusOK, sol)
}

func (s *Server) strategiesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, adapter.Strategies())
}

func (s *Server) solutionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sol, ok := s.holder.Get()
		if !ok {
			handleError(w, http.StatusNotFound, "no valid solution")
			return
		}
		writeJSON(w, http.StatusOK, sol)
	case http.MethodDelete:
		s.holder.Invalidate()
		writeJSON(w, http.StatusOK, newResponse("solution invalidated", ""))
	}
}

// ListenAndServe serves until ctx ends, then shuts the server down
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()

		log.Infof("api: stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("api: shutdown request error: %v", err)
		}
	}()

	log.Infof("api: starting HTTP server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	log.Infof("api: HTTP server stopped")
	return nil
}
