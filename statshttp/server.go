// Package statshttp exposes Prometheus metrics and per-socket JSON
// stats over HTTP.
package statshttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/penguintech/xdpcore/xdplog"
	"github.com/penguintech/xdpcore/xsocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SocketLookup resolves an ifname/queue pair to a live Socket, for
// the per-socket JSON endpoint.
type SocketLookup func(ifname string, queue uint32) (*xsocket.Socket, bool)

// Server serves /metrics and /sockets/{ifname}/{queue}/stats.
type Server struct {
	server *http.Server
	log    *xdplog.Logger
}

// NewServer builds a Server listening on addr. registry is gathered
// for /metrics; lookup resolves sockets for the per-socket endpoint.
func NewServer(addr string, registry *prometheus.Registry, lookup SocketLookup) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/sockets/{ifname}/{queue}/stats", socketStatsHandler(lookup)).Methods("GET")
	router.HandleFunc("/healthz", healthzHandler).Methods("GET")

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: xdplog.Default().WithField("component", "statshttp"),
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func socketStatsHandler(lookup SocketLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		var queue uint32
		if _, err := fmt.Sscanf(vars["queue"], "%d", &queue); err != nil {
			http.Error(w, "invalid queue index", http.StatusBadRequest)
			return
		}

		s, ok := lookup(vars["ifname"], queue)
		if !ok {
			http.Error(w, "socket not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.Stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// Start runs the HTTP server until it's shut down or errors out.
func (s *Server) Start() error {
	s.log.Info("starting stats server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("statshttp: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
