package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/carpool/internal/carpool"
	"github.com/example/carpool/internal/ledger"
	"github.com/example/carpool/internal/matcher"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Carpool *carpool.Service
	Ledger  *ledger.Service
	Matcher *matcher.Service
	Store   Pinger

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(cp *carpool.Service, lg *ledger.Service, m *matcher.Service, store Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Carpool: cp,
		Ledger:  lg,
		Matcher: m,
		Store:   store,
		logger:  logger,
		mux:     mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.mux.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.mux.HandleFunc("/soldiers", s.handleCreateSoldier).Methods(http.MethodPost)
	s.mux.HandleFunc("/soldiers", s.handleListSoldiers).Methods(http.MethodGet)
	s.mux.HandleFunc("/soldiers/{id}", s.handleGetSoldier).Methods(http.MethodGet)
	s.mux.HandleFunc("/soldiers/{id}/suggestions", s.handleSuggestions).Methods(http.MethodGet)

	s.mux.HandleFunc("/rides", s.handleCreateRide).Methods(http.MethodPost)
	s.mux.HandleFunc("/rides", s.handleListRides).Methods(http.MethodGet)
	s.mux.HandleFunc("/rides/{id}", s.handleGetRide).Methods(http.MethodGet)

	s.mux.HandleFunc("/ride-requests", s.handleCreateRequest).Methods(http.MethodPost)
	s.mux.HandleFunc("/ride-requests", s.handleListRequests).Methods(http.MethodGet)
	s.mux.HandleFunc("/ride-requests/{id}", s.handleGetRequest).Methods(http.MethodGet)
	s.mux.HandleFunc("/ride-requests/{id}/status", s.handleSetStatus).Methods(http.MethodPost)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
