// Package adminhttp serves the ops-only HTTP surface alongside the UDP
// engine: Prometheus metrics, a health probe, a live state dump, and
// pprof. None of this is part of the core protocol (§1's Non-goals:
// "no HTTP surface from the core") — it is the ambient operational
// surface every service in this shape carries.
package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StateProvider reports a snapshot of live server state for /state.
type StateProvider interface {
	State() any
}

// Server is the admin HTTP mux. It is started on its own goroutine and
// never touches client slots, instances, or any other tick-loop-owned
// state except through StateProvider's already-synchronized snapshot.
type Server struct {
	httpServer *http.Server
}

// Mount registers additional routes (e.g. the optional spectator
// websocket feed) on the admin mux before it starts serving.
type Mount func(r chi.Router)

// New builds the admin mux: chi router, cors for local dashboards,
// request logging via chi's middleware, metrics/health/state/pprof
// routes.
func New(addr string, startedAt time.Time, state StateProvider, extra Mount) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET"},
		AllowCredentials: false,
	}))
	r.Use(NewIPRateLimiter(10, 20, 5*time.Minute).Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/state", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{
			"uptimeSeconds": time.Since(startedAt).Seconds(),
		}
		if state != nil {
			body["server"] = state.State()
		}
		json.NewEncoder(w).Encode(body)
	})

	r.Handle("/metrics", promhttp.Handler())

	if extra != nil {
		extra(r)
	}

	r.Route("/debug/pprof", func(r chi.Router) {
		r.Get("/", pprof.Index)
		r.Get("/cmdline", pprof.Cmdline)
		r.Get("/profile", pprof.Profile)
		r.Get("/symbol", pprof.Symbol)
		r.Get("/trace", pprof.Trace)
		r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
			pprof.Handler(chi.URLParam(req, "name")).ServeHTTP(w, req)
		})
	})

	return &Server{httpServer: &http.Server{Addr: addr, Handler: r}}
}

// Start runs the mux until the process exits or Shutdown is called.
// Errors are returned on the channel so the caller can log them
// without blocking startup.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the mux.
func (s *Server) Shutdown() error {
	return s.httpServer.Close()
}
