package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Static errors for the dashboard
var (
	ErrDashboardRunning    = errors.New("dashboard already running")
	ErrDashboardNotRunning = errors.New("dashboard not running")
)

// Logger is the subset of structured logging the dashboard needs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Dashboard serves a read-only JSON view of a Monitor.
//
// Routes:
//   - GET /api/state   builds, modules and stats
//   - GET /api/builds  build history, newest first
//   - GET /api/modules active modules
//   - GET /api/stats   aggregate counts
type Dashboard struct {
	monitor *Monitor
	addr    string
	logger  Logger
	router  chi.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewDashboard creates a dashboard for monitor listening on addr once started.
// An addr with port 0 picks a free port; see Addr.
func NewDashboard(monitor *Monitor, addr string, logger Logger) *Dashboard {
	d := &Dashboard{
		monitor: monitor,
		addr:    addr,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/api/state", d.handleState)
	r.Get("/api/builds", d.handleBuilds)
	r.Get("/api/modules", d.handleModules)
	r.Get("/api/stats", d.handleStats)
	d.router = r
	return d
}

// ServeHTTP lets the dashboard be mounted into another router.
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.router.ServeHTTP(w, r)
}

// Start listens on the configured address and serves in the background.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server != nil {
		return ErrDashboardRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", d.addr)
	if err != nil {
		return fmt.Errorf("dashboard listen on %s: %w", d.addr, err)
	}
	srv := &http.Server{
		Handler:           d,
		ReadHeaderTimeout: 5 * time.Second,
	}
	d.server = srv
	d.listener = ln

	go func() {
		if d.logger != nil {
			d.logger.Info("Dashboard started", "address", ln.Addr().String())
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && d.logger != nil {
			d.logger.Error("Dashboard stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address while running, or the configured one.
func (d *Dashboard) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener != nil {
		return d.listener.Addr().String()
	}
	return d.addr
}

// Stop shuts the dashboard down gracefully.
func (d *Dashboard) Stop(ctx context.Context) error {
	d.mu.Lock()
	srv := d.server
	d.server = nil
	d.listener = nil
	d.mu.Unlock()

	if srv == nil {
		return ErrDashboardNotRunning
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down dashboard: %w", err)
	}
	return nil
}

func (d *Dashboard) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.monitor.GetState())
}

func (d *Dashboard) handleBuilds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.monitor.GetBuilds())
}

func (d *Dashboard) handleModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.monitor.GetActiveModules())
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.monitor.GetStats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
