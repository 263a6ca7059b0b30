// Package api wires the HTTP surface: routing, global middleware, and
// operational endpoints (health, metrics, pprof) around the
// reconciliation domain's handlers.
package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"reconciler/internal/api/handlers"
	"reconciler/internal/api/middleware"
	"reconciler/internal/orchestrator"
	"reconciler/internal/reporting"
	"reconciler/internal/repository"
)

// Dependencies holds the services SetupRoutes wires into handlers. A nil
// field skips registering the routes that depend on it, so a partially
// configured process (e.g. a worker-only deployment with no reporting
// wired up) still serves the routes it can.
type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	Runs         *repository.RunRepository
	Breaks       *repository.BreakRepository
	Reports      *reporting.Generator
	Logger       *zap.Logger
}

func (d *Dependencies) logger() *zap.Logger {
	if d == nil || d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// SetupRoutes builds the full router: global middleware, versioned API
// routes under /api/v1, and the operational endpoints (/health,
// /metrics, /debug/pprof).
//
// Route table:
//
//	/api/v1/
//	  POST /runs              - trigger a reconciliation run
//	  GET  /runs/{date}       - fetch the run for a trade date
//	  GET  /breaks            - list breaks, filterable by ?status=
//	  GET  /breaks/{id}       - fetch one break
//	  POST /breaks/{id}/resolve - record a manual resolution
//	  GET  /reports           - generate the aggregated break report
//	/health   - liveness probe
//	/metrics  - Prometheus exposition
//	/debug/pprof/* - runtime profiling
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	log := deps.logger()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS)

	var runHandler *handlers.RunHandler
	if deps != nil && deps.Orchestrator != nil && deps.Runs != nil {
		runHandler = handlers.NewRunHandler(deps.Orchestrator, deps.Runs)
	}

	var breakHandler *handlers.BreakHandler
	if deps != nil && deps.Breaks != nil {
		breakHandler = handlers.NewBreakHandler(deps.Breaks)
	}

	var reportHandler *handlers.ReportHandler
	if deps != nil && deps.Reports != nil {
		reportHandler = handlers.NewReportHandler(deps.Reports)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	if runHandler != nil {
		api.HandleFunc("/runs", runHandler.TriggerRun).Methods(http.MethodPost)
		api.HandleFunc("/runs/{date}", runHandler.GetRun).Methods(http.MethodGet)
	}

	if breakHandler != nil {
		api.HandleFunc("/breaks", breakHandler.GetBreaks).Methods(http.MethodGet)
		api.HandleFunc("/breaks/{id}", breakHandler.GetBreak).Methods(http.MethodGet)
		api.HandleFunc("/breaks/{id}/resolve", breakHandler.ResolveBreak).Methods(http.MethodPost)
	}

	if reportHandler != nil {
		api.HandleFunc("/reports", reportHandler.GetReport).Methods(http.MethodGet)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.HandleFunc("/heap", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("heap").ServeHTTP(w, r) })
	debug.HandleFunc("/goroutine", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("goroutine").ServeHTTP(w, r) })

	return router
}
