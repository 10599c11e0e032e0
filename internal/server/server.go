package server

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/gymwhisper/internal/extract"
	"github.com/claude/gymwhisper/internal/ingest"
	"github.com/claude/gymwhisper/internal/ledger"
	"github.com/claude/gymwhisper/internal/observe"
	"github.com/claude/gymwhisper/internal/storage"
)

// Pinger reports whether the durable store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers need. Metrics, MetricsHandler and
// MCP are optional.
type Deps struct {
	Registry    *ledger.Registry
	Pipeline    *ingest.Pipeline
	Extract     *extract.Service
	History     *storage.HistoryRepository
	Preferences *storage.PreferencesRepository
	Store       Pinger

	Metrics        *observe.Metrics
	MetricsHandler http.Handler
	MCP            http.Handler
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Deps
	log    *slog.Logger
	apiKey string
	whois  WhoIser
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(deps Deps, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		Deps:   deps,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity from the local dev user to tailnet WhoIs
// lookups.
func (s *Server) SetTailscale(wc WhoIser) {
	s.whois = wc
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	if s.Metrics != nil {
		s.router.Use(observe.Middleware(s.Metrics))
	}

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	if s.MetricsHandler != nil {
		s.router.Handle("/metrics", s.MetricsHandler)
	}

	auth := APIKeyAuth(s.apiKey)

	if s.MCP != nil {
		s.router.With(s.identity, auth).Handle("/mcp", s.MCP)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/me", s.handleMe)
		r.Get("/capabilities", s.handleCapabilities)

		r.Get("/history", s.handleHistory)
		r.Get("/history/sessions", s.handleHistorySessions)
		r.Get("/preferences", s.handleGetPreferences)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/extract", s.handleExtract)
			r.Post("/summary", s.handleSummary)
			r.Post("/history/summary", s.handleHistorySummary)
			r.Put("/preferences", s.handlePutPreferences)
			r.Post("/ledgers", s.handleCreateLedger)
		})

		r.Route("/ledgers/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetLedger)
			r.Get("/export.csv", s.handleExportCSV)

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Delete("/", s.handleDeleteLedger)

				r.Post("/captures", s.handleBeginCapture)
				r.Post("/captures/{cid}", s.handleSubmitCapture)
				r.Post("/records", s.handleAppendRecords)

				r.Post("/records/{i}/edit", s.handleStartEdit)
				r.Put("/edit", s.handleSetEditBuffer)
				r.Post("/edit/save", s.handleSaveEdit)
				r.Post("/edit/cancel", s.handleCancelEdit)
				r.Delete("/records/{i}", s.handleRemoveEntry)
				r.Post("/records/{i}/approve", s.handleApproveEntry)

				r.Post("/finalize", s.handleRequestFinalize)
				r.Post("/finalize/cancel", s.handleCancelFinalize)
				r.Post("/finalize/confirm", s.handleRequestExportConfirmation)
				r.Post("/export/confirm", s.handleConfirmExport)
				r.Post("/export/cancel", s.handleCancelExportConfirmation)
			})
		})
	})
}

// identity picks the identity middleware per request so SetTailscale can be
// called after the routes are built.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, s.log)(next).ServeHTTP(w, r)
	})
}

// SetFrontend mounts the embedded SPA filesystem.
// Unmatched routes serve index.html for client-side routing.
func (s *Server) SetFrontend(webFS fs.FS) {
	fileServer := http.FileServerFS(webFS)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the exact file first
		f, err := webFS.Open(r.URL.Path[1:]) // strip leading /
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		// Fallback to index.html for SPA routing
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
