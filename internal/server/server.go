// Package server implements the HTTP boundary: batch submission, status
// polling, result download, the live progress stream, and the embedded
// upload page.
package server

import (
	"log/slog"
	"net/http"

	"github.com/kweber/scribeq/internal/job"
	"github.com/kweber/scribeq/internal/metrics"
	"github.com/kweber/scribeq/internal/worker"
)

// Options carries the server's dependencies. The job store is injected
// rather than ambient so tests and the composition root own its
// lifetime.
type Options struct {
	Store   *job.Store
	Worker  *worker.Worker
	Metrics *metrics.Collector
	Logger  *slog.Logger

	// DefaultToken is used when a submission carries no credential.
	DefaultToken string
	// WorkDir is the base directory for job working areas.
	WorkDir string
	// MaxUploadBytes bounds one submission's multipart body.
	MaxUploadBytes int64
}

// Server handles the boundary contract over net/http.
type Server struct {
	store   *job.Store
	worker  *worker.Worker
	metrics *metrics.Collector
	logger  *slog.Logger

	defaultToken   string
	workDir        string
	maxUploadBytes int64
}

// New creates a server from its dependencies.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 512 << 20
	}
	return &Server{
		store:          opts.Store,
		worker:         opts.Worker,
		metrics:        opts.Metrics,
		logger:         logger,
		defaultToken:   opts.DefaultToken,
		workDir:        opts.WorkDir,
		maxUploadBytes: maxUpload,
	}
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /jobs", s.handleSubmit)
	mux.HandleFunc("GET /jobs/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /jobs/{id}/download", s.handleDownload)
	mux.HandleFunc("GET /jobs/{id}/stream", s.handleStream)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /{$}", s.indexHandler())

	return LoggingMiddleware(s.logger)(mux)
}
