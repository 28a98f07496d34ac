// Package http exposes the playlist service over REST and serves the
// operational endpoints.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cratedig/internal/core"
	"cratedig/internal/i18n"
	"cratedig/internal/pipeline"
	"cratedig/internal/rekordbox"
)

// fetcher is the pipeline surface the handlers need.
type fetcher interface {
	Fetch(ctx context.Context, req pipeline.Request) (*core.PlaylistResult, error)
}

type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	pipeline fetcher
	loader   *rekordbox.Loader
	loc      *i18n.Localizer
	metrics  *Metrics
	registry *prometheus.Registry
}

type Metrics struct {
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	CacheResults  *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
	OwnedMatches  prometheus.Counter
	UploadsTotal  *prometheus.CounterVec
}

func NewServer(config *core.ServerConfig, pipe fetcher, loader *rekordbox.Loader, logger *zap.Logger) *Server {
	metrics := &Metrics{
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratedig_fetches_total",
				Help: "Total number of playlist fetches",
			},
			[]string{"source", "status"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cratedig_fetch_duration_seconds",
				Help:    "Time spent resolving playlist requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		CacheResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratedig_cache_results_total",
				Help: "Result cache hits and misses",
			},
			[]string{"result"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratedig_errors_total",
				Help: "Total number of request errors by type",
			},
			[]string{"type"},
		),
		OwnedMatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cratedig_owned_matches_total",
				Help: "Total number of tracks matched against a local library",
			},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratedig_uploads_total",
				Help: "Total number of collection uploads",
			},
			[]string{"status"},
		),
	}

	// A per-server registry keeps registration idempotent across instances.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.FetchesTotal,
		metrics.FetchDuration,
		metrics.CacheResults,
		metrics.ErrorsTotal,
		metrics.OwnedMatches,
		metrics.UploadsTotal,
	)

	s := &Server{
		config:   config,
		logger:   logger.Named("http"),
		pipeline: pipe,
		loader:   loader,
		loc:      i18n.NewLocalizer(config.Language),
		metrics:  metrics,
		registry: registry,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/playlist", s.handlePlaylist)
	mux.HandleFunc("/api/playlist-with-rekordbox", s.handlePlaylistWithRekordbox)
	mux.HandleFunc("/api/playlist-with-rekordbox-upload", s.handlePlaylistWithUpload)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"cratedig"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"cratedig"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>cratedig</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
    </style>
</head>
<body>
    <h1>🎛 cratedig</h1>
    <p>Playlist retrieval and DJ-library reconciliation service</p>

    <h2>Endpoints</h2>
    <div class="endpoint">🎵 <code>GET /api/playlist?url=...</code> - Fetch a playlist</div>
    <div class="endpoint">📦 <code>POST /api/playlist-with-rekordbox</code> - Fetch and match against a collection path</div>
    <div class="endpoint">⬆️ <code>POST /api/playlist-with-rekordbox-upload</code> - Fetch and match against an uploaded collection</div>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`))
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}
