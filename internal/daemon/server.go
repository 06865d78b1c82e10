package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/janekbaraniewski/tokendash/internal/collectors"
	"github.com/janekbaraniewski/tokendash/internal/config"
	"github.com/janekbaraniewski/tokendash/internal/core"
	"github.com/janekbaraniewski/tokendash/internal/dashboard"
	"github.com/janekbaraniewski/tokendash/internal/version"
)

// Server hosts the aggregation pipeline behind a unix-socket HTTP API: a
// background poller keeps the cache warm, a config watcher hot-reloads
// thresholds and intervals, and the RPC surface serves fresh or cached
// summaries to CLI clients.
type Server struct {
	cfg    Config
	log    *zap.Logger
	agg    *dashboard.Aggregator
	poller *dashboard.Poller
}

// RunServer starts the daemon and blocks until SIGINT/SIGTERM.
func RunServer(cfg Config) error {
	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := startServer(ctx, cfg, log)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("daemon stopping", zap.String("reason", "signal"))
	srv.poller.Stop()
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func startServer(ctx context.Context, cfg Config, log *zap.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.SocketPath) == "" {
		cfg.SocketPath = DefaultSocketPath()
	}
	if strings.TrimSpace(cfg.ConfigPath) == "" {
		cfg.ConfigPath = config.ConfigPath()
	}

	dashCfg, err := config.LoadFrom(cfg.ConfigPath)
	if err != nil {
		log.Warn("using default config", zap.Error(err))
	}

	dashboard.RegisterMetrics()

	agg := dashboard.NewAggregator(
		collectors.All(),
		liveResolver(dashCfg),
		dashCfg,
		dashboard.NewCache(),
		log,
	)
	poller := dashboard.NewPoller(agg, log)

	srv := &Server{cfg: cfg, log: log, agg: agg, poller: poller}

	watcher := config.NewWatcher(cfg.ConfigPath, log, func(next config.Config) {
		agg.UpdateConfig(next)
	})
	if err := watcher.Start(); err != nil {
		log.Warn("config hot-reload disabled", zap.Error(err))
	} else {
		go func() {
			<-ctx.Done()
			watcher.Stop()
		}()
	}

	if err := srv.startSocketServer(ctx); err != nil {
		return nil, err
	}

	poller.Start(ctx)

	log.Info("daemon started",
		zap.String("socket", cfg.SocketPath),
		zap.String("config", cfg.ConfigPath),
		zap.String("version", version.Version),
		zap.Duration("poll_interval", agg.Config().PollInterval()))

	return srv, nil
}

// liveResolver resolves collector configs against the current credentials
// file on every call, so a key added while the daemon runs is picked up on
// the next pass without a restart. Base URL overrides are fixed at startup;
// thresholds and intervals hot-reload through the config watcher.
func liveResolver(initial config.Config) core.ConfigResolver {
	return func(providerID string) core.CollectorConfig {
		creds, err := config.LoadCredentials()
		if err != nil {
			creds = config.Credentials{}
		}
		return config.Resolver(initial, creds)(providerID)
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/"+APIVersion, func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/cached", s.handleCached)
		r.Get("/providers", s.handleProviders)
		r.Get("/usage", s.handleUsage)
	})
	return r
}

func (s *Server) startSocketServer(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.SocketPath), 0o755); err != nil {
		return fmt.Errorf("create daemon socket dir: %w", err)
	}
	if err := EnsureSocketPathAvailable(s.cfg.SocketPath); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listen daemon socket: %w", err)
	}
	_ = os.Chmod(s.cfg.SocketPath, 0o660)

	server := &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		// /v1/status blocks on a full aggregation pass.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  20 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		_ = listener.Close()
		_ = os.Remove(s.cfg.SocketPath)
	}()
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("socket server failed", zap.Error(err))
		}
	}()

	return nil
}

// EnsureSocketPathAvailable clears a stale socket file left by a previous
// run, and refuses to start when another daemon is already listening.
func EnsureSocketPathAvailable(socketPath string) error {
	socketPath = strings.TrimSpace(socketPath)
	if socketPath == "" {
		return fmt.Errorf("socket path is empty")
	}

	info, err := os.Stat(socketPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat socket path %s: %w", socketPath, err)
	}

	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("socket path %s already exists and is not a socket", socketPath)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 450*time.Millisecond)
	defer cancel()
	dialer := net.Dialer{Timeout: 450 * time.Millisecond}
	conn, dialErr := dialer.DialContext(dialCtx, "unix", socketPath)
	if dialErr == nil {
		_ = conn.Close()
		return fmt.Errorf("dashboard daemon already running on socket %s", socketPath)
	}

	if err := os.Remove(socketPath); err != nil {
		return fmt.Errorf("remove stale daemon socket %s: %w", socketPath, err)
	}
	return nil
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		DaemonVersion: strings.TrimSpace(version.Version),
		APIVersion:    APIVersion,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.poller.Refresh(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("aggregation failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCached(w http.ResponseWriter, _ *http.Request) {
	summary, ok := s.agg.Cache().Get()
	if !ok {
		writeJSONError(w, http.StatusNotFound, dashboard.ErrNoData.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	cfg := s.agg.Config()
	var out ProvidersResponse
	for _, col := range s.agg.Registry() {
		if !cfg.ProviderEnabled(col.ID()) {
			continue
		}
		info := col.Describe()
		ccfg := s.agg.Resolver()(col.ID())
		out.Providers = append(out.Providers, ProviderDescriptor{
			ID:           col.ID(),
			Name:         info.Name,
			Configured:   col.IsConfigured(ccfg),
			Capabilities: info.Capabilities,
			DocURL:       info.DocURL,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	providerID := strings.TrimSpace(r.URL.Query().Get("provider"))
	if providerID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing provider parameter")
		return
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	if !refresh {
		if summary, ok := s.agg.Cache().Get(); ok {
			if st, found := summary.ProviderStatusFor(providerID); found {
				writeJSON(w, http.StatusOK, UsageResponse{Status: st})
				return
			}
		}
		// Fall through to a live fetch when the cache has nothing for it.
	}

	st, ok := s.agg.FetchProvider(r.Context(), providerID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("%s: %s", core.ErrProviderNotFound, providerID))
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{Status: st})
}
