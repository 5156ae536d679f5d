package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MichaelB312/storybook/internal/api"
	"github.com/MichaelB312/storybook/internal/config"
	"github.com/MichaelB312/storybook/internal/home"
	"github.com/MichaelB312/storybook/internal/jobs"
	"github.com/MichaelB312/storybook/internal/pipeline"
	"github.com/MichaelB312/storybook/internal/server/endpoints"
	"github.com/MichaelB312/storybook/internal/svcctx"
	"github.com/MichaelB312/storybook/internal/synth"
)

// Server is the main storybook HTTP server. It owns the job store, the
// generation pipeline, and the record retention sweeper.
type Server struct {
	httpServer *http.Server
	jobStore   *jobs.Store
	pipeline   *pipeline.Pipeline
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	jobTTL        time.Duration
	sweepInterval time.Duration

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the storybook home directory for persisted pages
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger

	// SynthClient and Rewriter override the OpenAI-backed defaults.
	// Used by tests.
	SynthClient synth.Client
	Rewriter    synth.Rewriter
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, fmt.Errorf("config manager is required")
	}

	appCfg := cfg.ConfigManager.Get()

	client := cfg.SynthClient
	if client == nil {
		client = synth.NewOpenAIClient(synth.OpenAIConfig{
			APIKey:  appCfg.SynthesisAPIKey(),
			Model:   appCfg.Synthesis.Model,
			BaseURL: appCfg.Synthesis.BaseURL,
			Timeout: time.Duration(appCfg.Synthesis.Timeout) * time.Second,
		})
	}
	rewriter := cfg.Rewriter
	if rewriter == nil && appCfg.Rewriter.Enabled {
		rewriter = synth.NewLLMRewriter(synth.LLMRewriterConfig{
			APIKey: appCfg.RewriterAPIKey(),
			Model:  appCfg.Rewriter.Model,
		})
	}

	caller := synth.NewCaller(synth.CallerConfig{
		Client:            client,
		Rewriter:          rewriter,
		RequestsPerSecond: appCfg.Synthesis.RateLimit,
		Logger:            cfg.Logger,
		Attempts:          appCfg.Synthesis.Attempts,
		RetryDelay:        time.Duration(appCfg.Synthesis.RetryDelay) * time.Second,
	})

	jobStore := jobs.NewStore(cfg.Logger)
	pipe := pipeline.New(jobStore, caller, pipeline.Config{
		AnchorWait:    time.Duration(appCfg.Pipeline.AnchorWait) * time.Second,
		PageStagger:   time.Duration(appCfg.Pipeline.PageStaggerMS) * time.Millisecond,
		JobTimeout:    time.Duration(appCfg.Pipeline.JobTimeout) * time.Second,
		UpscaleFactor: appCfg.Pipeline.UpscaleFactor,
	}, cfg.Logger)
	if cfg.Home != nil {
		pipe.SetHome(cfg.Home)
	}

	s := &Server{
		jobStore:      jobStore,
		pipeline:      pipe,
		configMgr:     cfg.ConfigManager,
		logger:        cfg.Logger,
		jobTTL:        time.Duration(appCfg.Jobs.TTL) * time.Minute,
		sweepInterval: time.Duration(appCfg.Jobs.SweepInterval) * time.Minute,
	}
	if s.jobTTL <= 0 {
		s.jobTTL = jobs.DefaultTTL
	}
	if s.sweepInterval <= 0 {
		s.sweepInterval = jobs.DefaultSweepInterval
	}

	s.services = &svcctx.Services{
		Jobs:          jobStore,
		Pipeline:      pipe,
		ConfigManager: cfg.ConfigManager,
		Logger:        cfg.Logger,
		Home:          cfg.Home,
	}

	// Synthesis settings are bound at startup; note config edits that
	// require a restart to take effect.
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		cfg.Logger.Info("configuration changed; synthesis settings apply on next restart")
	})

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and the job retention sweeper.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go s.jobStore.RunSweeper(sweepCtx, s.sweepInterval, s.jobTTL)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Jobs returns the job store.
func (s *Server) Jobs() *jobs.Store {
	return s.jobStore
}

// Pipeline returns the generation pipeline.
func (s *Server) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wired HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the pipeline isn't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.pipeline == nil || s.jobStore == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
