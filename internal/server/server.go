package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/graphmail/graphmail/internal/auth"
	"github.com/graphmail/graphmail/internal/graph"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

// Authenticator is the slice of the credential manager the API needs.
type Authenticator interface {
	AuthStatus() auth.AuthStatus
	Logout() error
	GetValidToken(ctx context.Context) (string, error)
}

// Mailbox is the slice of the Graph client the API needs.
type Mailbox interface {
	Me(ctx context.Context) (*graph.User, error)
	ListMessages(ctx context.Context, folder string, opts graph.ListOptions) ([]graph.Message, error)
	GetMessage(ctx context.Context, id string) (*graph.Message, error)
	SendMessage(ctx context.Context, out *graph.OutgoingMessage) error
	MarkAsRead(ctx context.Context, id string) error
}

// Syncer runs delta rounds.
type Syncer interface {
	FetchChanges(ctx context.Context, folder string) (*graph.DeltaResult, error)
}

// Config holds server settings.
type Config struct {
	// Addr is the listen address, DefaultAddr when empty.
	Addr string
	// PageSize is the default listing size when the request does not set one.
	PageSize int
	// ExcludeSenders is applied to all listings.
	ExcludeSenders []string
}

// Server is the REST API server.
type Server struct {
	cfg     Config
	authn   Authenticator
	mailbox Mailbox
	syncer  Syncer
	logger  *slog.Logger
	health  *HealthChecker
	metrics *apiMetrics

	engine *gin.Engine
	http   *http.Server
}

// New builds the server and its route table.
func New(cfg Config, authn Authenticator, mailbox Mailbox, syncer Syncer, logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		cfg:     cfg,
		authn:   authn,
		mailbox: mailbox,
		syncer:  syncer,
		logger:  logger,
		health:  NewHealthChecker(),
		metrics: newAPIMetrics(),
		engine:  engine,
	}

	engine.Use(gin.Recovery(), s.requestLogger(), s.metrics.middleware())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health.Liveness)
	s.engine.GET("/readyz", s.health.Readiness)
	s.engine.GET("/metrics", s.metrics.handler())

	api := s.engine.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.GET("/status", s.handleAuthStatus)
	authGroup.GET("/me", s.handleMe)
	authGroup.GET("/token", s.handleToken)
	authGroup.POST("/logout", s.handleLogout)

	emails := api.Group("/emails")
	emails.GET("/inbox", s.handleFolder("inbox"))
	emails.GET("/sent", s.handleFolder("sentItems"))
	emails.GET("/search", s.handleSearch)
	emails.GET("/delta/:folder", s.handleDelta)
	emails.POST("/send", s.handleSend)
	// The id routes go last so "inbox" and friends win.
	emails.GET("/:id", s.handleGetMessage)
	emails.POST("/:id/read", s.handleMarkRead)
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.cfg.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	s.health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down api server")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
