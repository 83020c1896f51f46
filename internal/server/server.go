package server

import (
	"context"
	"net/http"
	"time"

	"github.com/RyanW02/waterledger/internal/config"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"github.com/RyanW02/waterledger/pkg/verification"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type Server struct {
	config   config.Config
	logger   *zap.Logger
	store    *offchain.Store
	verifier *verification.Verifier

	router *gin.Engine
}

// NewServer creates the off-chain store API. events may be nil, in which case ledger backed verification is
// not served.
func NewServer(cfg config.Config, logger *zap.Logger, store *offchain.Store, events verification.EventSource) *Server {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		store:    store,
		verifier: verification.NewVerifier(logger, events, store),
		router:   gin.New(),
	}

	s.registerRoutes(events != nil)
	return s
}

func (s *Server) registerRoutes(withLedger bool) {
	_ = s.router.SetTrustedProxies(nil)

	s.router.Use(gin.Recovery())
	if !s.config.Production {
		s.router.Use(gin.Logger())
	}

	// Records are public and nothing is authenticated with cookies
	s.router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
	}))

	s.router.GET("/health", s.HandleHealth)
	s.router.GET("/status", s.HandleStatus)

	s.router.POST("/events", s.HandleSubmit)
	s.router.GET("/events/:id", s.HandleGetRecord)
	s.router.POST("/verify/:id", s.HandleCompare)

	if withLedger {
		s.router.GET("/audit/events/:event_id/verify", s.HandleVerify)
	}

	// Register development / debug endpoints
	if !s.config.Production {
		s.router.GET("/debug/stats", s.HandleStats)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("address", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancelFunc := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFunc()

		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Server.RequestTimeout.Duration()
	if timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}

	return context.WithTimeout(c.Request.Context(), timeout)
}
