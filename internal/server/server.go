package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskwell/workpool/internal/config"
)

const shutdownTimeout = 10 * time.Second

// RegisterHandlersFn attaches routes to the /api/v1 group.
type RegisterHandlersFn func(router *gin.RouterGroup)

type Server struct {
	cfg  *config.Configuration
	http *http.Server
	log  *zap.SugaredLogger
}

func NewServer(cfg *config.Configuration, registerHandlers RegisterHandlersFn) *Server {
	if cfg.Server.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(zap.L().Named("http"), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zap.L().Named("http"), true))

	registerHandlers(router.Group("/api/v1"))

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		},
		log: zap.S().Named("server"),
	}
}

// Start serves until the listener fails or Stop is called. It returns nil
// after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Infow("starting http server", "addr", s.http.Addr, "mode", s.cfg.Server.Mode)
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
