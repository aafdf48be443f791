package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"notesvc/internal/config"
	"notesvc/internal/handler"
	"notesvc/internal/middleware"
	"notesvc/internal/repository"
	"notesvc/internal/service"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	router *gin.Engine
	cfg    *config.Config
	logger *zap.Logger
}

func NewServer(db *sqlx.DB, cfg *config.Config, logger *zap.Logger) *Server {
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	s := &Server{
		router: router,
		cfg:    cfg,
		logger: logger,
	}

	s.setupRoutes(db)

	return s
}

func (s *Server) setupRoutes(db *sqlx.DB) {
	userRepo := repository.NewUserRepository(db, s.logger)
	noteRepo := repository.NewNoteRepository(db, s.logger)

	tokenService := service.NewTokenService(s.cfg.Auth.JWTSecret, s.cfg.TokenExpiry())
	hasher := service.NewPasswordHasher(s.cfg.Auth.BcryptCost)
	authService := service.NewAuthService(userRepo, tokenService, hasher, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	noteHandler := handler.NewNoteHandler(noteRepo, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Public authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// Authenticated routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.Auth(authService, s.logger))
	{
		authRequired.POST("/auth/password", authHandler.ChangePassword)

		authRequired.GET("/notes", noteHandler.List)
		authRequired.POST("/notes", noteHandler.Create)
		authRequired.GET("/notes/:id", noteHandler.Get)
		authRequired.PUT("/notes/:id", noteHandler.Update)
		authRequired.DELETE("/notes/:id", noteHandler.Delete)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully so
// in-flight store operations complete rather than being left half applied.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
