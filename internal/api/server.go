// Package api exposes digests and the user/topic store over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/digest/internal/metrics"
	"github.com/FranksOps/digest/internal/pipeline"
	"github.com/FranksOps/digest/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultMaxArticles is used when a summarize request omits max_articles.
const DefaultMaxArticles = 3

// Digester is the slice of pipeline.Pipeline the handlers use.
type Digester interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Digest, error)
	RunTopics(ctx context.Context, topics []string, window string, maxArticles int) []pipeline.TopicResult
}

type Config struct {
	Pipeline Digester
	// Store may be nil; user endpoints then answer 500.
	Store storage.Backend
	// Window and MaxArticles apply to per-user digests.
	Window      string
	MaxArticles int
	CORSOrigins []string
	Logger      *slog.Logger
}

type Server struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	return &Server{cfg: cfg, logger: cfg.Logger}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.cfg.CORSOrigins) == 1 && s.cfg.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/", s.health)
	v1.POST("/news/summarize", s.summarize)
	v1.POST("/users", s.registerUser)
	v1.GET("/users/:mobile_no", s.getUser)
	v1.GET("/user_news_summary/:mobile_no", s.userNewsSummary)
	v1.PUT("/update_users_topics/:mobile_no", s.updateTopics)
	v1.GET("/digests", s.listDigests)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	s.logger.Info("api stopped")
	return nil
}
