// Package server is the read-only HTTP query surface over reconciled
// fees, usage and prices. Callers identify themselves by email; rows
// are filtered by role before they leave the database.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/eresearchbill/reckon/internal/catalog/domain"
	"github.com/eresearchbill/reckon/internal/config"
	feedomain "github.com/eresearchbill/reckon/internal/fee/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServerParam struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Fees    feedomain.Service
	Catalog catalogdomain.Service
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	log     *zap.Logger
	fees    feedomain.Service
	catalog catalogdomain.Service
}

func New(p ServerParam) *Server {
	s := &Server{
		cfg:     p.Config,
		log:     p.Log.Named("http.server"),
		fees:    p.Fees,
		catalog: p.Catalog,
	}

	engine := gin.New()
	engine.Use(requestLogger(s.log), gin.Recovery())
	s.engine = engine
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	v1.GET("/fees", s.listFees)
	v1.GET("/fees/summary", s.summarizeFees)
	v1.GET("/products/:no/fees", s.listProductFees)
	v1.GET("/products/:no/usage", s.listProductUsage)
	v1.GET("/prices", s.listPrices)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, s *Server, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(New),
	fx.Invoke(run),
)
