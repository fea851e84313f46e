// Package server exposes scrape results over a small gin HTTP API.
// It is a thin layer: all parsing and merging happens in the scrape
// pipeline; handlers only translate between HTTP and the core types.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bencai/orderwatch/internal/extract"
	"github.com/bencai/orderwatch/internal/mailbox"
	"github.com/bencai/orderwatch/internal/model"
	"github.com/bencai/orderwatch/internal/scrape"
	"github.com/bencai/orderwatch/internal/store"
)

// OrderScraper is the pipeline capability the server needs.
// *scrape.Scraper implements it; tests substitute a stub.
type OrderScraper interface {
	Scrape(ctx context.Context, cfg mailbox.Config, opts scrape.Options) (*scrape.Result, error)
	Diagnose(ctx context.Context, cfg mailbox.Config, opts scrape.Options, orderNumber string) (*extract.Trace, error)
	ListFolders(ctx context.Context, cfg mailbox.Config) ([]string, error)
}

// RunStore persists scrape history. Optional; a nil store disables the
// history endpoint and result persistence.
type RunStore interface {
	SaveRun(ctx context.Context, run store.ScrapeRun, orders []model.Order) (store.ScrapeRun, error)
	Runs(ctx context.Context, limit int) ([]store.ScrapeRun, error)
	OrdersForRun(ctx context.Context, runID string) ([]model.Order, error)
}

// Server is the HTTP API over the scrape pipeline.
type Server struct {
	cfg     *model.AppConfig
	scraper OrderScraper
	runs    RunStore
	log     *slog.Logger
	router  *gin.Engine
}

// New wires the routes. runs may be nil.
func New(cfg *model.AppConfig, scraper OrderScraper, runs RunStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		scraper: scraper,
		runs:    runs,
		log:     log,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	api := router.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/orders", s.handleOrders)
	api.POST("/scrape", s.handleScrape)
	api.GET("/folders", s.handleFolders)
	api.GET("/debug/:orderNumber", s.handleDebug)
	api.GET("/history", s.handleHistory)

	s.router = router
	return s
}

// Router returns the configured gin engine, for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves the API on the configured address until the listener fails.
func (s *Server) Run() error {
	s.log.Info("orderwatch API listening", slog.String("addr", s.cfg.Server.Addr))
	return s.router.Run(s.cfg.Server.Addr)
}

// requestLog logs one line per request.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}
