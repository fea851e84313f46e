package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bencai/orderwatch/internal/aggregate"
	"github.com/bencai/orderwatch/internal/credential"
	"github.com/bencai/orderwatch/internal/extract"
	"github.com/bencai/orderwatch/internal/mailbox"
	"github.com/bencai/orderwatch/internal/scrape"
	"github.com/bencai/orderwatch/internal/store"
)

// ordersResponse is the common success body for scrape endpoints.
type ordersResponse struct {
	Success        bool        `json:"success"`
	Orders         []apiOrder  `json:"orders"`
	Stats          interface{} `json:"stats"`
	FolderSearched string      `json:"folder_searched"`
	FailedUIDs     []uint32    `json:"failed_uids,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleOrders scrapes with the configured credentials.
// GET /api/orders?vendor=costco
func (s *Server) handleOrders(c *gin.Context) {
	vendor := c.DefaultQuery("vendor", s.cfg.DefaultVendor)
	rules, ok := extract.RulesFor(vendor)
	if !ok {
		respondProblem(c, http.StatusBadRequest, typeValidation,
			"Unknown vendor", "no rule set for vendor "+vendor)
		return
	}

	cfg, err := s.mailboxConfig()
	if err != nil {
		respondProblem(c, http.StatusInternalServerError, typeInternal,
			"Credentials unavailable", err.Error())
		return
	}

	opts := scrape.Options{
		Folder: s.folderFor(vendor),
		Limit:  s.cfg.Vendors[vendor].Limit,
		Sort:   aggregate.SortModeFor(s.cfg.SortBy),
		Rules:  rules,
	}

	started := time.Now()
	result, err := s.scraper.Scrape(c.Request.Context(), cfg, opts)
	if err != nil {
		respondScrapeError(c, err)
		return
	}

	s.persist(c, result, started)

	c.JSON(http.StatusOK, ordersResponse{
		Success:        true,
		Orders:         toAPIOrders(result.Orders),
		Stats:          result.Stats,
		FolderSearched: result.Folder,
		FailedUIDs:     result.FailedUIDs,
	})
}

// scrapeRequest is the POST /api/scrape body: caller-supplied
// credentials for a one-off scrape.
type scrapeRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	IMAPHost string `json:"imapHost"`
	IMAPPort int    `json:"imapPort"`
	Folder   string `json:"folder"`
	Vendor   string `json:"vendor"`
}

func (s *Server) handleScrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondProblem(c, http.StatusBadRequest, typeValidation,
			"Invalid request", "email and password are required")
		return
	}

	vendor := req.Vendor
	if vendor == "" {
		vendor = s.cfg.DefaultVendor
	}
	rules, ok := extract.RulesFor(vendor)
	if !ok {
		respondProblem(c, http.StatusBadRequest, typeValidation,
			"Unknown vendor", "no rule set for vendor "+vendor)
		return
	}

	cfg := mailbox.Config{
		Host:     req.IMAPHost,
		Port:     req.IMAPPort,
		Username: req.Email,
		Password: req.Password,
		Timeout:  time.Duration(s.cfg.IMAP.TimeoutSec) * time.Second,
	}
	if cfg.Host == "" {
		cfg.Host = "imap.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}

	folder := req.Folder
	if folder == "" {
		folder = s.folderFor(vendor)
	}

	opts := scrape.Options{
		Folder: folder,
		Sort:   aggregate.SortModeFor(s.cfg.SortBy),
		Rules:  rules,
	}

	result, err := s.scraper.Scrape(c.Request.Context(), cfg, opts)
	if err != nil {
		respondScrapeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ordersResponse{
		Success:        true,
		Orders:         toAPIOrders(result.Orders),
		Stats:          result.Stats,
		FolderSearched: result.Folder,
		FailedUIDs:     result.FailedUIDs,
	})
}

// handleFolders lists the mailbox's folders.
func (s *Server) handleFolders(c *gin.Context) {
	cfg, err := s.mailboxConfig()
	if err != nil {
		respondProblem(c, http.StatusInternalServerError, typeInternal,
			"Credentials unavailable", err.Error())
		return
	}

	folders, err := s.scraper.ListFolders(c.Request.Context(), cfg)
	if err != nil {
		respondScrapeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "folders": folders})
}

// handleDebug returns the extraction trace for the first message whose
// subject carries the order number.
// GET /api/debug/:orderNumber?vendor=costco
func (s *Server) handleDebug(c *gin.Context) {
	orderNumber := c.Param("orderNumber")

	vendor := c.DefaultQuery("vendor", s.cfg.DefaultVendor)
	rules, ok := extract.RulesFor(vendor)
	if !ok {
		respondProblem(c, http.StatusBadRequest, typeValidation,
			"Unknown vendor", "no rule set for vendor "+vendor)
		return
	}

	cfg, err := s.mailboxConfig()
	if err != nil {
		respondProblem(c, http.StatusInternalServerError, typeInternal,
			"Credentials unavailable", err.Error())
		return
	}

	opts := scrape.Options{Folder: s.folderFor(vendor), Rules: rules}
	trace, err := s.scraper.Diagnose(c.Request.Context(), cfg, opts, orderNumber)
	if err != nil {
		respondScrapeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"order_number": orderNumber,
		"trace":        trace,
	})
}

// handleHistory returns persisted scrape runs, optionally with one
// run's orders.
// GET /api/history[?run=<id>]
func (s *Server) handleHistory(c *gin.Context) {
	if s.runs == nil {
		respondProblem(c, http.StatusNotFound, typeNotFound,
			"History disabled", "no store configured")
		return
	}

	if runID := c.Query("run"); runID != "" {
		orders, err := s.runs.OrdersForRun(c.Request.Context(), runID)
		if err != nil {
			respondProblem(c, http.StatusInternalServerError, typeInternal,
				"History unavailable", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "orders": toAPIOrders(orders)})
		return
	}

	runs, err := s.runs.Runs(c.Request.Context(), 20)
	if err != nil {
		respondProblem(c, http.StatusInternalServerError, typeInternal,
			"History unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "runs": runs})
}

// mailboxConfig builds the connection config from the app config,
// resolving the password from keyring/env when not set inline.
func (s *Server) mailboxConfig() (mailbox.Config, error) {
	password, err := credential.ResolvePassword(s.cfg.IMAP.Password)
	if err != nil {
		return mailbox.Config{}, err
	}
	return mailbox.Config{
		Host:     s.cfg.IMAP.Host,
		Port:     s.cfg.IMAP.Port,
		Username: s.cfg.IMAP.Username,
		Password: password,
		Timeout:  time.Duration(s.cfg.IMAP.TimeoutSec) * time.Second,
	}, nil
}

func (s *Server) folderFor(vendor string) string {
	if vc, ok := s.cfg.Vendors[vendor]; ok && vc.Folder != "" {
		return vc.Folder
	}
	return "INBOX"
}

// persist saves a completed scrape to the history store; failures are
// logged, never surfaced, because the scrape itself succeeded.
func (s *Server) persist(c *gin.Context, result *scrape.Result, started time.Time) {
	if s.runs == nil {
		return
	}

	run := store.ScrapeRun{
		Vendor:     result.Vendor,
		Folder:     result.Folder,
		Scanned:    result.Scanned,
		Failed:     len(result.FailedUIDs),
		Total:      result.Stats.Total,
		Confirmed:  result.Stats.Confirmed,
		Shipped:    result.Stats.Shipped,
		Delivered:  result.Stats.Delivered,
		Cancelled:  result.Stats.Cancelled,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if _, err := s.runs.SaveRun(c.Request.Context(), run, result.Orders); err != nil {
		s.log.Warn("persisting scrape run failed", "error", err.Error())
	}
}
