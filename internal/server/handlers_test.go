package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bencai/orderwatch/internal/extract"
	"github.com/bencai/orderwatch/internal/mailbox"
	"github.com/bencai/orderwatch/internal/model"
	"github.com/bencai/orderwatch/internal/scrape"
	"github.com/bencai/orderwatch/internal/store"
)

// stubScraper returns canned results and records the call.
type stubScraper struct {
	result  *scrape.Result
	trace   *extract.Trace
	folders []string
	err     error

	lastCfg  mailbox.Config
	lastOpts scrape.Options
}

func (s *stubScraper) Scrape(_ context.Context, cfg mailbox.Config, opts scrape.Options) (*scrape.Result, error) {
	s.lastCfg = cfg
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubScraper) Diagnose(_ context.Context, cfg mailbox.Config, opts scrape.Options, _ string) (*extract.Trace, error) {
	s.lastCfg = cfg
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.trace, nil
}

func (s *stubScraper) ListFolders(_ context.Context, cfg mailbox.Config) ([]string, error) {
	s.lastCfg = cfg
	if s.err != nil {
		return nil, s.err
	}
	return s.folders, nil
}

// stubRunStore records persisted runs in memory.
type stubRunStore struct {
	saved []store.ScrapeRun
	runs  []store.ScrapeRun
	byRun map[string][]model.Order
}

func (s *stubRunStore) SaveRun(_ context.Context, run store.ScrapeRun, _ []model.Order) (store.ScrapeRun, error) {
	run.ID = "run-1"
	s.saved = append(s.saved, run)
	return run, nil
}

func (s *stubRunStore) Runs(_ context.Context, _ int) ([]store.ScrapeRun, error) {
	return s.runs, nil
}

func (s *stubRunStore) OrdersForRun(_ context.Context, runID string) ([]model.Order, error) {
	return s.byRun[runID], nil
}

func testConfig() *model.AppConfig {
	return &model.AppConfig{
		IMAP: model.IMAPConfig{
			Host:       "imap.gmail.com",
			Port:       993,
			Username:   "buyer@example.com",
			Password:   "app-password",
			TimeoutSec: 30,
		},
		Vendors: map[string]model.VendorConfig{
			"costco": {Folder: "Costco", Limit: 50},
		},
		DefaultVendor: "costco",
		SortBy:        "first_seen",
	}
}

func shippedResult() *scrape.Result {
	orders := []model.Order{{
		OrderNumber:    "W123456789",
		Status:         model.StatusShipped,
		Products:       []string{"USB-C Cable"},
		TrackingNumber: "1Z999AA10123456784",
		OrderDate:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}}
	return &scrape.Result{
		Vendor:  "costco",
		Folder:  "Costco",
		Orders:  orders,
		Stats:   model.CountStats(orders),
		Scanned: 2,
	}
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := New(testConfig(), &stubScraper{}, nil, nil)
	w := doRequest(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGetOrders(t *testing.T) {
	scraper := &stubScraper{result: shippedResult()}
	runs := &stubRunStore{}
	s := New(testConfig(), scraper, runs, nil)

	w := doRequest(t, s, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, "Costco", scraper.lastOpts.Folder, "vendor folder comes from config")
	require.Equal(t, 50, scraper.lastOpts.Limit)
	require.Equal(t, "buyer@example.com", scraper.lastCfg.Username)

	var resp struct {
		Success        bool   `json:"success"`
		FolderSearched string `json:"folder_searched"`
		Orders         []struct {
			OrderNumber    string   `json:"order_number"`
			Status         string   `json:"status"`
			Products       []string `json:"products"`
			TrackingNumber *string  `json:"tracking_number"`
			OrderDate      *string  `json:"order_date"`
		} `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "Costco", resp.FolderSearched)
	require.Len(t, resp.Orders, 1)
	require.Equal(t, "W123456789", resp.Orders[0].OrderNumber)
	require.Equal(t, "Shipped", resp.Orders[0].Status)
	require.NotNil(t, resp.Orders[0].TrackingNumber)
	require.Equal(t, "1Z999AA10123456784", *resp.Orders[0].TrackingNumber)
	require.NotNil(t, resp.Orders[0].OrderDate)
	require.Equal(t, "2026-01-05", *resp.Orders[0].OrderDate)

	// The successful scrape was persisted.
	require.Len(t, runs.saved, 1)
	require.Equal(t, "costco", runs.saved[0].Vendor)
	require.Equal(t, 1, runs.saved[0].Shipped)
}

func TestGetOrdersUnknownVendor(t *testing.T) {
	s := New(testConfig(), &stubScraper{}, nil, nil)
	w := doRequest(t, s, http.MethodGet, "/api/orders?vendor=nope", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var p Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.Equal(t, typeValidation, p.Type)
}

func TestGetOrdersAuthErrorIs401(t *testing.T) {
	scraper := &stubScraper{err: &mailbox.AuthError{Username: "buyer@example.com"}}
	s := New(testConfig(), scraper, nil, nil)

	w := doRequest(t, s, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var p Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.Equal(t, typeAuth, p.Type)
	require.NotContains(t, w.Body.String(), "app-password", "credentials never leak into responses")
}

func TestGetOrdersFolderNotFoundIs404(t *testing.T) {
	scraper := &stubScraper{err: &mailbox.FolderNotFoundError{Folder: "Costco"}}
	s := New(testConfig(), scraper, nil, nil)

	w := doRequest(t, s, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrdersConnectionErrorIs502(t *testing.T) {
	scraper := &stubScraper{err: &mailbox.ConnectionError{Addr: "imap.gmail.com:993"}}
	s := New(testConfig(), scraper, nil, nil)

	w := doRequest(t, s, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPostScrapeWithCallerCredentials(t *testing.T) {
	scraper := &stubScraper{result: shippedResult()}
	s := New(testConfig(), scraper, nil, nil)

	w := doRequest(t, s, http.MethodPost, "/api/scrape",
		`{"email":"other@example.com","password":"other-secret","folder":"Orders"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, "other@example.com", scraper.lastCfg.Username)
	require.Equal(t, "other-secret", scraper.lastCfg.Password)
	require.Equal(t, "imap.gmail.com", scraper.lastCfg.Host, "host defaults when omitted")
	require.Equal(t, 993, scraper.lastCfg.Port)
	require.Equal(t, "Orders", scraper.lastOpts.Folder)
}

func TestPostScrapeRequiresCredentials(t *testing.T) {
	s := New(testConfig(), &stubScraper{}, nil, nil)

	w := doRequest(t, s, http.MethodPost, "/api/scrape", `{"email":"x@example.com"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetFolders(t *testing.T) {
	scraper := &stubScraper{folders: []string{"Costco", "INBOX"}}
	s := New(testConfig(), scraper, nil, nil)

	w := doRequest(t, s, http.MethodGet, "/api/folders", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"Costco"`)
}

func TestGetDebugTrace(t *testing.T) {
	scraper := &stubScraper{trace: &extract.Trace{
		VendorMatch:     true,
		OrderNumberRule: "subject:labeled",
		OrderNumbers:    []string{"W123456789"},
	}}
	s := New(testConfig(), scraper, nil, nil)

	w := doRequest(t, s, http.MethodGet, "/api/debug/W123456789", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "subject:labeled")
}

func TestHistoryDisabledWithoutStore(t *testing.T) {
	s := New(testConfig(), &stubScraper{}, nil, nil)

	w := doRequest(t, s, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryListsRunsAndOrders(t *testing.T) {
	runs := &stubRunStore{
		runs: []store.ScrapeRun{{ID: "run-1", Vendor: "costco"}},
		byRun: map[string][]model.Order{
			"run-1": {{OrderNumber: "W123456789", Status: model.StatusShipped}},
		},
	}
	s := New(testConfig(), &stubScraper{}, runs, nil)

	w := doRequest(t, s, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"run-1"`)

	w = doRequest(t, s, http.MethodGet, "/api/history?run=run-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "W123456789")
}
