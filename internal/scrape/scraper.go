// Package scrape wires the mailbox session, message decoder, order
// extractor and aggregator into one sequential pipeline. One scrape
// invocation owns one IMAP connection and one aggregator; concurrent
// invocations share nothing.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bencai/orderwatch/internal/aggregate"
	"github.com/bencai/orderwatch/internal/extract"
	"github.com/bencai/orderwatch/internal/mailbox"
	"github.com/bencai/orderwatch/internal/message"
	"github.com/bencai/orderwatch/internal/model"
)

// Session is the slice of mailbox capability the pipeline needs.
// *mailbox.Session implements it; tests substitute a fake.
type Session interface {
	SelectFolder(ctx context.Context, name string) error
	Search(ctx context.Context, f mailbox.SearchFilter) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (*mailbox.RawMessage, error)
	ListFolders(ctx context.Context) ([]string, error)
	Close() error
}

// Dialer opens an authenticated session.
type Dialer func(ctx context.Context, cfg mailbox.Config) (Session, error)

// DialIMAP is the production Dialer backed by mailbox.Dial.
func DialIMAP(ctx context.Context, cfg mailbox.Config) (Session, error) {
	return mailbox.Dial(ctx, cfg)
}

// Options controls one scrape invocation.
type Options struct {
	// Folder is the mailbox folder to search.
	Folder string

	// Limit caps how many messages are processed, most recent first.
	// Zero means all.
	Limit int

	// Sort selects the ordering of the merged result set.
	Sort aggregate.SortMode

	// Rules is the vendor extraction table to apply.
	Rules extract.RuleSet
}

// Result is the outcome of one scrape invocation. It is complete even
// when individual messages failed; FailedUIDs reports which.
type Result struct {
	Vendor     string        `json:"vendor"`
	Folder     string        `json:"folder_searched"`
	Orders     []model.Order `json:"orders"`
	Stats      model.Stats   `json:"stats"`
	Scanned    int           `json:"scanned"`
	FailedUIDs []uint32      `json:"failed_uids,omitempty"`
	Elapsed    time.Duration `json:"-"`
}

// Scraper runs scrape invocations against a mailbox.
type Scraper struct {
	dial Dialer
	log  *slog.Logger
}

// New creates a Scraper. A nil logger falls back to slog.Default.
func New(dial Dialer, log *slog.Logger) *Scraper {
	if log == nil {
		log = slog.Default()
	}
	return &Scraper{dial: dial, log: log}
}

// Scrape connects, selects the folder, and folds every matching
// message through decode → extract → aggregate. Connect and folder
// selection failures are fatal; a failed fetch or an undecodable
// message only skips that message. The connection is released on every
// exit path.
func (s *Scraper) Scrape(ctx context.Context, cfg mailbox.Config, opts Options) (*Result, error) {
	start := time.Now()

	sess, err := s.dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	if err := sess.SelectFolder(ctx, opts.Folder); err != nil {
		return nil, err
	}

	uids, err := sess.Search(ctx, s.searchFilter(opts))
	if err != nil {
		return nil, fmt.Errorf("searching folder %q: %w", opts.Folder, err)
	}
	if opts.Limit > 0 && len(uids) > opts.Limit {
		uids = uids[len(uids)-opts.Limit:]
	}

	s.log.Info("scraping folder",
		slog.String("vendor", opts.Rules.Vendor),
		slog.String("folder", opts.Folder),
		slog.Int("messages", len(uids)),
	)

	ex := extract.New(opts.Rules)
	agg := aggregate.New()
	var failed []uint32

	for _, uid := range uids {
		raw, err := sess.Fetch(ctx, uid)
		if err != nil {
			s.log.Warn("skipping message",
				slog.Uint64("uid", uint64(uid)),
				slog.String("error", err.Error()),
			)
			failed = append(failed, uid)
			continue
		}

		for _, candidate := range s.extractOne(ex, raw) {
			agg.Add(candidate)
		}
	}

	orders := agg.Orders(opts.Sort)
	result := &Result{
		Vendor:     opts.Rules.Vendor,
		Folder:     opts.Folder,
		Orders:     orders,
		Stats:      model.CountStats(orders),
		Scanned:    len(uids),
		FailedUIDs: failed,
		Elapsed:    time.Since(start),
	}

	s.log.Info("scrape complete",
		slog.String("vendor", opts.Rules.Vendor),
		slog.Int("orders", result.Stats.Total),
		slog.Int("failed", len(failed)),
		slog.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// extractOne decodes one raw message and extracts its candidates.
func (s *Scraper) extractOne(ex *extract.Extractor, raw *mailbox.RawMessage) []model.Order {
	dec := message.Decode(raw.Raw)

	date := dec.Date
	if date.IsZero() {
		date = raw.InternalDate
	}

	return ex.Extract(extract.Input{
		Subject: dec.Subject,
		HTML:    dec.Body(),
		Date:    date,
		UID:     raw.UID,
	})
}

// searchFilter narrows INBOX scrapes to the vendor's sender domain.
// Dedicated label folders are assumed pre-filtered and searched whole.
func (s *Scraper) searchFilter(opts Options) mailbox.SearchFilter {
	if strings.EqualFold(opts.Folder, "INBOX") && opts.Rules.SenderDomain != "" {
		return mailbox.SearchFilter{FromDomain: opts.Rules.SenderDomain}
	}
	return mailbox.SearchFilter{}
}

// Diagnose finds the first message in the folder whose subject carries
// the given order number and returns its extraction trace.
func (s *Scraper) Diagnose(ctx context.Context, cfg mailbox.Config, opts Options, orderNumber string) (*extract.Trace, error) {
	sess, err := s.dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	if err := sess.SelectFolder(ctx, opts.Folder); err != nil {
		return nil, err
	}

	uids, err := sess.Search(ctx, mailbox.SearchFilter{Subject: orderNumber})
	if err != nil {
		return nil, fmt.Errorf("searching for order %q: %w", orderNumber, err)
	}
	if len(uids) == 0 {
		return nil, fmt.Errorf("order %q: no matching message in %q", orderNumber, opts.Folder)
	}

	raw, err := sess.Fetch(ctx, uids[0])
	if err != nil {
		return nil, err
	}

	dec := message.Decode(raw.Raw)
	date := dec.Date
	if date.IsZero() {
		date = raw.InternalDate
	}

	ex := extract.New(opts.Rules)
	_, trace := ex.ExtractTrace(extract.Input{
		Subject: dec.Subject,
		HTML:    dec.Body(),
		Date:    date,
		UID:     raw.UID,
	})
	return trace, nil
}

// ListFolders connects and returns the mailbox's folder names.
func (s *Scraper) ListFolders(ctx context.Context, cfg mailbox.Config) ([]string, error) {
	sess, err := s.dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	return sess.ListFolders(ctx)
}
