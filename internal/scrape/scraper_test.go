package scrape

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bencai/orderwatch/internal/aggregate"
	"github.com/bencai/orderwatch/internal/extract"
	"github.com/bencai/orderwatch/internal/mailbox"
	"github.com/bencai/orderwatch/internal/model"
)

// fakeSession serves canned messages and records how it was driven.
type fakeSession struct {
	messages map[uint32][]byte
	uids     []uint32
	failUIDs map[uint32]bool
	folders  []string

	selected   string
	lastFilter mailbox.SearchFilter
	closed     bool
	selectErr  error
}

func (f *fakeSession) SelectFolder(_ context.Context, name string) error {
	if f.selectErr != nil {
		return f.selectErr
	}
	f.selected = name
	return nil
}

func (f *fakeSession) Search(_ context.Context, filter mailbox.SearchFilter) ([]uint32, error) {
	f.lastFilter = filter
	return append([]uint32(nil), f.uids...), nil
}

func (f *fakeSession) Fetch(_ context.Context, uid uint32) (*mailbox.RawMessage, error) {
	if f.failUIDs[uid] {
		return nil, &mailbox.FetchError{UID: uid, Err: fmt.Errorf("boom")}
	}
	raw, ok := f.messages[uid]
	if !ok {
		return nil, &mailbox.FetchError{UID: uid, Err: fmt.Errorf("no such message")}
	}
	return &mailbox.RawMessage{UID: uid, Raw: raw}, nil
}

func (f *fakeSession) ListFolders(_ context.Context) ([]string, error) {
	return f.folders, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func dialerFor(f *fakeSession) Dialer {
	return func(_ context.Context, _ mailbox.Config) (Session, error) {
		return f, nil
	}
}

func rawEmail(subject, html string) []byte {
	msg := "From: orders@costco.com\n" +
		"Subject: " + subject + "\n" +
		"Content-Type: text/html; charset=utf-8\n" +
		"\n" + html + "\n"
	return []byte(strings.ReplaceAll(msg, "\n", "\r\n"))
}

func TestScrapeMergesLifecycleAcrossMessages(t *testing.T) {
	sess := &fakeSession{
		uids: []uint32{1, 2},
		messages: map[uint32][]byte{
			1: rawEmail(
				"Your Costco.com order W123456789 is confirmed",
				`<img alt="USB-C Cable"><p>Order Date: January 5, 2026</p>`,
			),
			2: rawEmail(
				"Your Costco.com order W123456789 has shipped",
				`<p>Tracking Number: 1Z999AA10123456784</p>`,
			),
		},
	}

	s := New(dialerFor(sess), nil)
	result, err := s.Scrape(context.Background(), mailbox.Config{}, Options{
		Folder: "Costco",
		Rules:  extract.CostcoRules(),
	})
	require.NoError(t, err)

	require.Equal(t, "Costco", sess.selected)
	require.True(t, sess.closed, "session must be released")
	require.Equal(t, 2, result.Scanned)
	require.Empty(t, result.FailedUIDs)

	require.Len(t, result.Orders, 1, "both emails describe the same order")
	o := result.Orders[0]
	require.Equal(t, "W123456789", o.OrderNumber)
	require.Equal(t, model.StatusShipped, o.Status)
	require.Equal(t, []string{"USB-C Cable"}, o.Products)
	require.Equal(t, "1Z999AA10123456784", o.TrackingNumber)
	require.Equal(t, []uint32{1, 2}, o.SourceUIDs)

	require.Equal(t, model.Stats{Total: 1, Shipped: 1}, result.Stats)
}

func TestScrapeToleratesFetchFailures(t *testing.T) {
	sess := &fakeSession{
		uids:     []uint32{1, 2, 3},
		failUIDs: map[uint32]bool{2: true},
		messages: map[uint32][]byte{
			1: rawEmail("Your Costco.com order W123456789 is confirmed", `<p>confirmed</p>`),
			3: rawEmail("Costco.com Order Confirmation #1234567890", `<p>Your order is confirmed.</p>`),
		},
	}

	s := New(dialerFor(sess), nil)
	result, err := s.Scrape(context.Background(), mailbox.Config{}, Options{
		Folder: "Costco",
		Rules:  extract.CostcoRules(),
	})
	require.NoError(t, err, "one bad message must not fail the scrape")

	require.Equal(t, []uint32{2}, result.FailedUIDs)
	require.Equal(t, 3, result.Scanned)
	require.Len(t, result.Orders, 2)
}

func TestScrapeFiltersInboxBySenderDomain(t *testing.T) {
	sess := &fakeSession{}
	s := New(dialerFor(sess), nil)

	_, err := s.Scrape(context.Background(), mailbox.Config{}, Options{
		Folder: "INBOX",
		Rules:  extract.CostcoRules(),
	})
	require.NoError(t, err)
	require.Equal(t, "costco.com", sess.lastFilter.FromDomain)

	// Dedicated folders are searched whole.
	_, err = s.Scrape(context.Background(), mailbox.Config{}, Options{
		Folder: "Costco",
		Rules:  extract.CostcoRules(),
	})
	require.NoError(t, err)
	require.Empty(t, sess.lastFilter.FromDomain)
}

func TestScrapeLimitKeepsNewestMessages(t *testing.T) {
	sess := &fakeSession{
		uids: []uint32{1, 2, 3},
		messages: map[uint32][]byte{
			3: rawEmail("Costco.com Order Confirmation #3333333333", `<p>Your order is confirmed.</p>`),
		},
	}

	s := New(dialerFor(sess), nil)
	result, err := s.Scrape(context.Background(), mailbox.Config{}, Options{
		Folder: "Costco",
		Limit:  1,
		Rules:  extract.CostcoRules(),
	})
	require.NoError(t, err)

	// Only the highest UID was fetched; the others were never requested,
	// so their absence from the fake produced no failures.
	require.Equal(t, 1, result.Scanned)
	require.Empty(t, result.FailedUIDs)
	require.Len(t, result.Orders, 1)
	require.Equal(t, "3333333333", result.Orders[0].OrderNumber)
}

func TestScrapeSelectFolderFailureIsFatal(t *testing.T) {
	sess := &fakeSession{
		selectErr: &mailbox.FolderNotFoundError{Folder: "Nope"},
	}

	s := New(dialerFor(sess), nil)
	_, err := s.Scrape(context.Background(), mailbox.Config{}, Options{
		Folder: "Nope",
		Rules:  extract.CostcoRules(),
	})
	require.Error(t, err)
	require.True(t, mailbox.IsFolderNotFound(err))
	require.True(t, sess.closed, "session must be released on the error path")
}

func TestScrapeSortByNumber(t *testing.T) {
	sess := &fakeSession{
		uids: []uint32{1, 2},
		messages: map[uint32][]byte{
			1: rawEmail("Costco.com Order Confirmation #2222222222", `<p>Your order is confirmed.</p>`),
			2: rawEmail("Costco.com Order Confirmation #1111111111", `<p>Your order is confirmed.</p>`),
		},
	}

	s := New(dialerFor(sess), nil)
	result, err := s.Scrape(context.Background(), mailbox.Config{}, Options{
		Folder: "Costco",
		Sort:   aggregate.SortByNumber,
		Rules:  extract.CostcoRules(),
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)
	require.Equal(t, "1111111111", result.Orders[0].OrderNumber)
	require.Equal(t, "2222222222", result.Orders[1].OrderNumber)
}

func TestDiagnoseReturnsTrace(t *testing.T) {
	sess := &fakeSession{
		uids: []uint32{5},
		messages: map[uint32][]byte{
			5: rawEmail("Your Costco.com order W123456789 has shipped", `<p>Tracking Number: 1Z999AA10123456784</p>`),
		},
	}

	s := New(dialerFor(sess), nil)
	trace, err := s.Diagnose(context.Background(), mailbox.Config{}, Options{
		Folder: "Costco",
		Rules:  extract.CostcoRules(),
	}, "W123456789")
	require.NoError(t, err)

	require.Equal(t, "W123456789", sess.lastFilter.Subject)
	require.True(t, trace.VendorMatch)
	require.Equal(t, []string{"W123456789"}, trace.OrderNumbers)
	require.Equal(t, "ups", trace.TrackingRule)
}

func TestDiagnoseNoMatchIsAnError(t *testing.T) {
	sess := &fakeSession{}
	s := New(dialerFor(sess), nil)

	_, err := s.Diagnose(context.Background(), mailbox.Config{}, Options{
		Folder: "Costco",
		Rules:  extract.CostcoRules(),
	}, "W123456789")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no matching message")
}

func TestListFolders(t *testing.T) {
	sess := &fakeSession{folders: []string{"Costco", "INBOX"}}
	s := New(dialerFor(sess), nil)

	folders, err := s.ListFolders(context.Background(), mailbox.Config{})
	require.NoError(t, err)
	require.Equal(t, []string{"Costco", "INBOX"}, folders)
	require.True(t, sess.closed)
}
