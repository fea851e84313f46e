// Package aggregate folds per-message Order candidates into the final
// result set keyed by order number. Merging is a pure function over
// (existing, candidate) pairs, so it can be tested with no mail or
// network dependency.
package aggregate

import (
	"sort"

	"github.com/bencai/orderwatch/internal/model"
)

// SortMode selects the ordering of a result set.
type SortMode int

const (
	// SortFirstSeen keeps the order candidates were first added in.
	SortFirstSeen SortMode = iota

	// SortByNumber orders results by order number.
	SortByNumber
)

// SortModeFor maps a config string to a SortMode, defaulting to
// first-seen order.
func SortModeFor(name string) SortMode {
	if name == "order_number" {
		return SortByNumber
	}
	return SortFirstSeen
}

// Merge combines an existing merged Order with one new candidate.
// Passing nil for existing normalizes the candidate into a fresh Order.
// Rules:
//   - status changes only when the candidate's rank is equal or
//     higher, so a stale Confirmed email never demotes a Shipped order
//     regardless of arrival order;
//   - products are unioned in first-seen order without duplicates and
//     never dropped;
//   - tracking number is set once and kept;
//   - the earliest known order date wins.
func Merge(existing *model.Order, c model.Order) model.Order {
	if existing == nil {
		return model.Order{
			OrderNumber:    c.OrderNumber,
			Status:         c.Status,
			Products:       unionProducts(nil, c.Products),
			TrackingNumber: c.TrackingNumber,
			OrderDate:      c.OrderDate,
			SourceUIDs:     append([]uint32(nil), c.SourceUIDs...),
		}
	}

	out := *existing
	out.Products = unionProducts(append([]string(nil), existing.Products...), c.Products)
	out.SourceUIDs = append(append([]uint32(nil), existing.SourceUIDs...), c.SourceUIDs...)

	if c.Status.Rank() >= out.Status.Rank() {
		out.Status = c.Status
	}
	if out.TrackingNumber == "" {
		out.TrackingNumber = c.TrackingNumber
	}
	if out.OrderDate.IsZero() || (!c.OrderDate.IsZero() && c.OrderDate.Before(out.OrderDate)) {
		out.OrderDate = c.OrderDate
	}
	return out
}

// unionProducts appends src names not already in dst, preserving order.
// The returned slice is never nil.
func unionProducts(dst, src []string) []string {
	seen := make(map[string]bool, len(dst)+len(src))
	out := make([]string, 0, len(dst)+len(src))
	for _, lst := range [][]string{dst, src} {
		for _, name := range lst {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Aggregator accumulates candidates for one scrape invocation. It is
// owned exclusively by that invocation and is not safe for concurrent
// use.
type Aggregator struct {
	byNumber  map[string]model.Order
	firstSeen []string
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{byNumber: make(map[string]model.Order)}
}

// Add folds one candidate in. Candidates without an order number are
// ignored.
func (a *Aggregator) Add(c model.Order) {
	if c.OrderNumber == "" {
		return
	}
	if existing, ok := a.byNumber[c.OrderNumber]; ok {
		a.byNumber[c.OrderNumber] = Merge(&existing, c)
		return
	}
	a.byNumber[c.OrderNumber] = Merge(nil, c)
	a.firstSeen = append(a.firstSeen, c.OrderNumber)
}

// Len returns the number of distinct orders seen so far.
func (a *Aggregator) Len() int {
	return len(a.firstSeen)
}

// Orders returns the merged result set in the requested order.
func (a *Aggregator) Orders(mode SortMode) []model.Order {
	numbers := append([]string(nil), a.firstSeen...)
	if mode == SortByNumber {
		sort.Strings(numbers)
	}
	out := make([]model.Order, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, a.byNumber[n])
	}
	return out
}
