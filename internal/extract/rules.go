// Package extract pulls Order candidates out of loosely structured
// retailer emails. All matching is driven by ordered tables of named
// rules evaluated top to bottom, so precedence between patterns is
// auditable and each rule is testable on its own.
package extract

import (
	"regexp"

	"github.com/bencai/orderwatch/internal/model"
)

// rule is one named pattern in a table. The first rule that matches
// wins; later rules are fallbacks. Every pattern captures its value in
// group 1.
type rule struct {
	name string
	re   *regexp.Regexp

	// subjectOnly restricts the rule to the subject scope. Loose
	// patterns (like a bare digit run) are too noisy for body text.
	subjectOnly bool
}

// statusRule maps trigger keywords to a normalized status. Table order
// is the classification precedence: cancellation keywords are checked
// first because Cancelled is the terminal state and must win over
// shipping language in the same email.
type statusRule struct {
	status   model.Status
	keywords []string
}

// RuleSet is the full extraction table for one retailer's emails.
type RuleSet struct {
	// Vendor is the rule set's identifier ("costco", "topps").
	Vendor string

	// SenderDomain filters INBOX searches to this sender.
	SenderDomain string

	// SubjectHints gate extraction: when non-empty, at least one hint
	// must appear in the lowercased subject, or the subject must carry
	// both the word "order" and a status keyword. An empty list means
	// the order-number rules alone decide relevance.
	SubjectHints []string

	// OrderNumber rules run against the subject first, then the body
	// text. No match anywhere means the email is non-order noise.
	OrderNumber []rule

	// Status is the ordered keyword table (see statusRule).
	Status []statusRule

	// AltSkipWords excludes logo/banner image alt text from product
	// extraction (substring match, lowercased).
	AltSkipWords []string

	// ProductRows are the fallback product-name rules, matched against
	// the raw HTML when no usable image alt text exists.
	ProductRows []rule

	// Tracking rules run against the body text, only for orders
	// already classified Shipped or Delivered.
	Tracking []rule

	// OrderDates rules capture a date string from the body text;
	// captures are parsed with DateLayouts.
	OrderDates []rule

	// DateLayouts are the time layouts tried for OrderDates captures.
	DateLayouts []string
}

// defaultStatusTable is shared across vendors. Order matters; see
// statusRule. "cancellation" is deliberately absent: product names such
// as "Active Noise Cancellation" would misfire on it.
var defaultStatusTable = []statusRule{
	{model.StatusCancelled, []string{"cancelled", "canceled"}},
	{model.StatusDelivered, []string{"delivered"}},
	{model.StatusShipped, []string{"shipped"}},
	{model.StatusConfirmed, []string{"confirmed", "order received"}},
}

var defaultDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"1/2/2006",
	"2006-01-02",
}

var defaultTracking = []rule{
	{name: "ups", re: regexp.MustCompile(`\b(1Z[A-Z0-9]{16})\b`)},
	{name: "labeled", re: regexp.MustCompile(`(?i)tracking\s*(?:number|#)?\s*:?\s*([A-Z0-9]{10,30})\b`)},
	{name: "carrier-numeric", re: regexp.MustCompile(`\b(\d{12,22})\b`)},
}

var defaultOrderDates = []rule{
	{name: "order-date", re: regexp.MustCompile(`(?i)order\s+(?:date|placed)\s*:?\s*([A-Za-z]+\s+\d{1,2},\s+\d{4}|\d{1,2}/\d{1,2}/\d{4})`)},
	{name: "delivered-on", re: regexp.MustCompile(`(?i)delivered\s+on\s*:?\s*([A-Za-z]+\s+\d{1,2},\s+\d{4})`)},
}

// CostcoRules matches Costco.com transactional emails: ten-digit order
// numbers, product names embedded as image alt text, UPS tracking.
func CostcoRules() RuleSet {
	return RuleSet{
		Vendor:       "costco",
		SenderDomain: "costco.com",
		SubjectHints: []string{"costco.com"},
		OrderNumber: []rule{
			{name: "labeled", re: regexp.MustCompile(`(?i)order\s*(?:number|#)?\s*:?\s*#?([A-Z]?\d{8,12})\b`)},
			{name: "bare-10-digit", re: regexp.MustCompile(`\b(\d{10})\b`), subjectOnly: true},
		},
		Status: defaultStatusTable,
		AltSkipWords: []string{
			"costco", "logo", "image", "icon", "banner",
			"wholesale", "header", "footer", "email",
		},
		ProductRows: []rule{
			{name: "item-count-row", re: regexp.MustCompile(`(?is)>([^<]{6,120})</div>\s*<div[^>]*>\s*\d+\s*items?\s+from\b`)},
			{name: "product-div-class", re: regexp.MustCompile(`class="[^"]*P88qxe[^"]*">([^<]+)</div>`)},
			{name: "labeled-product", re: regexp.MustCompile(`(?i)product\s*:\s*([^<\r\n]{4,120})`)},
		},
		Tracking:    defaultTracking,
		OrderDates:  defaultOrderDates,
		DateLayouts: defaultDateLayouts,
	}
}

// ToppsRules matches Topps order emails, which use US-XXXXXXXX-S order
// codes and label products in plain "Product:" rows. The order-number
// shape is specific enough that no subject hint is needed.
func ToppsRules() RuleSet {
	return RuleSet{
		Vendor:       "topps",
		SenderDomain: "topps.com",
		OrderNumber: []rule{
			{name: "vendor-code", re: regexp.MustCompile(`(?i)\b(US-\d{7,9}-[A-Z])\b`)},
		},
		Status: defaultStatusTable,
		AltSkipWords: []string{
			"topps", "logo", "image", "icon", "banner", "header", "footer", "email",
		},
		ProductRows: []rule{
			{name: "labeled-product", re: regexp.MustCompile(`(?i)product\s*:\s*([^<\r\n]{4,120})`)},
		},
		Tracking:    defaultTracking,
		OrderDates:  defaultOrderDates,
		DateLayouts: defaultDateLayouts,
	}
}

// RulesFor returns the built-in rule set for a vendor name.
func RulesFor(vendor string) (RuleSet, bool) {
	switch vendor {
	case "costco":
		return CostcoRules(), true
	case "topps":
		return ToppsRules(), true
	default:
		return RuleSet{}, false
	}
}

// Vendors lists the built-in vendor names.
func Vendors() []string {
	return []string{"costco", "topps"}
}
