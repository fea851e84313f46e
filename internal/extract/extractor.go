package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/bencai/orderwatch/internal/model"
)

// Input is one decoded email presented for extraction.
type Input struct {
	Subject string
	HTML    string

	// Date is the message's own date, used when the body carries no
	// recognizable order date.
	Date time.Time

	// UID is the source message identifier, carried through to the
	// resulting candidates.
	UID uint32
}

// Trace records which rule produced each field, for the debug endpoint.
// It never affects extraction results.
type Trace struct {
	Subject         string   `json:"subject"`
	Snippet         string   `json:"snippet"`
	VendorMatch     bool     `json:"vendor_match"`
	OrderNumberRule string   `json:"order_number_rule,omitempty"`
	OrderNumbers    []string `json:"order_numbers,omitempty"`
	StatusRule      string   `json:"status_rule,omitempty"`
	ProductMethod   string   `json:"product_method,omitempty"`
	TrackingRule    string   `json:"tracking_rule,omitempty"`
	DateRule        string   `json:"date_rule,omitempty"`
}

// Extractor applies one vendor's RuleSet. Extraction is layered and
// tolerant: every step degrades to an absent field rather than an
// error, and only a missing order number discards the email entirely.
type Extractor struct {
	rules RuleSet
}

// New creates an Extractor for the given rule set.
func New(rules RuleSet) *Extractor {
	return &Extractor{rules: rules}
}

// Rules returns the extractor's rule set.
func (e *Extractor) Rules() RuleSet {
	return e.rules
}

// Extract produces zero or more Order candidates from one email.
// An email with no recognizable order number yields none; that is a
// silent skip, not an error.
func (e *Extractor) Extract(in Input) []model.Order {
	orders, _ := e.run(in)
	return orders
}

// ExtractTrace is Extract plus the per-field rule trace, for debugging
// a single message.
func (e *Extractor) ExtractTrace(in Input) ([]model.Order, *Trace) {
	return e.run(in)
}

const snippetLen = 1000

func (e *Extractor) run(in Input) ([]model.Order, *Trace) {
	trace := &Trace{Subject: in.Subject}
	if len(in.HTML) > snippetLen {
		trace.Snippet = in.HTML[:snippetLen]
	} else {
		trace.Snippet = in.HTML
	}

	subjectLower := strings.ToLower(in.Subject)
	bodyText := flatten(in.HTML)
	bodyLower := strings.ToLower(bodyText)

	if !e.subjectRelevant(subjectLower) {
		return nil, trace
	}
	trace.VendorMatch = true

	numbers, numberRule := e.orderNumbers(in.Subject, bodyText)
	if len(numbers) == 0 {
		return nil, trace
	}
	trace.OrderNumberRule = numberRule
	trace.OrderNumbers = numbers

	status, statusRule := e.classifyStatus(subjectLower, bodyLower)
	trace.StatusRule = statusRule

	products, productMethod := e.products(in.HTML)
	trace.ProductMethod = productMethod
	if products == nil {
		products = []string{}
	}

	var tracking string
	if status == model.StatusShipped || status == model.StatusDelivered {
		tracking, trace.TrackingRule = e.tracking(bodyText)
	}

	orderDate, dateRule := e.orderDate(bodyText)
	trace.DateRule = dateRule
	if orderDate.IsZero() {
		orderDate = in.Date
	}

	orders := make([]model.Order, 0, len(numbers))
	for _, number := range numbers {
		orders = append(orders, model.Order{
			OrderNumber:    number,
			Status:         status,
			Products:       products,
			TrackingNumber: tracking,
			OrderDate:      orderDate,
			SourceUIDs:     []uint32{in.UID},
		})
	}
	return orders, trace
}

// subjectRelevant gates extraction on the vendor's subject hints so an
// unrelated newsletter that happens to contain a digit run is not
// mistaken for an order. A subject that pairs "order" with a status
// keyword also passes; with no hints configured, the order-number rules
// alone decide.
func (e *Extractor) subjectRelevant(subjectLower string) bool {
	if len(e.rules.SubjectHints) == 0 {
		return true
	}
	for _, hint := range e.rules.SubjectHints {
		if strings.Contains(subjectLower, hint) {
			return true
		}
	}
	if !strings.Contains(subjectLower, "order") {
		return false
	}
	status, _ := statusFromText(e.rules.Status, subjectLower)
	return status != model.StatusUnknown
}

// orderNumbers evaluates the order-number table: subject scope first,
// then body scope with subject-only rules skipped. Within the winning
// rule all distinct matches become candidates, since one shipment email
// can reference several orders.
func (e *Extractor) orderNumbers(subject, bodyText string) ([]string, string) {
	for _, r := range e.rules.OrderNumber {
		if numbers := collectMatches(r.re, subject); len(numbers) > 0 {
			return numbers, "subject:" + r.name
		}
	}
	for _, r := range e.rules.OrderNumber {
		if r.subjectOnly {
			continue
		}
		if numbers := collectMatches(r.re, bodyText); len(numbers) > 0 {
			return numbers, "body:" + r.name
		}
	}
	return nil, ""
}

func collectMatches(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		token := strings.ToUpper(strings.TrimSpace(m[1]))
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		out = append(out, token)
	}
	return out
}

// classifyStatus scans the subject through the ordered status table
// and falls back to the body only when the subject says nothing.
// The subject is authoritative because body text leaks status-like
// words through product names.
func (e *Extractor) classifyStatus(subjectLower, bodyLower string) (model.Status, string) {
	if status, kw := statusFromText(e.rules.Status, subjectLower); status != model.StatusUnknown {
		return status, "subject:" + kw
	}
	if status, kw := statusFromText(e.rules.Status, bodyLower); status != model.StatusUnknown {
		return status, "body:" + kw
	}
	return model.StatusUnknown, ""
}

func statusFromText(table []statusRule, textLower string) (model.Status, string) {
	for _, sr := range table {
		for _, kw := range sr.keywords {
			if strings.Contains(textLower, kw) {
				return sr.status, kw
			}
		}
	}
	return model.StatusUnknown, ""
}

// altPattern captures image alt attributes; vendor emails embed the
// product display name there.
var altPattern = regexp.MustCompile(`alt="([^"]{4,200})"`)

// products extracts product display names. Primary method: image alt
// text minus the vendor's skip list; fallback: the vendor's product-row
// rules over the raw HTML. Both decode entities. Finding nothing is
// not an error.
func (e *Extractor) products(html string) ([]string, string) {
	var out []string
	seen := make(map[string]bool)

	add := func(raw string) {
		name := cleanFragment(raw)
		if len(name) < 4 || len(name) > 120 {
			return
		}
		if strings.HasPrefix(name, "http") {
			return
		}
		if seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for _, m := range altPattern.FindAllStringSubmatch(html, -1) {
		lower := strings.ToLower(m[1])
		skip := false
		for _, word := range e.rules.AltSkipWords {
			if strings.Contains(lower, word) {
				skip = true
				break
			}
		}
		if !skip {
			add(m[1])
		}
	}
	if len(out) > 0 {
		return out, "image-alt"
	}

	for _, r := range e.rules.ProductRows {
		for _, m := range r.re.FindAllStringSubmatch(html, -1) {
			add(m[1])
		}
		if len(out) > 0 {
			return out, "row:" + r.name
		}
	}
	return nil, ""
}

// tracking evaluates the tracking table against the body text.
func (e *Extractor) tracking(bodyText string) (string, string) {
	for _, r := range e.rules.Tracking {
		if m := r.re.FindStringSubmatch(bodyText); m != nil {
			return m[1], r.name
		}
	}
	return "", ""
}

// orderDate evaluates the date table against the body text and parses
// the first capture that fits a known layout.
func (e *Extractor) orderDate(bodyText string) (time.Time, string) {
	for _, r := range e.rules.OrderDates {
		m := r.re.FindStringSubmatch(bodyText)
		if m == nil {
			continue
		}
		for _, layout := range e.rules.DateLayouts {
			if t, err := time.Parse(layout, m[1]); err == nil {
				return t, r.name
			}
		}
	}
	return time.Time{}, ""
}
