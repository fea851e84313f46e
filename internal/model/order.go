package model

import "time"

// Status is the normalized order lifecycle state derived from email text.
// It is never stored verbatim from the source; the extractor classifies
// raw wording into one of these values.
type Status string

const (
	StatusUnknown   Status = "Unknown"
	StatusConfirmed Status = "Confirmed"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// statusRank is the fixed precedence used when merging conflicting
// statuses for the same order number. Cancellation is the terminal
// state and outranks everything, so a cancelled order never flips back
// to Shipped when emails arrive out of lifecycle order.
var statusRank = map[Status]int{
	StatusUnknown:   0,
	StatusConfirmed: 1,
	StatusShipped:   2,
	StatusDelivered: 3,
	StatusCancelled: 4,
}

// Rank returns the merge precedence of the status. Higher wins.
func (s Status) Rank() int {
	return statusRank[s]
}

// Order is the unified representation of one retail order, merged from
// every email that references its order number.
type Order struct {
	// OrderNumber uniquely identifies the order in a result set.
	OrderNumber string `json:"order_number"`

	// Status is the normalized lifecycle state (use Status* constants).
	Status Status `json:"status"`

	// Products holds product display names in first-seen order.
	// Empty when extraction found none; never nil.
	Products []string `json:"products"`

	// TrackingNumber is the carrier tracking token, if any.
	TrackingNumber string `json:"tracking_number,omitempty"`

	// OrderDate is the earliest known date for the order, taken from
	// the email body when present, else from the message itself.
	// Zero when unknown.
	OrderDate time.Time `json:"order_date,omitzero"`

	// SourceUIDs lists the mailbox UIDs of the messages that
	// contributed to this order. Internal reference, not identity.
	SourceUIDs []uint32 `json:"-"`
}

// Stats summarizes one scrape's merged orders by status.
type Stats struct {
	Total     int `json:"total"`
	Confirmed int `json:"confirmed"`
	Shipped   int `json:"shipped"`
	Delivered int `json:"delivered"`
	Cancelled int `json:"cancelled"`
}

// CountStats tallies orders by status.
func CountStats(orders []Order) Stats {
	s := Stats{Total: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case StatusConfirmed:
			s.Confirmed++
		case StatusShipped:
			s.Shipped++
		case StatusDelivered:
			s.Delivered++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}
