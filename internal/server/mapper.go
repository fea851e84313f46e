package server

import (
	"github.com/bencai/orderwatch/internal/model"
)

// apiOrder is the wire shape of one merged order. The nullable fields
// are pointers so absent values serialize as null, keeping the record
// field-stable for consumers.
type apiOrder struct {
	OrderNumber    string   `json:"order_number"`
	Status         string   `json:"status"`
	Products       []string `json:"products"`
	TrackingNumber *string  `json:"tracking_number"`
	OrderDate      *string  `json:"order_date"`
}

func toAPIOrder(o model.Order) apiOrder {
	out := apiOrder{
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Products:    o.Products,
	}
	if out.Products == nil {
		out.Products = []string{}
	}
	if o.TrackingNumber != "" {
		t := o.TrackingNumber
		out.TrackingNumber = &t
	}
	if !o.OrderDate.IsZero() {
		d := o.OrderDate.Format("2006-01-02")
		out.OrderDate = &d
	}
	return out
}

func toAPIOrders(orders []model.Order) []apiOrder {
	out := make([]apiOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, toAPIOrder(o))
	}
	return out
}
