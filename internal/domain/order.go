package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderDetails is what the address and payment steps collect before submission.
type OrderDetails struct {
	AddressID     int64  `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
}

type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderRequest struct {
	IdempotencyKey string          `json:"-"`
	AddressID      int64           `json:"address_id"`
	PaymentMethod  string          `json:"payment_method"`
	Items          []OrderItem     `json:"items"`
	Total          decimal.Decimal `json:"total"`
}

type OrderConfirmation struct {
	OrderID   string          `json:"order_id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewOrderRequest captures the validated snapshot as order items.
func NewOrderRequest(key string, s CartSnapshot, details OrderDetails) OrderRequest {
	req := OrderRequest{
		IdempotencyKey: key,
		AddressID:      details.AddressID,
		PaymentMethod:  details.PaymentMethod,
		Items:          make([]OrderItem, 0, len(s.Lines)),
		Total:          decimal.Zero,
	}
	for _, l := range s.Lines {
		req.Items = append(req.Items, OrderItem{
			ProductID: l.ProductID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
		req.Total = req.Total.Add(l.Subtotal())
	}
	return req
}
