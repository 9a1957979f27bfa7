package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineDescriptor is what a caller knows about a product when adding it to the cart.
// MaxQuantity is the stock ceiling known at add time; nil means unbounded.
type LineDescriptor struct {
	ProductID   int64
	Key         string
	Title       string
	UnitPrice   decimal.Decimal
	Image       *string
	MaxQuantity *int
}

// CartLine is one entry of the cart, unique by Key.
type CartLine struct {
	ProductID   int64           `json:"product_id"`
	Key         string          `json:"key"`
	Title       string          `json:"title"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Image       *string         `json:"image,omitempty"`
	Quantity    int             `json:"quantity"`
	MaxQuantity *int            `json:"max_quantity,omitempty"`
}

// Subtotal is UnitPrice * Quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Clone returns a deep copy so callers never share pointers with the store.
func (l CartLine) Clone() CartLine {
	c := l
	if l.Image != nil {
		img := *l.Image
		c.Image = &img
	}
	if l.MaxQuantity != nil {
		m := *l.MaxQuantity
		c.MaxQuantity = &m
	}
	return c
}

// CartSnapshot is the cart as of a given revision, lines in insertion order.
type CartSnapshot struct {
	Revision uint64
	Lines    []CartLine
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// CurrentSchemaVersion is the version of CartRecord written by this binary.
const CurrentSchemaVersion = 1

// CartRecord is the durable layout of the cart.
type CartRecord struct {
	SchemaVersion int        `json:"schema_version"`
	OwnerID       string     `json:"owner_id"`
	Revision      uint64     `json:"revision"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Lines         []CartLine `json:"lines"`
}
