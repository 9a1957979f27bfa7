package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Product is the backend's product payload consumed when adding to the cart.
type Product struct {
	ProductID         int64           `json:"product_id"`
	Slug              string          `json:"slug,omitempty"`
	Title             string          `json:"title"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Images            []string        `json:"images"`
	AvailableQuantity int             `json:"available_quantity"`
}

// Descriptor turns a product into a cart line descriptor. AvailableQuantity becomes
// the MaxQuantity ceiling. The slug is the line key, falling back to the product id.
func (p Product) Descriptor() LineDescriptor {
	key := p.Slug
	if key == "" {
		key = strconv.FormatInt(p.ProductID, 10)
	}
	maxQty := p.AvailableQuantity
	d := LineDescriptor{
		ProductID:   p.ProductID,
		Key:         key,
		Title:       p.Title,
		UnitPrice:   p.UnitPrice,
		MaxQuantity: &maxQty,
	}
	for _, img := range p.Images {
		if img != "" {
			d.Image = &img
			break
		}
	}
	return d
}
