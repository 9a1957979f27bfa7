package domain

import "github.com/shopspring/decimal"

// LineStatus is the per-line verdict of the backend validation gate.
type LineStatus string

const (
	LineStatusOK                LineStatus = "ok"
	LineStatusInsufficientStock LineStatus = "insufficient_stock"
	LineStatusPriceMismatch     LineStatus = "price_mismatch"
	LineStatusInactive          LineStatus = "inactive"
	LineStatusNotFound          LineStatus = "not_found"
)

// IsKnown reports whether the status is one of the five statuses the backend may send.
func (s LineStatus) IsKnown() bool {
	switch s {
	case LineStatusOK, LineStatusInsufficientStock, LineStatusPriceMismatch,
		LineStatusInactive, LineStatusNotFound:
		return true
	}
	return false
}

func (s LineStatus) String() string {
	return string(s)
}

// IssueCategory separates line-level issues from the line-agnostic transport failure.
type IssueCategory string

const (
	IssueCategoryNone      IssueCategory = ""
	IssueCategoryLine      IssueCategory = "line"
	IssueCategoryTransport IssueCategory = "transport_error"
)

// ValidationLine is what gets submitted to the backend for one cart line.
type ValidationLine struct {
	ProductID int64           `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Title     string          `json:"title"`
}

// ValidationIssue describes one problematic line. It is never persisted.
type ValidationIssue struct {
	ProductID    int64            `json:"product_id"`
	Key          string           `json:"key,omitempty"`
	Status       LineStatus       `json:"status"`
	AvailableQty *int             `json:"available_qty,omitempty"`
	ServerPrice  *decimal.Decimal `json:"server_price,omitempty"`
	Title        string           `json:"title,omitempty"`
	Message      string           `json:"message"`
}

// ValidationResult is the interpreted backend answer for one submitted snapshot.
type ValidationResult struct {
	Revision uint64
	Issues   []ValidationIssue
}

// OK is true only when no line reported a problem.
func (r *ValidationResult) OK() bool {
	return len(r.Issues) == 0
}

// Primary is the first problematic line in submission order.
func (r *ValidationResult) Primary() *ValidationIssue {
	if len(r.Issues) == 0 {
		return nil
	}
	return &r.Issues[0]
}

// NewValidationLines builds the ordered request payload from a snapshot.
func NewValidationLines(s CartSnapshot) []ValidationLine {
	lines := make([]ValidationLine, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, ValidationLine{
			ProductID: l.ProductID,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Title:     l.Title,
		})
	}
	return lines
}
