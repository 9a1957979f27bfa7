package validation

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// TransportMessage is shown for every transport failure; it names no line.
const TransportMessage = "We could not verify your cart. Please try again."

// Message renders the user-facing text for one line issue.
func Message(issue domain.ValidationIssue) string {
	switch issue.Status {
	case domain.LineStatusInsufficientStock:
		if issue.AvailableQty == nil || *issue.AvailableQty <= 0 {
			return fmt.Sprintf("%q is out of stock", issue.Title)
		}
		return fmt.Sprintf("Only %d left of %q", *issue.AvailableQty, issue.Title)
	case domain.LineStatusPriceMismatch:
		if issue.ServerPrice == nil {
			return fmt.Sprintf("The price of %q changed", issue.Title)
		}
		return fmt.Sprintf("The price of %q changed to %s", issue.Title, issue.ServerPrice.StringFixed(2))
	case domain.LineStatusInactive:
		return fmt.Sprintf("%q is no longer available", issue.Title)
	case domain.LineStatusNotFound:
		return fmt.Sprintf("%q could not be found", issue.Title)
	}
	return ""
}
