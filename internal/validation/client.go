package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const validatePath = "/api/v1/cart/validate"

// ErrMalformedResponse marks an answer that cannot be trusted. Callers treat it
// like any other transport failure.
var ErrMalformedResponse = errors.New("malformed validation response")

// Doer is the backend transport used for the round-trip.
type Doer interface {
	Do(ctx context.Context, method, path string, header http.Header, in, out any) error
}

type Client struct {
	backend Doer
	timeout time.Duration
	log     *zap.Logger
}

func NewClient(backend Doer, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{backend: backend, timeout: timeout, log: log}
}

type validateRequest struct {
	Items []domain.ValidationLine `json:"items"`
}

type responseItem struct {
	ProductID    int64            `json:"product_id"`
	Status       string           `json:"status"`
	AvailableQty *int             `json:"available_qty,omitempty"`
	ServerPrice  *decimal.Decimal `json:"server_price,omitempty"`
	Title        string           `json:"title,omitempty"`
}

type validateResponse struct {
	OK    *bool          `json:"ok"`
	Items []responseItem `json:"items"`
}

// Validate submits the snapshot lines in order and interprets the answer. Any
// returned error belongs to the transport category.
func (c *Client) Validate(ctx context.Context, snapshot domain.CartSnapshot) (*domain.ValidationResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var resp validateResponse
	req := validateRequest{Items: domain.NewValidationLines(snapshot)}
	if err := c.backend.Do(ctx, http.MethodPost, validatePath, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("validate cart: %w", err)
	}

	result, err := interpret(snapshot, resp)
	if err != nil {
		logger.FromContext(ctx, c.log).Warn("discarding validation response",
			zap.Uint64("revision", snapshot.Revision),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// interpret derives the outcome from the per-line statuses and checks the overall
// flag agrees with them.
func interpret(snapshot domain.CartSnapshot, resp validateResponse) (*domain.ValidationResult, error) {
	byProduct := make(map[int64][]responseItem, len(resp.Items))
	for _, item := range resp.Items {
		byProduct[item.ProductID] = append(byProduct[item.ProductID], item)
	}

	result := &domain.ValidationResult{Revision: snapshot.Revision}
	for _, line := range snapshot.Lines {
		queue := byProduct[line.ProductID]
		if len(queue) == 0 {
			return nil, fmt.Errorf("%w: no status for product %d", ErrMalformedResponse, line.ProductID)
		}
		item := queue[0]
		byProduct[line.ProductID] = queue[1:]

		status := domain.LineStatus(item.Status)
		if !status.IsKnown() {
			return nil, fmt.Errorf("%w: unknown status %q for product %d", ErrMalformedResponse, item.Status, line.ProductID)
		}
		if status == domain.LineStatusOK {
			continue
		}

		issue := domain.ValidationIssue{
			ProductID:    line.ProductID,
			Key:          line.Key,
			Status:       status,
			AvailableQty: item.AvailableQty,
			ServerPrice:  item.ServerPrice,
			Title:        item.Title,
		}
		if issue.Title == "" {
			issue.Title = line.Title
		}
		issue.Message = Message(issue)
		result.Issues = append(result.Issues, issue)
	}

	if resp.OK != nil && *resp.OK != result.OK() {
		return nil, fmt.Errorf("%w: ok=%t contradicts %d line issues", ErrMalformedResponse, *resp.OK, len(result.Issues))
	}
	return result, nil
}
