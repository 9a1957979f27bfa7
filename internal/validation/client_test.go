package validation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/circuitbreaker"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDoer answers every call with a canned JSON body or error.
type fakeDoer struct {
	body string
	err  error
	got  validateRequest
}

func (f *fakeDoer) Do(_ context.Context, method, path string, _ http.Header, in, out any) error {
	if f.err != nil {
		return f.err
	}
	f.got = in.(validateRequest)
	return json.Unmarshal([]byte(f.body), out)
}

func snapshot() domain.CartSnapshot {
	return domain.CartSnapshot{
		Revision: 4,
		Lines: []domain.CartLine{
			{ProductID: 1, Key: "p1", Title: "Mug", UnitPrice: decimal.NewFromInt(100), Quantity: 1},
			{ProductID: 2, Key: "p2", Title: "Tea", UnitPrice: decimal.NewFromInt(50), Quantity: 3},
		},
	}
}

func TestValidate_AllOK(t *testing.T) {
	doer := &fakeDoer{body: `{"ok":true,"items":[{"product_id":1,"status":"ok"},{"product_id":2,"status":"ok"}]}`}
	c := NewClient(doer, time.Second, zap.NewNop())

	result, err := c.Validate(context.Background(), snapshot())
	require.NoError(t, err)

	assert.True(t, result.OK())
	assert.Nil(t, result.Primary())
	assert.Equal(t, uint64(4), result.Revision)
	require.Len(t, doer.got.Items, 2)
	assert.Equal(t, int64(1), doer.got.Items[0].ProductID)
	assert.Equal(t, 3, doer.got.Items[1].Quantity)
}

func TestValidate_InsufficientStockBlocks(t *testing.T) {
	doer := &fakeDoer{body: `{"ok":false,"items":[{"product_id":1,"status":"ok"},{"product_id":2,"status":"insufficient_stock","available_qty":0}]}`}
	c := NewClient(doer, time.Second, zap.NewNop())

	result, err := c.Validate(context.Background(), snapshot())
	require.NoError(t, err)

	require.False(t, result.OK())
	primary := result.Primary()
	assert.Equal(t, int64(2), primary.ProductID)
	assert.Equal(t, "p2", primary.Key)
	require.NotNil(t, primary.AvailableQty)
	assert.Equal(t, 0, *primary.AvailableQty)
	assert.Equal(t, `"Tea" is out of stock`, primary.Message)
}

func TestValidate_PrimaryIsFirstInSubmissionOrder(t *testing.T) {
	// the response lists the lines in reverse order
	doer := &fakeDoer{body: `{"ok":false,"items":[
		{"product_id":2,"status":"inactive"},
		{"product_id":1,"status":"price_mismatch","server_price":"120","title":"Big Mug"}]}`}
	c := NewClient(doer, time.Second, zap.NewNop())

	result, err := c.Validate(context.Background(), snapshot())
	require.NoError(t, err)

	require.Len(t, result.Issues, 2)
	assert.Equal(t, domain.LineStatusPriceMismatch, result.Primary().Status)
	assert.Equal(t, `The price of "Big Mug" changed to 120.00`, result.Primary().Message)
	assert.Equal(t, `"Tea" is no longer available`, result.Issues[1].Message)
}

func TestValidate_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing line", `{"ok":true,"items":[{"product_id":1,"status":"ok"}]}`},
		{"unknown status", `{"ok":false,"items":[{"product_id":1,"status":"ok"},{"product_id":2,"status":"backordered"}]}`},
		{"ok flag with failing line", `{"ok":true,"items":[{"product_id":1,"status":"ok"},{"product_id":2,"status":"not_found"}]}`},
		{"failure flag with all ok", `{"ok":false,"items":[{"product_id":1,"status":"ok"},{"product_id":2,"status":"ok"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&fakeDoer{body: tt.body}, time.Second, zap.NewNop())

			_, err := c.Validate(context.Background(), snapshot())
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestValidate_TransportFailure(t *testing.T) {
	c := NewClient(&fakeDoer{err: backend.ErrTransport}, time.Second, zap.NewNop())

	_, err := c.Validate(context.Background(), snapshot())
	assert.ErrorIs(t, err, backend.ErrTransport)
}

func TestValidate_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cart/validate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t,
			`{"items":[{"product_id":1,"unit_price":"100","quantity":1,"title":"Mug"},{"product_id":2,"unit_price":"50","quantity":3,"title":"Tea"}]}`,
			string(body))
		_, _ = w.Write([]byte(`{"ok":true,"items":[{"product_id":1,"status":"ok"},{"product_id":2,"status":"ok"}]}`))
	}))
	defer srv.Close()

	b := backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: time.Second, Breaker: circuitbreaker.DefaultOptions()}, zap.NewNop())
	c := NewClient(b, time.Second, zap.NewNop())

	result, err := c.Validate(context.Background(), snapshot())
	require.NoError(t, err)
	assert.True(t, result.OK())
}

func TestValidate_ServerErrorIsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: time.Second, Breaker: circuitbreaker.DefaultOptions()}, zap.NewNop())
	c := NewClient(b, time.Second, zap.NewNop())

	result, err := c.Validate(context.Background(), snapshot())
	assert.Nil(t, result)
	var se *backend.StatusError
	assert.True(t, errors.As(err, &se))
}

func TestMessage(t *testing.T) {
	two := 2
	assert.Equal(t, `Only 2 left of "Mug"`,
		Message(domain.ValidationIssue{Status: domain.LineStatusInsufficientStock, AvailableQty: &two, Title: "Mug"}))
	assert.Equal(t, `"Mug" could not be found`,
		Message(domain.ValidationIssue{Status: domain.LineStatusNotFound, Title: "Mug"}))
	assert.Empty(t, Message(domain.ValidationIssue{Status: domain.LineStatusOK}))
}
