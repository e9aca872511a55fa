package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
)

type fakeCheckout struct {
	params *stripe.CheckoutSessionCreateParams
	url    string
	err    error
}

func (f *fakeCheckout) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (string, error) {
	f.params = params
	return f.url, f.err
}

func serveCheckout(t *testing.T, creator CheckoutCreator, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewCheckoutEndpoints(creator, "https://app.example.com/").RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCheckoutCreatesSubscriptionSession(t *testing.T) {
	creator := &fakeCheckout{url: "https://checkout.stripe.com/c/pay/cs_test"}
	rec := serveCheckout(t, creator,
		`{"priceId":"price_123","userId":"u-1","planName":"Pro","interval":"month"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://checkout.stripe.com/c/pay/cs_test"}`, rec.Body.String())

	p := creator.params
	require.NotNil(t, p)
	assert.Equal(t, "subscription", *p.Mode)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, "price_123", *p.LineItems[0].Price)
	assert.Equal(t, int64(1), *p.LineItems[0].Quantity)
	assert.Equal(t, "https://app.example.com/dashboard?success=true&session_id={CHECKOUT_SESSION_ID}", *p.SuccessURL)
	assert.Equal(t, "https://app.example.com/pricing?canceled=true", *p.CancelURL)
	assert.Equal(t, map[string]string{"userId": "u-1", "planName": "Pro", "interval": "month"}, p.Metadata)
}

func TestCheckoutRequiresPrice(t *testing.T) {
	creator := &fakeCheckout{}
	rec := serveCheckout(t, creator, `{"userId":"u-1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Price ID is required"}`, rec.Body.String())
	assert.Nil(t, creator.params)
}

func TestCheckoutProviderFailure(t *testing.T) {
	rec := serveCheckout(t, &fakeCheckout{err: errors.New("card declined")}, `{"priceId":"price_123"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
