package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v84"
)

// CheckoutCreator creates a hosted checkout session and returns its URL
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (string, error)
}

type stripeCheckout struct {
	client *stripe.Client
}

func NewStripeCheckout(secretKey string) CheckoutCreator {
	return &stripeCheckout{client: stripe.NewClient(secretKey)}
}

func (s *stripeCheckout) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (string, error) {
	session, err := s.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session.URL, nil
}

type CheckoutEndpoints struct {
	creator CheckoutCreator
	appURL  string
}

func NewCheckoutEndpoints(creator CheckoutCreator, appURL string) *CheckoutEndpoints {
	return &CheckoutEndpoints{creator: creator, appURL: strings.TrimRight(appURL, "/")}
}

type CheckoutRequest struct {
	PriceID  string `json:"priceId"`
	UserID   string `json:"userId"`
	PlanName string `json:"planName"`
	Interval string `json:"interval"`
}

func (e *CheckoutEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", e.CreateCheckoutHandler)
}

func (e *CheckoutEndpoints) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if strings.TrimSpace(req.PriceID) == "" {
		writeError(w, http.StatusBadRequest, "Price ID is required")
		return
	}
	userID := resolveUserID(r, req.UserID)

	params := e.buildParams(req.PriceID, userID, req.PlanName, req.Interval)
	url, err := e.creator.CreateCheckoutSession(r.Context(), params)
	if err != nil {
		slog.Error("Stripe checkout failed", "error", err, "user_id", userID, "price_id", req.PriceID)
		writeError(w, http.StatusInternalServerError, "Error creating checkout session")
		return
	}

	slog.Info("Checkout session created", "user_id", userID, "plan", req.PlanName)
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (e *CheckoutEndpoints) buildParams(priceID, userID, planName, interval string) *stripe.CheckoutSessionCreateParams {
	return &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(e.appURL + "/dashboard?success=true&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(e.appURL + "/pricing?canceled=true"),
		Metadata: map[string]string{
			"userId":   userID,
			"planName": planName,
			"interval": interval,
		},
	}
}
