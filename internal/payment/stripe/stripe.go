// Package stripe adapts the Stripe API to payment.Provider.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/payment"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var _ payment.Provider = (*Client)(nil)

type Client struct {
	api           *client.API
	webhookSecret string
}

func New(secretKey, webhookSecret string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api, webhookSecret: webhookSecret}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	params := &stripeapi.CheckoutSessionParams{
		Mode:       stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL: stripeapi.String(req.SuccessURL),
		CancelURL:  stripeapi.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}
	for _, li := range req.LineItems {
		product := &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripeapi.String(li.Name),
		}
		if li.Description != "" {
			product.Description = stripeapi.String(li.Description)
		}
		if li.ImageURL != "" {
			product.Images = stripeapi.StringSlice([]string{li.ImageURL})
		}
		params.LineItems = append(params.LineItems, &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripeapi.String(req.Currency),
				UnitAmount:  stripeapi.Int64(li.UnitAmount),
				ProductData: product,
			},
			Quantity: stripeapi.Int64(int64(li.Quantity)),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &payment.Session{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	params := &stripeapi.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := c.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expire checkout session %s: %w", sessionID, err)
	}
	return nil
}

func (c *Client) RetrieveBalanceTransaction(ctx context.Context, id string) (*payment.BalanceTransaction, error) {
	params := &stripeapi.BalanceTransactionParams{}
	params.Context = ctx
	bt, err := c.api.BalanceTransactions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve balance transaction %s: %w", id, err)
	}
	out := &payment.BalanceTransaction{ID: bt.ID, Amount: bt.Amount, Fee: bt.Fee}
	for _, fd := range bt.FeeDetails {
		out.FeeDetails = append(out.FeeDetails, payment.FeeDetail{Type: fd.Type, Amount: fd.Amount})
	}
	return out, nil
}

// ConstructEvent verifies the Stripe-Signature header against the webhook
// secret and extracts the identifiers of the events this system handles.
func (c *Client) ConstructEvent(payload []byte, signatureHeader string) (*payment.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return parseEvent(ev)
}

func parseEvent(ev stripeapi.Event) (*payment.Event, error) {
	out := &payment.Event{ID: ev.ID, Type: payment.EventType(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}
	switch out.Type {
	case payment.EventCheckoutSessionCompleted:
		var s stripeapi.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = s.ID
		if s.PaymentIntent != nil {
			out.PaymentIntentID = s.PaymentIntent.ID
		}
	case payment.EventChargeUpdated:
		var ch stripeapi.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
		if ch.BalanceTransaction != nil {
			out.BalanceTransactionID = ch.BalanceTransaction.ID
		}
	}
	return out, nil
}

func (c *Client) CreateTransfer(ctx context.Context, req payment.TransferRequest) (*payment.Transfer, error) {
	params := &stripeapi.TransferParams{
		Amount:      stripeapi.Int64(req.AmountCents),
		Currency:    stripeapi.String(req.Currency),
		Destination: stripeapi.String(req.Destination),
	}
	if req.Description != "" {
		params.Description = stripeapi.String(req.Description)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	tr, err := c.api.Transfers.New(params)
	if err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}
	return &payment.Transfer{ID: tr.ID}, nil
}
