package stripe

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/payment"

	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

func signed(payload []byte) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testSecret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func TestConstructEventCheckoutSessionCompleted(t *testing.T) {
	c := New("sk_test", testSecret)
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_1","object":"checkout.session","payment_intent":"pi_1"}}}`)

	ev, err := c.ConstructEvent(payload, signed(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != payment.EventCheckoutSessionCompleted {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.SessionID != "cs_1" || ev.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected identifiers %+v", ev)
	}
}

func TestConstructEventChargeUpdated(t *testing.T) {
	c := New("sk_test", testSecret)
	payload := []byte(`{"id":"evt_2","object":"event","type":"charge.updated",
		"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_1","balance_transaction":"txn_1"}}}`)

	ev, err := c.ConstructEvent(payload, signed(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.PaymentIntentID != "pi_1" || ev.BalanceTransactionID != "txn_1" {
		t.Fatalf("unexpected identifiers %+v", ev)
	}
}

func TestConstructEventRejectsBadSignature(t *testing.T) {
	c := New("sk_test", testSecret)
	payload := []byte(`{"id":"evt_3","object":"event","type":"charge.updated","data":{"object":{}}}`)

	_, err := c.ConstructEvent(payload, "t=1,v1=deadbeef")
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestConstructEventUnknownTypePassesThrough(t *testing.T) {
	c := New("sk_test", testSecret)
	payload := []byte(`{"id":"evt_4","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	ev, err := c.ConstructEvent(payload, signed(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != "customer.created" || ev.SessionID != "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
