package notify

import (
	"context"
	"testing"
	"time"

	"marketplace-checkout/internal/domain"
)

type recordingPublisher struct {
	keys []string
	sent []Notification
}

func (p *recordingPublisher) Publish(_ context.Context, key string, n Notification) error {
	p.keys = append(p.keys, key)
	p.sent = append(p.sent, n)
	return nil
}

func TestDispatcherPayloads(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub)
	d.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	order := domain.Order{ID: "o1", UserID: "buyer", VendorID: "v1", PaymentIntentID: "pi_1"}
	if err := d.NotifyVendorNewOrder(ctx, order); err != nil {
		t.Fatalf("NotifyVendorNewOrder: %v", err)
	}
	if err := d.NotifyBuyerCheckoutCompleted(ctx, []domain.Order{order, {ID: "o2", UserID: "buyer", PaymentIntentID: "pi_1"}}); err != nil {
		t.Fatalf("NotifyBuyerCheckoutCompleted: %v", err)
	}
	vendor := domain.Vendor{UserID: "v1", Email: "shop@example.com", StoreName: "Shop"}
	if err := d.NotifyVendorStatusChanged(ctx, vendor, domain.VendorApproved); err != nil {
		t.Fatalf("NotifyVendorStatusChanged: %v", err)
	}

	if len(pub.sent) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(pub.sent))
	}
	if pub.sent[0].Kind != KindVendorNewOrder || pub.keys[0] != "o1" || pub.sent[0].Recipient != "v1" {
		t.Fatalf("unexpected vendor notification %+v", pub.sent[0])
	}
	if pub.sent[1].Kind != KindBuyerCheckoutCompleted || pub.keys[1] != "pi_1" || len(pub.sent[1].Orders) != 2 {
		t.Fatalf("unexpected buyer notification %+v", pub.sent[1])
	}
	if pub.sent[2].Status != "approved" || pub.sent[2].Recipient != "shop@example.com" {
		t.Fatalf("unexpected status notification %+v", pub.sent[2])
	}
	if !pub.sent[2].OccurredAt.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %s", pub.sent[2].OccurredAt)
	}
}

func TestBuyerNotificationSkipsEmpty(t *testing.T) {
	pub := &recordingPublisher{}
	if err := NewDispatcher(pub).NotifyBuyerCheckoutCompleted(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("expected nothing published")
	}
}

func TestNewPublisherFallsBackToLog(t *testing.T) {
	pub, closeFn := NewPublisher(nil, "topic", nil)
	if _, ok := pub.(*LogPublisher); !ok {
		t.Fatalf("expected log publisher, got %T", pub)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
