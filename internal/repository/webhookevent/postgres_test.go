package webhookevent

import (
	"context"
	"errors"
	"testing"

	"marketplace-checkout/internal/db/dbtest"
	"marketplace-checkout/internal/domain"
)

func TestPostgres_RecordIsInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool)

	fresh, err := repo.Record(ctx, pool, "evt_1", "charge.updated")
	if err != nil || !fresh {
		t.Fatalf("first Record: fresh=%v err=%v", fresh, err)
	}
	fresh, err = repo.Record(ctx, pool, "evt_1", "charge.updated")
	if err != nil || fresh {
		t.Fatalf("redelivery must not be fresh: fresh=%v err=%v", fresh, err)
	}
}

func TestPostgres_DeferredChargeLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool)

	if _, err := repo.PeekDeferred(ctx, "pi_1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected nothing parked, got %v", err)
	}
	if err := repo.Defer(ctx, pool, DeferredCharge{PaymentIntentID: "pi_1", BalanceTransactionID: "txn_1", EventID: "evt_1"}); err != nil {
		t.Fatalf("Defer: %v", err)
	}
	if err := repo.Defer(ctx, pool, DeferredCharge{PaymentIntentID: "pi_1", BalanceTransactionID: "txn_2", EventID: "evt_2"}); err != nil {
		t.Fatalf("Defer again: %v", err)
	}
	got, err := repo.TakeDeferred(ctx, pool, "pi_1")
	if err != nil {
		t.Fatalf("TakeDeferred: %v", err)
	}
	if got.BalanceTransactionID != "txn_2" {
		t.Fatalf("expected latest balance transaction, got %+v", got)
	}
	if _, err := repo.TakeDeferred(ctx, pool, "pi_1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after take, got %v", err)
	}
}
