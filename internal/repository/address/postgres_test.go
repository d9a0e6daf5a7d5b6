package address

import (
	"context"
	"errors"
	"testing"

	"marketplace-checkout/internal/db/dbtest"
	"marketplace-checkout/internal/domain"
)

func TestPostgres_GetForUserChecksOwnership(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool)

	a, err := repo.Create(ctx, domain.Address{UserID: "buyer-1", FullName: "Ada", Line1: "1 Main St", City: "Springfield", Country: "US"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetForUser(ctx, a.ID, "buyer-1")
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if got.City != "Springfield" || got.Line2 != "" {
		t.Fatalf("unexpected address %+v", got)
	}
	if _, err := repo.GetForUser(ctx, a.ID, "buyer-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign address, got %v", err)
	}
}
