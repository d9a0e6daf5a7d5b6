package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitFeesSingleOrder(t *testing.T) {
	// $45.00 charge, Stripe fee $1.61, 10% platform fee.
	split := SplitFees(4500, 4500, 161, decimal.NewFromInt(10))
	assert.Equal(t, int64(161), split.OnlinePaymentCommission)
	assert.Equal(t, int64(434), split.WebsiteCommission) // (4500-161)*10% = 433.9
	assert.Equal(t, int64(3905), split.VendorSubtotal)
	assert.Equal(t, int64(4500), split.Total())
}

func TestSplitFeesProportionalAcrossOrders(t *testing.T) {
	pct := decimal.NewFromInt(10)
	a := SplitFees(2500, 4500, 161, pct)
	b := SplitFees(2000, 4500, 161, pct)

	assert.Equal(t, int64(89), a.OnlinePaymentCommission) // 161*25/45 = 89.44
	assert.Equal(t, int64(72), b.OnlinePaymentCommission) // 161*20/45 = 71.56
	assert.Equal(t, int64(2500), a.Total())
	assert.Equal(t, int64(2000), b.Total())
}

func TestSplitFeesSumsExactlyForAwkwardAmounts(t *testing.T) {
	pct := decimal.RequireFromString("12.5")
	for _, tc := range []struct{ total, gross, fee int64 }{
		{1, 3, 1}, {333, 1000, 59}, {9999, 10001, 317}, {10, 10, 0},
	} {
		split := SplitFees(tc.total, tc.gross, tc.fee, pct)
		assert.Equal(t, tc.total, split.Total(), "total=%d gross=%d fee=%d", tc.total, tc.gross, tc.fee)
		assert.GreaterOrEqual(t, split.VendorSubtotal, int64(0))
	}
}

func TestSplitFeesZeroGross(t *testing.T) {
	split := SplitFees(1000, 0, 50, decimal.NewFromInt(10))
	assert.Equal(t, int64(0), split.OnlinePaymentCommission)
	assert.Equal(t, int64(100), split.WebsiteCommission)
	assert.Equal(t, int64(900), split.VendorSubtotal)
}
