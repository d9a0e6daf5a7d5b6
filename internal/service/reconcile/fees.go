package reconcile

import (
	"marketplace-checkout/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SplitFees divides an order total between the payment processor, the
// platform and the vendor. The order carries total/gross of the processor
// fee; the platform takes platformPct percent of what remains. Commissions
// round to whole minor units and the vendor subtotal absorbs the remainder,
// so the three parts always add up to total.
func SplitFees(total, gross, processorFee int64, platformPct decimal.Decimal) domain.FeeSplit {
	totalDec := decimal.NewFromInt(total)

	processorShare := decimal.Zero
	if gross > 0 {
		processorShare = totalDec.
			Div(decimal.NewFromInt(gross)).
			Mul(decimal.NewFromInt(processorFee)).
			Round(0)
	}
	platform := totalDec.Sub(processorShare).Mul(platformPct).Div(hundred).Round(0)

	online := processorShare.IntPart()
	website := platform.IntPart()
	return domain.FeeSplit{
		OnlinePaymentCommission: online,
		WebsiteCommission:       website,
		VendorSubtotal:          total - online - website,
	}
}
