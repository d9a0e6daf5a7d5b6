// Package payout disburses vendor earnings once per billing window.
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/metrics"
	"marketplace-checkout/internal/payment"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Epoch starts the first window of a vendor that was never paid.
var Epoch = time.Unix(0, 0).UTC()

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type vendorLister interface {
	ListPayoutEligible(ctx context.Context) ([]domain.Vendor, error)
}

type earnings interface {
	SumVendorSubtotal(ctx context.Context, vendorID string, from, until time.Time) (int64, error)
}

type ledger interface {
	LastUntil(ctx context.Context, vendorID string) (time.Time, bool, error)
	Create(ctx context.Context, q db.Querier, p *domain.Payout) error
}

type transferer interface {
	CreateTransfer(ctx context.Context, req payment.TransferRequest) (*payment.Transfer, error)
}

// Report summarises one run.
type Report struct {
	Paid        int
	Skipped     int
	Failed      int
	AmountCents int64
}

type Engine struct {
	tx        txRunner
	vendors   vendorLister
	orders    earnings
	payouts   ledger
	transfers transferer
	currency  string
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewEngine(tx txRunner, vendors vendorLister, orders earnings, payouts ledger, transfers transferer, currency string, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tx:        tx,
		vendors:   vendors,
		orders:    orders,
		payouts:   payouts,
		transfers: transfers,
		currency:  currency,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// WindowEnd is the first instant of the month before now, in UTC. Payouts
// never include the current or the previous partial month.
func WindowEnd(now time.Time) time.Time {
	n := now.UTC()
	return time.Date(n.Year(), n.Month()-1, 1, 0, 0, 0, 0, time.UTC)
}

// TransferKey identifies the transfer of one vendor window so a retried run
// cannot move funds twice.
func TransferKey(vendorID string, until time.Time) string {
	return fmt.Sprintf("payout-%s-%d", vendorID, until.Unix())
}

var errAlreadyPaid = errors.New("window already paid")

// Run pays every eligible vendor for [last until, WindowEnd(now)). A vendor
// failure is logged and counted; it never stops the batch.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	var report Report
	vendors, err := e.vendors.ListPayoutEligible(ctx)
	if err != nil {
		return report, fmt.Errorf("list vendors: %w", err)
	}
	until := WindowEnd(e.now())
	e.logger.Info("payout run started", zap.Int("vendors", len(vendors)), zap.Time("until", until))

	for _, v := range vendors {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		amount, err := e.payVendor(ctx, v, until)
		switch {
		case err == nil && amount > 0:
			report.Paid++
			report.AmountCents += amount
			e.metrics.Payout("paid", amount)
		case err == nil:
			report.Skipped++
			e.metrics.Payout("skipped", 0)
		case errors.Is(err, errAlreadyPaid):
			report.Skipped++
			e.metrics.Payout("already_paid", 0)
		default:
			report.Failed++
			e.metrics.Payout("failed", 0)
			e.logger.Error("vendor payout failed", zap.String("vendor_id", v.UserID), zap.Error(err))
		}
	}

	e.logger.Info("payout run finished",
		zap.Int("paid", report.Paid),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int64("amount_cents", report.AmountCents),
	)
	return report, nil
}

// payVendor returns the amount transferred, zero when nothing was due.
func (e *Engine) payVendor(ctx context.Context, v domain.Vendor, until time.Time) (int64, error) {
	from, ok, err := e.payouts.LastUntil(ctx, v.UserID)
	if err != nil {
		return 0, fmt.Errorf("last payout: %w", err)
	}
	if !ok {
		from = Epoch
	}
	if !from.Before(until) {
		return 0, nil
	}

	amount, err := e.orders.SumVendorSubtotal(ctx, v.UserID, from, until)
	if err != nil {
		return 0, fmt.Errorf("sum earnings: %w", err)
	}
	if amount <= 0 {
		e.logger.Debug("nothing due", zap.String("vendor_id", v.UserID), zap.Int64("amount_cents", amount))
		return 0, nil
	}

	p := &domain.Payout{VendorID: v.UserID, AmountCents: amount, StartingFrom: from, Until: until}
	err = e.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if err := e.payouts.Create(ctx, tx, p); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return errAlreadyPaid
			}
			return fmt.Errorf("record payout: %w", err)
		}
		transfer, err := e.transfers.CreateTransfer(ctx, payment.TransferRequest{
			AmountCents:    amount,
			Currency:       e.currency,
			Destination:    v.PayoutAccountID,
			Description:    fmt.Sprintf("%s payout %s to %s", v.StoreName, from.Format(time.DateOnly), until.Format(time.DateOnly)),
			IdempotencyKey: TransferKey(v.UserID, until),
		})
		if err != nil {
			return fmt.Errorf("transfer: %w", err)
		}
		e.logger.Info("vendor paid",
			zap.String("vendor_id", v.UserID),
			zap.String("transfer_id", transfer.ID),
			zap.Int64("amount_cents", amount),
			zap.Time("from", from),
			zap.Time("until", until),
		)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}
