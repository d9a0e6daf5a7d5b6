package domain

import (
	"strings"
	"time"
)

type VendorStatus string

const (
	VendorPending  VendorStatus = "pending"
	VendorApproved VendorStatus = "approved"
	VendorRejected VendorStatus = "rejected"
)

func ParseVendorStatus(v string) (VendorStatus, bool) {
	switch s := VendorStatus(strings.ToLower(strings.TrimSpace(v))); s {
	case VendorPending, VendorApproved, VendorRejected:
		return s, true
	}
	return "", false
}

type Vendor struct {
	UserID          string       `json:"userId"`
	StoreName       string       `json:"storeName"`
	StoreAddress    string       `json:"storeAddress,omitempty"`
	Email           string       `json:"email"`
	Status          VendorStatus `json:"status"`
	PayoutAccountID string       `json:"-"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// PayoutEligible reports whether funds can be transferred to the vendor.
func (v Vendor) PayoutEligible() bool {
	return v.Status == VendorApproved && v.PayoutAccountID != ""
}

// Payout records one disbursement for the half-open window [StartingFrom, Until).
type Payout struct {
	ID           string    `json:"id"`
	VendorID     string    `json:"vendorId"`
	AmountCents  int64     `json:"amountCents"`
	StartingFrom time.Time `json:"startingFrom"`
	Until        time.Time `json:"until"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Address struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	FullName  string `json:"fullName"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zipCode,omitempty"`
	Country   string `json:"country"`
	IsDefault bool   `json:"isDefault"`
}
