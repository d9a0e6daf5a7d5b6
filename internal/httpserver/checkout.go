package httpserver

import (
	"net/http"
	"strings"

	"marketplace-checkout/internal/domain"
	checkoutsvc "marketplace-checkout/internal/service/checkout"

	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	AddressID string `json:"address_id"`
	VendorID  string `json:"vendor_id"`
}

type addressRequest struct {
	FullName  string `json:"full_name"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
	IsDefault bool   `json:"is_default"`
}

func (h *handlers) createAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	a, err := h.checkout.SaveAddress(c.Request.Context(), currentIdentity(c).UserID, domain.Address{
		FullName:  strings.TrimSpace(req.FullName),
		Line1:     strings.TrimSpace(req.Line1),
		Line2:     strings.TrimSpace(req.Line2),
		City:      strings.TrimSpace(req.City),
		State:     strings.TrimSpace(req.State),
		ZipCode:   strings.TrimSpace(req.ZipCode),
		Country:   strings.TrimSpace(req.Country),
		IsDefault: req.IsDefault,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	id := currentIdentity(c)
	res, err := h.checkout.Checkout(c.Request.Context(), checkoutsvc.Request{
		UserID:    id.UserID,
		Email:     id.Email,
		AddressID: strings.TrimSpace(req.AddressID),
		VendorID:  strings.TrimSpace(req.VendorID),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": res.SessionID, "url": res.URL})
}

func (h *handlers) checkoutSuccess(c *gin.Context) {
	orders, err := h.orders.SuccessOrders(c.Request.Context(), currentIdentity(c).UserID, c.Query("session_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderResponses(orders, h.currency)})
}
