package httpserver

import (
	"net/http"

	"marketplace-checkout/internal/domain"

	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.orders.ListForBuyer(c.Request.Context(), currentIdentity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderResponses(orders, h.currency)})
}

func (h *handlers) trackOrder(c *gin.Context) {
	o, err := h.orders.Track(c.Request.Context(), c.Param("trackingNumber"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*o, h.currency))
}

func (h *handlers) advanceShipping(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	to, ok := domain.ParseShippingStatus(req.Status)
	if !ok {
		badRequest(c, "unknown shipping status")
		return
	}
	o, err := h.orders.AdvanceShipping(c.Request.Context(), currentIdentity(c).UserID, c.Param("orderId"), to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*o, h.currency))
}

func (h *handlers) changeVendorStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	v, err := h.vendors.ChangeStatus(c.Request.Context(), c.Param("vendorId"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
