package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

type quoteResponse struct {
	ProductID   string   `json:"productId"`
	Title       string   `json:"title"`
	VendorID    string   `json:"vendorId"`
	VendorName  string   `json:"vendorName"`
	OptionIDs   []string `json:"optionIds"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Price       money    `json:"price"`
	InStock     bool     `json:"inStock"`
	// Available is null for unlimited stock.
	Available *int `json:"available"`
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.products.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) quoteProduct(c *gin.Context) {
	var raw json.RawMessage
	if q := c.Query("option_ids"); q != "" {
		raw, _ = json.Marshal(q)
	}
	options, err := parseOptionIDs(raw)
	if err != nil {
		h.fail(c, err)
		return
	}

	q, err := h.products.Quote(c.Request.Context(), c.Param("productId"), options)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := quoteResponse{
		ProductID:   q.Product.ID,
		Title:       q.Product.Title,
		VendorID:    q.Product.VendorID,
		VendorName:  q.Product.VendorName,
		OptionIDs:   optionIDs(q.Options),
		Description: q.Description,
		ImageURL:    q.ImageURL,
		Price:       centPrecision(h.currency, q.UnitPriceCents),
		InStock:     q.InStock(),
	}
	if !q.Stock.Unlimited {
		n := q.Stock.Quantity
		resp.Available = &n
	}
	c.JSON(http.StatusOK, resp)
}
