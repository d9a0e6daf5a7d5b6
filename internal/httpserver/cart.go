package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"marketplace-checkout/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type cartItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  *int            `json:"quantity"`
	OptionIDs json.RawMessage `json:"option_ids"`
}

// bindOptionalJSON decodes the body when there is one.
func bindOptionalJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *handlers) getCart(c *gin.Context) {
	h.respondCart(c, http.StatusOK, h.cartOwner(c))
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	options, err := parseOptionIDs(req.OptionIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	owner := h.cartOwner(c)
	if _, err := h.cart.AddItem(c.Request.Context(), owner, strings.TrimSpace(req.ProductID), quantity, options); err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusCreated, owner)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Quantity == nil {
		badRequest(c, "quantity is required")
		return
	}
	options, err := parseOptionIDs(req.OptionIDs)
	if err != nil {
		h.fail(c, err)
		return
	}

	owner := h.cartOwner(c)
	if err := h.cart.UpdateQuantity(c.Request.Context(), owner, c.Param("productId"), *req.Quantity, options); err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, owner)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	raw := req.OptionIDs
	if len(raw) == 0 {
		if q := c.Query("option_ids"); q != "" {
			raw, _ = json.Marshal(q)
		}
	}
	options, err := parseOptionIDs(raw)
	if err != nil {
		h.fail(c, err)
		return
	}

	owner := h.cartOwner(c)
	if err := h.cart.RemoveItem(c.Request.Context(), owner, c.Param("productId"), options); err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, owner)
}

func (h *handlers) saveForLater(c *gin.Context) {
	owner := h.cartOwner(c)
	if err := h.cart.MarkSavedForLater(c.Request.Context(), owner, c.Param("lineId")); err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, owner)
}

func (h *handlers) moveToCart(c *gin.Context) {
	owner := h.cartOwner(c)
	if err := h.cart.MoveToCart(c.Request.Context(), owner, c.Param("lineId")); err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, owner)
}

// mergeCart moves the guest cart behind the cart_token cookie into the
// signed-in user's cart and drops the cookie.
func (h *handlers) mergeCart(c *gin.Context) {
	id := currentIdentity(c)
	merged := 0
	if id.CartToken != "" {
		n, err := h.cart.Merge(c.Request.Context(), id.CartToken, id.UserID)
		if err != nil {
			h.fail(c, err)
			return
		}
		merged = n
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cartCookie, "", -1, "/", "", h.secureCookies, true)
		h.logger.Info("guest cart merged", zap.String("user_id", id.UserID), zap.Int("lines", merged))
	}

	view, err := h.cart.View(c.Request.Context(), domain.UserOwner(id.UserID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"merged": merged, "cart": toCartResponse(view, h.currency)})
}

func (h *handlers) respondCart(c *gin.Context, status int, owner domain.Owner) {
	view, err := h.cart.View(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, toCartResponse(view, h.currency))
}
