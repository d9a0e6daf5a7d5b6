package httpserver

import (
	"net/http"
	"strings"

	"marketplace-checkout/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Headers set by the authentication proxy in front of the API.
const (
	headerUserID    = "X-User-ID"
	headerUserEmail = "X-User-Email"
	headerUserRole  = "X-User-Role"

	roleAdmin = "admin"

	cartCookie       = "cart_token"
	cartCookieMaxAge = 30 * 24 * 60 * 60

	identityKey = "identity"
)

type identity struct {
	UserID    string
	Email     string
	Role      string
	CartToken string
}

func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity{
			UserID: strings.TrimSpace(c.GetHeader(headerUserID)),
			Email:  strings.TrimSpace(c.GetHeader(headerUserEmail)),
			Role:   strings.ToLower(strings.TrimSpace(c.GetHeader(headerUserRole))),
		}
		if token, err := c.Cookie(cartCookie); err == nil {
			if _, err := uuid.Parse(token); err == nil {
				id.CartToken = token
			}
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func currentIdentity(c *gin.Context) identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(identity); ok {
			return id
		}
	}
	return identity{}
}

// cartOwner returns the user owner, or the anonymous owner behind the
// cart_token cookie, issuing a new token when the request has none.
func (h *handlers) cartOwner(c *gin.Context) domain.Owner {
	id := currentIdentity(c)
	if id.UserID != "" {
		return domain.UserOwner(id.UserID)
	}
	if id.CartToken == "" {
		id.CartToken = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cartCookie, id.CartToken, cartCookieMaxAge, "/", "", h.secureCookies, true)
		c.Set(identityKey, id)
	}
	return domain.AnonymousOwner(id.CartToken)
}

func requireUser(c *gin.Context) {
	if currentIdentity(c).UserID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(http.StatusUnauthorized, "authentication required"))
		return
	}
	c.Next()
}

func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := currentIdentity(c)
		if id.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(http.StatusUnauthorized, "authentication required"))
			return
		}
		if id.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody(http.StatusForbidden, "forbidden"))
			return
		}
		c.Next()
	}
}
