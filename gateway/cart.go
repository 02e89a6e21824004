package gateway

import (
	"net/http"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/auth"
	"github.com/gin-gonic/gin"
)

func userID(c *gin.Context) string {
	return c.GetString(auth.ContextUserID)
}

func (g *Gateway) getCart(c *gin.Context) {
	items, err := g.store.GetCartItems(c.Request.Context(), userID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1,max=999"`
}

func (g *Gateway) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, badRequest(err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	item, err := g.store.AddToCart(c.Request.Context(), userID(c), req.ProductID, req.Quantity)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type updateCartRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=999"`
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	var req updateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, badRequest(err))
		return
	}
	item, err := g.store.UpdateCartItem(c.Request.Context(), userID(c), c.Param("id"), req.Quantity)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (g *Gateway) removeFromCart(c *gin.Context) {
	ok, err := g.store.RemoveFromCart(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	if !ok {
		g.fail(c, apperr.New(apperr.NotFound, "cart item not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// clearCart is idempotent: an already empty cart is still a success.
func (g *Gateway) clearCart(c *gin.Context) {
	if _, err := g.store.ClearCart(c.Request.Context(), userID(c)); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) getWishlist(c *gin.Context) {
	items, err := g.store.GetWishlistItems(c.Request.Context(), userID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type wishlistRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

func (g *Gateway) addToWishlist(c *gin.Context) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, badRequest(err))
		return
	}
	item, err := g.store.AddToWishlist(c.Request.Context(), userID(c), req.ProductID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (g *Gateway) removeFromWishlist(c *gin.Context) {
	ok, err := g.store.RemoveFromWishlist(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	if !ok {
		g.fail(c, apperr.New(apperr.NotFound, "wishlist item not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
