package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/events"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pricing"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
)

func (g *Gateway) getAuthUser(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	c.JSON(http.StatusOK, user)
}

func (g *Gateway) listOrders(c *gin.Context) {
	ctx := c.Request.Context()
	user, _ := auth.CurrentUser(c)

	var (
		orders []models.Order
		err    error
	)
	if c.Query("all") == "true" {
		if !user.IsAdmin {
			g.fail(c, apperr.New(apperr.Forbidden, "admin access required"))
			return
		}
		orders, err = g.store.GetAllOrders(ctx)
	} else {
		orders, err = g.store.GetOrders(ctx, user.ID)
	}
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder hides other users' orders behind NotFound.
func (g *Gateway) getOrder(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	order, err := g.store.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	if order.UserID != user.ID && !user.IsAdmin {
		g.fail(c, apperr.New(apperr.NotFound, "order not found"))
		return
	}
	c.JSON(http.StatusOK, order)
}

type orderItemRequest struct {
	ProductID string        `json:"productId" binding:"required"`
	Quantity  int           `json:"quantity" binding:"required,min=1,max=999"`
	Price     *models.Money `json:"price"`
}

type createOrderRequest struct {
	Status          string                 `json:"status"`
	Subtotal        *models.Money          `json:"subtotal"`
	Tax             *models.Money          `json:"tax"`
	Total           *models.Money          `json:"total"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required,oneof=card paypal"`
	OrderItems      []orderItemRequest     `json:"orderItems" binding:"dive"`
}

// expected returns the caller's totals only when all three were sent.
func (r *createOrderRequest) expected() *pricing.Summary {
	if r.Subtotal == nil || r.Tax == nil || r.Total == nil {
		return nil
	}
	return &pricing.Summary{Subtotal: *r.Subtotal, Tax: *r.Tax, Total: *r.Total}
}

func (g *Gateway) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, badRequest(err))
		return
	}
	if req.Status != "" && req.Status != string(models.OrderStatusPending) {
		g.fail(c, apperr.New(apperr.Validation, "new orders must be pending"))
		return
	}

	lines := make([]repository.OrderLine, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		lines = append(lines, repository.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := g.store.PlaceOrder(c.Request.Context(), repository.PlaceOrderInput{
		UserID:          userID(c),
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Expected:        req.expected(),
	})
	if err != nil {
		g.fail(c, err)
		return
	}

	g.publish(c, events.OrderCreated, order.ID, map[string]interface{}{
		"userId": order.UserID,
		"total":  order.Total.String(),
		"items":  len(order.OrderItems),
		"status": string(order.Status),
	})
	c.JSON(http.StatusCreated, order)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, badRequest(err))
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.Validation, err, "invalid status"))
		return
	}

	order, err := g.store.UpdateOrderStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.publish(c, events.OrderStatusChanged, order.ID, map[string]interface{}{
		"userId": order.UserID,
		"status": string(order.Status),
		"badge":  string(order.Status.Badge()),
	})
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) orderFeed(c *gin.Context) {
	if g.hub == nil {
		g.fail(c, apperr.New(apperr.NotFound, "order feed disabled"))
		return
	}
	g.hub.ServeWS(c.Writer, c.Request)
}

func (g *Gateway) stats(c *gin.Context) {
	st, err := g.store.Stats(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

const defaultAuditLimit = 50

func (g *Gateway) auditTrail(c *gin.Context) {
	if g.audit == nil {
		g.fail(c, apperr.New(apperr.NotFound, "audit log disabled"))
		return
	}
	limit := int64(defaultAuditLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > 500 {
			g.fail(c, apperr.New(apperr.Validation, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	logs, err := g.audit.GetAuditLogs(c.Request.Context(), c.Param("entityId"), limit)
	if err != nil {
		g.fail(c, err)
		return
	}
	if logs == nil {
		logs = []*repository.AuditLog{}
	}
	c.JSON(http.StatusOK, logs)
}
