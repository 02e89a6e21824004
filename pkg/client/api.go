package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/shopspring/decimal"
)

func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.get(ctx, pathAuthUser, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := c.get(ctx, pathCategories, nil, &out)
	return out, err
}

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	var out models.Category
	if err := c.send(ctx, http.MethodPost, pathCategories, in, &out, pathCategories); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProductQuery mirrors the listing filters; zero values are omitted.
type ProductQuery struct {
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     repository.ProductSort
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.MinPrice != nil {
		v.Set("minPrice", q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		v.Set("maxPrice", q.MaxPrice.String())
	}
	if q.Sort != "" {
		v.Set("sort", string(q.Sort))
	}
	return v
}

func (c *Client) Products(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	var out []models.Product
	err := c.get(ctx, pathProducts, q.values(), &out)
	return out, err
}

func (c *Client) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := c.get(ctx, pathProducts+"/featured", nil, &out)
	return out, err
}

func (c *Client) Product(ctx context.Context, id string) (*models.Product, error) {
	var out models.Product
	if err := c.get(ctx, pathProducts+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ProductInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Price       models.Money     `json:"price"`
	SalePrice   models.NullMoney `json:"salePrice"`
	Brand       string           `json:"brand,omitempty"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Images      []string         `json:"images,omitempty"`
	InStock     int              `json:"inStock"`
	CategoryID  *string          `json:"categoryId,omitempty"`
}

// ProductPatch sends only non-nil fields. A non-nil SalePrice holding no
// value clears the sale.
type ProductPatch struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Price       *models.Money     `json:"price,omitempty"`
	SalePrice   *models.NullMoney `json:"salePrice,omitempty"`
	Brand       *string           `json:"brand,omitempty"`
	ImageURL    *string           `json:"imageUrl,omitempty"`
	Images      []string          `json:"images,omitempty"`
	InStock     *int              `json:"inStock,omitempty"`
	IsActive    *bool             `json:"isActive,omitempty"`
	CategoryID  *string           `json:"categoryId,omitempty"`
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	var out models.Product
	if err := c.send(ctx, http.MethodPost, pathProducts, in, &out, pathProducts); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*models.Product, error) {
	var out models.Product
	if err := c.send(ctx, http.MethodPut, pathProducts+"/"+url.PathEscape(id), patch, &out, pathProducts); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, pathProducts+"/"+url.PathEscape(id), nil, nil, pathProducts)
}

func (c *Client) ProductReviews(ctx context.Context, productID string) ([]models.Review, error) {
	var out []models.Review
	err := c.get(ctx, pathProducts+"/"+url.PathEscape(productID)+"/reviews", nil, &out)
	return out, err
}

type reviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// CreateReview also invalidates listings since the product rating moves.
func (c *Client) CreateReview(ctx context.Context, productID string, rating int, comment string) (*models.Review, error) {
	var out models.Review
	err := c.send(ctx, http.MethodPost, pathProducts+"/"+url.PathEscape(productID)+"/reviews",
		reviewInput{Rating: rating, Comment: comment}, &out, pathProducts)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Cart(ctx context.Context) ([]models.CartItem, error) {
	var out []models.CartItem
	err := c.get(ctx, pathCart, nil, &out)
	return out, err
}

type cartInput struct {
	ProductID string `json:"productId,omitempty"`
	Quantity  int    `json:"quantity"`
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*models.CartItem, error) {
	var out models.CartItem
	if err := c.send(ctx, http.MethodPost, pathCart, cartInput{ProductID: productID, Quantity: quantity}, &out, pathCart); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCartItem(ctx context.Context, id string, quantity int) (*models.CartItem, error) {
	var out models.CartItem
	if err := c.send(ctx, http.MethodPut, pathCart+"/"+url.PathEscape(id), cartInput{Quantity: quantity}, &out, pathCart); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveFromCart(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, pathCart+"/"+url.PathEscape(id), nil, nil, pathCart)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.send(ctx, http.MethodDelete, pathCart, nil, nil, pathCart)
}

// Wishlist also refreshes the wishlist snapshot in State.
func (c *Client) Wishlist(ctx context.Context) ([]models.WishlistItem, error) {
	var out []models.WishlistItem
	if err := c.get(ctx, pathWishlist, nil, &out); err != nil {
		return nil, err
	}
	c.state.SetWishlist(out)
	return out, nil
}

func (c *Client) AddToWishlist(ctx context.Context, productID string) (*models.WishlistItem, error) {
	var out models.WishlistItem
	if err := c.send(ctx, http.MethodPost, pathWishlist, cartInput{ProductID: productID}, &out, pathWishlist); err != nil {
		return nil, err
	}
	c.state.addWishlisted(&out)
	return &out, nil
}

func (c *Client) RemoveFromWishlist(ctx context.Context, id string) error {
	if err := c.send(ctx, http.MethodDelete, pathWishlist+"/"+url.PathEscape(id), nil, nil, pathWishlist); err != nil {
		return err
	}
	c.state.removeWishlisted(id)
	return nil
}

func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := c.get(ctx, pathOrders, nil, &out)
	return out, err
}

func (c *Client) AllOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := c.get(ctx, pathOrders, url.Values{"all": {"true"}}, &out)
	return out, err
}

func (c *Client) Order(ctx context.Context, id string) (*models.Order, error) {
	var out models.Order
	if err := c.get(ctx, pathOrders+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type OrderItemInput struct {
	ProductID string       `json:"productId"`
	Quantity  int          `json:"quantity"`
	Price     models.Money `json:"price"`
}

type OrderInput struct {
	Status          models.OrderStatus     `json:"status"`
	Subtotal        models.Money           `json:"subtotal"`
	Tax             models.Money           `json:"tax"`
	Total           models.Money           `json:"total"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	OrderItems      []OrderItemInput       `json:"orderItems"`
}

// CreateOrder invalidates the cart too, since checkout empties it.
func (c *Client) CreateOrder(ctx context.Context, in OrderInput) (*models.Order, error) {
	var out models.Order
	if err := c.send(ctx, http.MethodPost, pathOrders, in, &out, pathCart, pathOrders); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	var out models.Order
	body := map[string]string{"status": string(status)}
	if err := c.send(ctx, http.MethodPut, pathOrders+"/"+url.PathEscape(id)+"/status", body, &out, pathOrders); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*repository.Stats, error) {
	var out repository.Stats
	if _, err := c.getFresh(ctx, "/api/admin/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AuditTrail(ctx context.Context, entityID string, limit int) ([]repository.AuditLog, error) {
	var out []repository.AuditLog
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if _, err := c.getFresh(ctx, "/api/admin/audit/"+url.PathEscape(entityID), q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
