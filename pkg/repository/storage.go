package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound matches every not-found error returned by the store.
var ErrNotFound = apperr.ErrNotFound

type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price-asc"
	SortPriceDesc ProductSort = "price-desc"
	SortRating    ProductSort = "rating"
	SortFeatured  ProductSort = "featured"
)

func ParseProductSort(s string) (ProductSort, error) {
	switch ProductSort(s) {
	case "":
		return SortNewest, nil
	case SortNewest, SortPriceAsc, SortPriceDesc, SortRating, SortFeatured:
		return ProductSort(s), nil
	}
	return "", apperr.Newf(apperr.Validation, "unknown sort %q", s)
}

// ProductFilter is a conjunction: active AND category AND search AND price range.
// Empty fields do not filter.
type ProductFilter struct {
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     ProductSort
}

// ProductUpdate carries a partial update; nil fields are left unchanged.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *models.Money
	SalePrice   *models.NullMoney
	Brand       *string
	ImageURL    *string
	Images      []string
	InStock     *int
	IsActive    *bool
	CategoryID  *string
}

type OrderLine struct {
	ProductID string
	Quantity  int
}

// PlaceOrderInput describes a checkout submission. Lines empty means "use the
// cart". Expected, when set, holds the caller's totals which must agree with
// the server-side computation.
type PlaceOrderInput struct {
	UserID          string
	Lines           []OrderLine
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	Expected        *pricing.Summary
}

type Stats struct {
	Products int64        `json:"products"`
	Orders   int64        `json:"orders"`
	Revenue  models.Money `json:"revenue"`
}

// Store is the storefront data-access surface.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)

	GetCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error)

	GetProducts(ctx context.Context, f ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, u ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) (bool, error)
	GetFeaturedProducts(ctx context.Context) ([]models.Product, error)

	GetProductReviews(ctx context.Context, productID string) ([]models.Review, error)
	CreateReview(ctx context.Context, r *models.Review) (*models.Review, error)

	GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error)
	AddToCart(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
	UpdateCartItem(ctx context.Context, userID, id string, quantity int) (*models.CartItem, error)
	RemoveFromCart(ctx context.Context, userID, id string) (bool, error)
	ClearCart(ctx context.Context, userID string) (bool, error)

	GetWishlistItems(ctx context.Context, userID string) ([]models.WishlistItem, error)
	AddToWishlist(ctx context.Context, userID, productID string) (*models.WishlistItem, error)
	RemoveFromWishlist(ctx context.Context, userID, id string) (bool, error)

	GetOrders(ctx context.Context, userID string) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (*models.Order, error)
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	GetAllOrders(ctx context.Context) ([]models.Order, error)
	Stats(ctx context.Context) (*Stats, error)
}

type GormStorage struct {
	db      *gorm.DB
	taxRate decimal.Decimal
	logger  *zap.Logger
}

func NewGormStorage(db *gorm.DB, taxRate decimal.Decimal, logger *zap.Logger) *GormStorage {
	return &GormStorage{db: db, taxRate: taxRate, logger: logger}
}

// Migrate creates or updates every table.
func (s *GormStorage) Migrate() error {
	if err := s.db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

func notFound(what string) error {
	return apperr.Newf(apperr.NotFound, "%s not found", what)
}

// first loads one row, translating gorm.ErrRecordNotFound.
func first(tx *gorm.DB, dest interface{}, what string, query string, args ...interface{}) error {
	if err := tx.Where(query, args...).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(what)
		}
		return fmt.Errorf("failed to get %s: %w", what, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *GormStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := first(s.db.WithContext(ctx), &user, "user", "id = ?", id); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertUser inserts the user or refreshes its profile fields. IsAdmin is
// only ever raised here, never cleared.
func (s *GormStorage) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	var out models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		user.UpdatedAt = now
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "profile_image_url", "updated_at"}),
		}).Create(user).Error
		if err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}
		if user.IsAdmin {
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("is_admin", true).Error; err != nil {
				return fmt.Errorf("failed to promote user: %w", err)
			}
		}
		return first(tx, &out, "user", "id = ?", user.ID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

func (s *GormStorage) GetCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *GormStorage) CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

const effectivePrice = "COALESCE(sale_price, price)"

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (s *GormStorage) GetProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)

	if f.Category != "" {
		q = q.Where("category_id = ?", f.Category)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		q = q.Where("(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!' OR LOWER(brand) LIKE ? ESCAPE '!')",
			like, like, like)
	}
	if f.MinPrice != nil {
		q = q.Where(effectivePrice+" >= ?", f.MinPrice.InexactFloat64())
	}
	if f.MaxPrice != nil {
		q = q.Where(effectivePrice+" <= ?", f.MaxPrice.InexactFloat64())
	}

	switch f.Sort {
	case SortPriceAsc:
		q = q.Order(effectivePrice + " ASC")
	case SortPriceDesc:
		q = q.Order(effectivePrice + " DESC")
	case SortRating:
		q = q.Order("rating DESC")
	case SortFeatured:
		q = q.Order("rating DESC").Order("review_count DESC")
	}
	q = q.Order("created_at DESC").Order("id")

	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *GormStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := first(s.db.WithContext(ctx).Preload("Category"), &product, "product", "id = ?", id); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *GormStorage) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := pricing.ValidatePrices(p.Price, p.SalePrice); err != nil {
		return nil, err
	}
	p.IsActive = true
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

func (u ProductUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.Price != nil {
		cols["price"] = *u.Price
	}
	if u.SalePrice != nil {
		cols["sale_price"] = *u.SalePrice
	}
	if u.Brand != nil {
		cols["brand"] = *u.Brand
	}
	if u.ImageURL != nil {
		cols["image_url"] = *u.ImageURL
	}
	if u.InStock != nil {
		cols["in_stock"] = *u.InStock
	}
	if u.IsActive != nil {
		cols["is_active"] = *u.IsActive
	}
	if u.CategoryID != nil {
		if *u.CategoryID == "" {
			cols["category_id"] = nil
		} else {
			cols["category_id"] = *u.CategoryID
		}
	}
	return cols
}

func (s *GormStorage) UpdateProduct(ctx context.Context, id string, u ProductUpdate) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		if err := first(locked, &product, "product", "id = ?", id); err != nil {
			return err
		}
		if u.Price != nil || u.SalePrice != nil {
			price, sale := product.Price, product.SalePrice
			if u.Price != nil {
				price = *u.Price
			}
			if u.SalePrice != nil {
				sale = *u.SalePrice
			}
			if err := pricing.ValidatePrices(price, sale); err != nil {
				return err
			}
		}
		if u.Images != nil {
			product.Images = u.Images
			if err := tx.Model(&product).Select("images").Updates(&product).Error; err != nil {
				return fmt.Errorf("failed to update product images: %w", err)
			}
		}
		if cols := u.columns(); len(cols) > 0 {
			if err := tx.Model(&product).Updates(cols).Error; err != nil {
				return fmt.Errorf("failed to update product: %w", err)
			}
		}
		return first(tx, &product, "product", "id = ?", id)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct only clears the active flag so order history stays intact.
func (s *GormStorage) DeleteProduct(ctx context.Context, id string) (bool, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(tx, &product, "product", "id = ?", id); err != nil {
			return err
		}
		return tx.Model(&product).Update("is_active", false).Error
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	return true, nil
}

const featuredLimit = 8

func (s *GormStorage) GetFeaturedProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("rating DESC").Order("created_at DESC").
		Limit(featuredLimit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list featured products: %w", err)
	}
	return products, nil
}

// ---------------------------------------------------------------------------
// Reviews
// ---------------------------------------------------------------------------

func (s *GormStorage) GetProductReviews(ctx context.Context, productID string) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// CreateReview stores the review and refreshes the product's rating and
// review count in the same transaction.
func (s *GormStorage) CreateReview(ctx context.Context, r *models.Review) (*models.Review, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return nil, apperr.New(apperr.Validation, "rating must be between 1 and 5")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := first(tx, &product, "product", "id = ?", r.ProductID); err != nil {
			return err
		}
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("failed to create review: %w", err)
		}

		var agg struct {
			Count int64
			Avg   decimal.NullDecimal
		}
		if err := tx.Model(&models.Review{}).
			Select("COUNT(*) AS count, AVG(rating) AS avg").
			Where("product_id = ?", r.ProductID).
			Scan(&agg).Error; err != nil {
			return fmt.Errorf("failed to aggregate reviews: %w", err)
		}
		return tx.Model(&product).Updates(map[string]interface{}{
			"rating":       agg.Avg.Decimal.Round(2),
			"review_count": agg.Count,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ---------------------------------------------------------------------------
// Cart
// ---------------------------------------------------------------------------

func (s *GormStorage) GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}
	return items, nil
}

var errCartRowRace = errors.New("cart row inserted concurrently")

// MaxCartQuantity bounds a single cart row, including increments.
const MaxCartQuantity = 999

func checkCartQuantity(quantity int) error {
	if quantity < 1 || quantity > MaxCartQuantity {
		return apperr.Newf(apperr.Validation, "quantity must be between 1 and %d", MaxCartQuantity)
	}
	return nil
}

// AddToCart increments the (user, product) row in place, inserting it when
// absent. The increment is a single UPDATE so concurrent adds cannot lose
// each other's quantity; a lost insert race against the unique index is
// retried as an increment.
func (s *GormStorage) AddToCart(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if err := checkCartQuantity(quantity); err != nil {
		return nil, err
	}
	if err := s.requireActiveProduct(ctx, productID); err != nil {
		return nil, err
	}

	var item models.CartItem
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.CartItem{}).
				Where("user_id = ? AND product_id = ? AND quantity + ? <= ?", userID, productID, quantity, MaxCartQuantity).
				Updates(map[string]interface{}{
					"quantity":   gorm.Expr("quantity + ?", quantity),
					"updated_at": time.Now(),
				})
			if res.Error != nil {
				return fmt.Errorf("failed to increment cart item: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				var existing int64
				if err := tx.Model(&models.CartItem{}).
					Where("user_id = ? AND product_id = ?", userID, productID).
					Count(&existing).Error; err != nil {
					return fmt.Errorf("failed to check cart item: %w", err)
				}
				if existing > 0 {
					return apperr.Newf(apperr.Validation, "cart quantity cannot exceed %d", MaxCartQuantity)
				}
				item = models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
				if err := tx.Create(&item).Error; err != nil {
					return fmt.Errorf("%w: %v", errCartRowRace, err)
				}
				return nil
			}
			return first(tx, &item, "cart item", "user_id = ? AND product_id = ?", userID, productID)
		})
		if !errors.Is(err, errCartRowRace) {
			break
		}
		s.logger.Debug("Retrying cart add after insert race",
			zap.String("user_id", userID), zap.String("product_id", productID))
	}
	if err != nil {
		if errors.Is(err, errCartRowRace) {
			return nil, apperr.Wrap(apperr.Conflict, err, "cart item changed concurrently")
		}
		return nil, err
	}
	return &item, nil
}

func (s *GormStorage) requireActiveProduct(ctx context.Context, productID string) error {
	var product models.Product
	return first(s.db.WithContext(ctx), &product, "product", "id = ? AND is_active = ?", productID, true)
}

func (s *GormStorage) UpdateCartItem(ctx context.Context, userID, id string, quantity int) (*models.CartItem, error) {
	if err := checkCartQuantity(quantity); err != nil {
		return nil, err
	}
	var item models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(tx, &item, "cart item", "id = ? AND user_id = ?", id, userID); err != nil {
			return err
		}
		item.Quantity = quantity
		return tx.Model(&item).Update("quantity", quantity).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *GormStorage) RemoveFromCart(ctx context.Context, userID, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.CartItem{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to remove cart item: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStorage) ClearCart(ctx context.Context, userID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to clear cart: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ---------------------------------------------------------------------------
// Wishlist
// ---------------------------------------------------------------------------

func (s *GormStorage) GetWishlistItems(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	return items, nil
}

// AddToWishlist returns the existing row when the product is already saved.
func (s *GormStorage) AddToWishlist(ctx context.Context, userID, productID string) (*models.WishlistItem, error) {
	if err := s.requireActiveProduct(ctx, productID); err != nil {
		return nil, err
	}
	var item models.WishlistItem
	err := s.db.WithContext(ctx).
		Where(models.WishlistItem{UserID: userID, ProductID: productID}).
		FirstOrCreate(&item).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return &item, nil
}

func (s *GormStorage) RemoveFromWishlist(ctx context.Context, userID, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.WishlistItem{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to remove wishlist item: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

func (s *GormStorage) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *GormStorage) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrder loads the order with its items and their products, including
// products that have since been deactivated.
func (s *GormStorage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := first(s.db.WithContext(ctx).Preload("OrderItems.Product"), &order, "order", "id = ?", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder inserts the order and its items atomically.
func (s *GormStorage) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (*models.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createOrderTx(tx, order, items)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func createOrderTx(tx *gorm.DB, order *models.Order, items []models.OrderItem) error {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	order.OrderItems = nil
	if err := tx.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := tx.Create(&items).Error; err != nil {
		return fmt.Errorf("failed to create order items: %w", err)
	}
	order.OrderItems = items
	return nil
}

// PlaceOrder prices the lines from live products, checks the caller's totals,
// writes the order with its items and empties the cart, all in one transaction.
func (s *GormStorage) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines := in.Lines
		if len(lines) == 0 {
			var cart []models.CartItem
			if err := tx.Where("user_id = ?", in.UserID).Order("created_at").Find(&cart).Error; err != nil {
				return fmt.Errorf("failed to load cart: %w", err)
			}
			for _, c := range cart {
				lines = append(lines, OrderLine{ProductID: c.ProductID, Quantity: c.Quantity})
			}
		}
		if len(lines) == 0 {
			return apperr.New(apperr.Validation, "order has no items")
		}

		items := make([]models.OrderItem, 0, len(lines))
		priced := make([]pricing.Line, 0, len(lines))
		for _, l := range lines {
			if l.Quantity < 1 {
				return apperr.Newf(apperr.Validation, "quantity for product %s must be at least 1", l.ProductID)
			}
			var product models.Product
			if err := first(tx, &product, "product", "id = ? AND is_active = ?", l.ProductID, true); err != nil {
				return err
			}
			price := product.EffectivePrice()
			items = append(items, models.OrderItem{ProductID: product.ID, Quantity: l.Quantity, Price: price})
			priced = append(priced, pricing.Line{Price: price, Quantity: l.Quantity})
		}

		summary := pricing.Summarize(priced, s.taxRate)
		if exp := in.Expected; exp != nil {
			if !exp.Subtotal.Equal(summary.Subtotal) || !exp.Tax.Equal(summary.Tax) || !exp.Total.Equal(summary.Total) {
				return apperr.Newf(apperr.Validation,
					"order totals do not match current prices: expected subtotal %s, tax %s, total %s",
					summary.Subtotal, summary.Tax, summary.Total)
			}
		}

		order = models.Order{
			UserID:          in.UserID,
			Status:          models.OrderStatusPending,
			Subtotal:        summary.Subtotal,
			Tax:             summary.Tax,
			Total:           summary.Total,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
		}
		if err := createOrderTx(tx, &order, items); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", in.UserID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *GormStorage) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(tx, &order, "order", "id = ?", id); err != nil {
			return err
		}
		order.Status = status
		return tx.Model(&order).Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *GormStorage) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Product{}).Where("is_active = ?", true).Count(&st.Products).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	if err := db.Model(&models.Order{}).Count(&st.Orders).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	var revenue decimal.NullDecimal
	if err := db.Model(&models.Order{}).Select("SUM(total)").Row().Scan(&revenue); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	st.Revenue = models.NewMoney(revenue.Decimal)
	return &st, nil
}
