package gateway

import (
	"net/http"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/events"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pricing"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
)

func (g *Gateway) listCategories(c *gin.Context) {
	categories, err := g.store.GetCategories(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

func (g *Gateway) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, badRequest(err))
		return
	}
	category, err := g.store.CreateCategory(c.Request.Context(), &models.Category{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	g.publish(c, events.CategoryCreated, category.ID, map[string]interface{}{"name": category.Name})
	c.JSON(http.StatusCreated, category)
}

func parsePrice(c *gin.Context, key string) (*decimal.Decimal, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, apperr.Newf(apperr.Validation, "%s must be a non-negative decimal", key)
	}
	return &d, nil
}

func productFilter(c *gin.Context) (repository.ProductFilter, error) {
	f := repository.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	var err error
	if f.MinPrice, err = parsePrice(c, "minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parsePrice(c, "maxPrice"); err != nil {
		return f, err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return f, apperr.New(apperr.Validation, "minPrice exceeds maxPrice")
	}
	f.Sort, err = repository.ParseProductSort(c.Query("sort"))
	return f, err
}

func (g *Gateway) listProducts(c *gin.Context) {
	filter, err := productFilter(c)
	if err != nil {
		g.fail(c, err)
		return
	}
	products, err := g.store.GetProducts(c.Request.Context(), filter)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (g *Gateway) featuredProducts(c *gin.Context) {
	products, err := g.store.GetFeaturedProducts(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (g *Gateway) getProduct(c *gin.Context) {
	product, err := g.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type productRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Price       models.Money     `json:"price"`
	SalePrice   models.NullMoney `json:"salePrice"`
	Brand       string           `json:"brand"`
	ImageURL    string           `json:"imageUrl"`
	Images      []string         `json:"images"`
	InStock     int              `json:"inStock" binding:"min=0"`
	CategoryID  *string          `json:"categoryId"`
}

func (g *Gateway) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, badRequest(err))
		return
	}
	if req.CategoryID != nil && *req.CategoryID == "" {
		req.CategoryID = nil
	}

	product, err := g.store.CreateProduct(c.Request.Context(), &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		SalePrice:   req.SalePrice,
		Brand:       req.Brand,
		ImageURL:    req.ImageURL,
		Images:      req.Images,
		InStock:     req.InStock,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	g.publish(c, events.ProductCreated, product.ID, map[string]interface{}{
		"name":  product.Name,
		"price": product.Price.String(),
	})
	c.JSON(http.StatusCreated, product)
}

// optionalSalePrice tells an explicit null (clear the sale) apart from an
// absent field (leave it alone).
type optionalSalePrice struct {
	set   bool
	value models.NullMoney
}

func (o *optionalSalePrice) UnmarshalJSON(b []byte) error {
	o.set = true
	return o.value.UnmarshalJSON(b)
}

type productPatch struct {
	Name        *string           `json:"name" binding:"omitempty,min=1"`
	Description *string           `json:"description"`
	Price       *models.Money     `json:"price"`
	SalePrice   optionalSalePrice `json:"salePrice"`
	Brand       *string           `json:"brand"`
	ImageURL    *string           `json:"imageUrl"`
	Images      []string          `json:"images"`
	InStock     *int              `json:"inStock" binding:"omitempty,min=0"`
	IsActive    *bool             `json:"isActive"`
	CategoryID  *string           `json:"categoryId"`
}

func (g *Gateway) updateProduct(c *gin.Context) {
	var req productPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, badRequest(err))
		return
	}
	update := repository.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Brand:       req.Brand,
		ImageURL:    req.ImageURL,
		Images:      req.Images,
		InStock:     req.InStock,
		IsActive:    req.IsActive,
		CategoryID:  req.CategoryID,
	}
	if req.SalePrice.set {
		update.SalePrice = &req.SalePrice.value
	}

	product, err := g.store.UpdateProduct(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.publish(c, events.ProductUpdated, product.ID, nil)
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	id := c.Param("id")
	ok, err := g.store.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		g.fail(c, err)
		return
	}
	if !ok {
		g.fail(c, apperr.New(apperr.NotFound, "product not found"))
		return
	}
	g.publish(c, events.ProductDeleted, id, nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) listReviews(c *gin.Context) {
	reviews, err := g.store.GetProductReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

func (g *Gateway) createReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, badRequest(err))
		return
	}
	user, _ := auth.CurrentUser(c)
	review, err := g.store.CreateReview(c.Request.Context(), &models.Review{
		ProductID: c.Param("id"),
		UserID:    user.ID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	g.publish(c, events.ReviewCreated, review.ProductID, map[string]interface{}{"rating": review.Rating})
	c.JSON(http.StatusCreated, review)
}

var exportHeaders = []string{
	"ID", "Name", "Brand", "Category", "Price", "Sale Price", "Discount",
	"In Stock", "Rating", "Reviews", "Created At",
}

func (g *Gateway) exportProducts(c *gin.Context) {
	products, err := g.store.GetProducts(c.Request.Context(), repository.ProductFilter{Sort: repository.SortNewest})
	if err != nil {
		g.fail(c, err)
		return
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		g.fail(c, err)
		return
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}
	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetString(p.ID)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.Brand)
		category := ""
		if p.CategoryID != nil {
			category = *p.CategoryID
		}
		row.AddCell().SetString(category)
		row.AddCell().SetString(p.Price.String())
		sale := ""
		if s, ok := p.SalePrice.Money(); ok {
			sale = s.String()
		}
		row.AddCell().SetString(sale)
		row.AddCell().SetString(pricing.DiscountBadge(&p))
		row.AddCell().SetInt(p.InStock)
		row.AddCell().SetString(p.Rating.StringFixed(2))
		row.AddCell().SetInt(p.ReviewCount)
		row.AddCell().SetString(p.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	c.Header("Content-Disposition", "attachment; filename=products.xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := file.Write(c.Writer); err != nil {
		g.logger.Error("Failed to write export", zap.Error(err))
	}
}
