package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	ImageURL    string    `gorm:"type:varchar(512)" json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Category) TableName() string {
	return "categories"
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Product rows are never removed; IsActive=false hides them from listings
// while order history keeps pointing at them.
type Product struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       Money           `gorm:"type:decimal(10,2);not null" json:"price"`
	SalePrice   NullMoney       `gorm:"type:decimal(10,2)" json:"salePrice"`
	Brand       string          `gorm:"type:varchar(100)" json:"brand"`
	ImageURL    string          `gorm:"type:varchar(512)" json:"imageUrl"`
	Images      []string        `gorm:"type:text;serializer:json" json:"images"`
	Rating      decimal.Decimal `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`
	ReviewCount int             `gorm:"not null;default:0" json:"reviewCount"`
	InStock     int             `gorm:"not null;default:0" json:"inStock"`
	IsActive    bool            `gorm:"not null;default:true;index" json:"isActive"`
	CategoryID  *string         `gorm:"type:varchar(36);index" json:"categoryId"`
	Category    *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// EffectivePrice is what the customer pays: the sale price when set.
func (p *Product) EffectivePrice() Money {
	if sale, ok := p.SalePrice.Money(); ok {
		return sale
	}
	return p.Price
}

type Review struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProductID string    `gorm:"type:varchar(36);not null;index" json:"productId"`
	UserID    string    `gorm:"type:varchar(64);not null;index" json:"userId"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Review) TableName() string {
	return "reviews"
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
