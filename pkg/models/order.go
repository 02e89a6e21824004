package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShippingAddress struct {
	FirstName string `json:"firstName" binding:"required" validate:"required"`
	LastName  string `json:"lastName" binding:"required" validate:"required"`
	Email     string `json:"email" binding:"required,email" validate:"required,email"`
	Phone     string `json:"phone"`
	Address   string `json:"address" binding:"required" validate:"required"`
	City      string `json:"city" binding:"required" validate:"required"`
	State     string `json:"state" binding:"required" validate:"required"`
	ZipCode   string `json:"zipCode" binding:"required" validate:"required"`
}

type Order struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID          string          `gorm:"type:varchar(64);not null;index" json:"userId"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Subtotal        Money           `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Tax             Money           `gorm:"type:decimal(10,2);not null" json:"tax"`
	Total           Money           `gorm:"type:decimal(10,2);not null" json:"total"`
	ShippingAddress ShippingAddress `gorm:"type:text;serializer:json" json:"shippingAddress"`
	PaymentMethod   string          `gorm:"type:varchar(50)" json:"paymentMethod"`
	OrderItems      []OrderItem     `gorm:"foreignKey:OrderID" json:"orderItems,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderItem.Price is captured at purchase time and never follows later
// product price changes.
type OrderItem struct {
	ID        string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID   string   `gorm:"type:varchar(36);not null;index" json:"orderId"`
	ProductID string   `gorm:"type:varchar(36);not null;index" json:"productId"`
	Quantity  int      `gorm:"not null" json:"quantity"`
	Price     Money    `gorm:"type:decimal(10,2);not null" json:"price"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// All lists every entity for AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Product{},
		&Review{},
		&CartItem{},
		&WishlistItem{},
		&Order{},
		&OrderItem{},
	}
}
