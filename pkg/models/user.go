package models

import (
	"time"
)

// User ids are assigned by the identity provider.
type User struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email           string    `gorm:"type:varchar(255);index" json:"email"`
	FirstName       string    `gorm:"type:varchar(100)" json:"firstName"`
	LastName        string    `gorm:"type:varchar(100)" json:"lastName"`
	ProfileImageURL string    `gorm:"type:varchar(512)" json:"profileImageUrl"`
	IsAdmin         bool      `gorm:"not null;default:false" json:"isAdmin"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
