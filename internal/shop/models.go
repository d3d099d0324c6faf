package shop

import (
	"github.com/kbukum/shopstream/database"
)

// UserProfile is a registered shopper.
type UserProfile struct {
	database.BaseModel
	Name string `gorm:"uniqueIndex;size:64;not null" json:"name" validate:"required,max=64,username"`
}

// Product is a catalog entry.
type Product struct {
	database.BaseModel
	Name string `gorm:"uniqueIndex;size:128;not null" json:"name" validate:"required,max=128"`
}

// Order groups products bought by one user.
type Order struct {
	database.BaseModel
	UserID   uint      `gorm:"index;not null" json:"user_id"`
	Products []Product `gorm:"many2many:order_products" json:"products"`
}

// ProductModel is the public view of a product in listings.
type ProductModel struct {
	Name string `json:"name"`
}

// Models lists the tables to auto-migrate.
func Models() []any {
	return []any{&UserProfile{}, &Product{}, &Order{}}
}
