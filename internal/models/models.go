package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type RefreshToken struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Populated by the tree resolver, not by row scans.
	Subcategories []Category `json:"subcategories,omitempty"`
}

// Product carries the raw discount columns; the effective price is never
// stored and is computed by the pricing package at response time.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url,omitempty"`
	CategoryID  int64           `json:"category_id"`

	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	DiscountStart      *time.Time       `json:"discount_start,omitempty"`
	DiscountEnd        *time.Time       `json:"discount_end,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	OrderDate   time.Time       `json:"order_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items,omitempty"`
}

// OrderItem freezes the monetary state of a line at placement time.
// UnitPrice, DiscountedPrice and DiscountPercentage are authoritative
// snapshots; the Product* display fields may be refreshed from the live
// catalog when the referenced product still exists.
type OrderItem struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"order_id"`
	ProductID *int64 `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`

	UnitPrice          decimal.Decimal  `json:"unit_price"`
	DiscountedPrice    decimal.Decimal  `json:"discounted_price"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`

	ProductName        string `json:"product_name"`
	ProductImage       string `json:"product_image,omitempty"`
	ProductDescription string `json:"product_description,omitempty"`
	CategoryID         int64  `json:"category_id"`
	CategoryName       string `json:"category_name"`
}
