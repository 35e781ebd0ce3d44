package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, price, stock, image_url, category_id,
	discount_percentage, discount_start, discount_end, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }, p *models.Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.ImageURL,
		&p.CategoryID,
		&p.DiscountPercentage,
		&p.DiscountStart,
		&p.DiscountEnd,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

type CreateProductParams struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	CategoryID  int64

	DiscountPercentage *decimal.Decimal
	DiscountStart      *time.Time
	DiscountEnd        *time.Time
}

// validateDiscount enforces the discount invariant: if any discount field is
// present, all three must be, the percentage must lie in [0,100], and the
// window must not end before it starts.
func validateDiscount(pct *decimal.Decimal, start, end *time.Time) error {
	if pct == nil && start == nil && end == nil {
		return nil
	}
	if pct == nil {
		return database.Validation("discount_percentage", "required when discount dates are set")
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return database.Validation("discount_percentage", "must be between 0 and 100")
	}
	if start == nil {
		return database.Validation("discount_start", "required when discount is applied")
	}
	if end == nil {
		return database.Validation("discount_end", "required when discount is applied")
	}
	if end.Before(*start) {
		return database.Validation("discount_end", "cannot be earlier than discount start")
	}
	return nil
}

func CreateProduct(ctx context.Context, db *sql.DB, params CreateProductParams) (*models.Product, error) {
	if params.Name == "" {
		return nil, database.Validation("name", "product name is required")
	}
	if !params.Price.IsPositive() {
		return nil, database.Validation("price", "must be greater than zero")
	}
	if params.Stock < 0 {
		return nil, database.Validation("stock", "cannot be negative")
	}
	if err := validateDiscount(params.DiscountPercentage, params.DiscountStart, params.DiscountEnd); err != nil {
		return nil, err
	}

	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, params.CategoryID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check category: %w", err)
	}
	if !exists {
		return nil, database.ErrCategoryNotFound
	}

	product := &models.Product{}
	query := `
		INSERT INTO products (name, description, price, stock, image_url, category_id,
			discount_percentage, discount_start, discount_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING ` + productColumns

	err = scanProduct(db.QueryRowContext(ctx, query,
		params.Name,
		params.Description,
		params.Price,
		params.Stock,
		params.ImageURL,
		params.CategoryID,
		params.DiscountPercentage,
		params.DiscountStart,
		params.DiscountEnd,
	), product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	err := scanProduct(db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY id
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}

type UpdateProductParams struct {
	ID          int64
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
	CategoryID  *int64

	// RemoveDiscount clears all three discount fields and wins over any
	// discount fields supplied in the same request.
	RemoveDiscount     bool
	DiscountPercentage *decimal.Decimal
	DiscountStart      *time.Time
	DiscountEnd        *time.Time
}

// UpdateProduct applies a partial update: nil fields leave the row unchanged.
// When a new discount percentage is supplied, the window bounds are taken
// from the request or, failing that, from the existing row; the update is
// rejected if either bound is still missing or the window is inverted.
func UpdateProduct(ctx context.Context, db *sql.DB, params UpdateProductParams) (*models.Product, error) {
	existing, err := GetProduct(ctx, db, params.ID)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		if *params.Name == "" {
			return nil, database.Validation("name", "product name is required")
		}
		existing.Name = *params.Name
	}
	if params.Description != nil {
		existing.Description = *params.Description
	}
	if params.Price != nil {
		if !params.Price.IsPositive() {
			return nil, database.Validation("price", "must be greater than zero")
		}
		existing.Price = *params.Price
	}
	if params.Stock != nil {
		if *params.Stock < 0 {
			return nil, database.Validation("stock", "cannot be negative")
		}
		existing.Stock = *params.Stock
	}
	if params.ImageURL != nil {
		existing.ImageURL = *params.ImageURL
	}
	if params.CategoryID != nil {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, *params.CategoryID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check category: %w", err)
		}
		if !exists {
			return nil, database.ErrCategoryNotFound
		}
		existing.CategoryID = *params.CategoryID
	}

	switch {
	case params.RemoveDiscount:
		existing.DiscountPercentage = nil
		existing.DiscountStart = nil
		existing.DiscountEnd = nil
	case params.DiscountPercentage != nil:
		start := existing.DiscountStart
		if params.DiscountStart != nil {
			start = params.DiscountStart
		}
		end := existing.DiscountEnd
		if params.DiscountEnd != nil {
			end = params.DiscountEnd
		}
		if err := validateDiscount(params.DiscountPercentage, start, end); err != nil {
			return nil, err
		}
		existing.DiscountPercentage = params.DiscountPercentage
		existing.DiscountStart = start
		existing.DiscountEnd = end
	}

	updated := &models.Product{}
	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock = $4, image_url = $5,
			category_id = $6, discount_percentage = $7, discount_start = $8,
			discount_end = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING ` + productColumns

	err = scanProduct(db.QueryRowContext(ctx, query,
		existing.Name,
		existing.Description,
		existing.Price,
		existing.Stock,
		existing.ImageURL,
		existing.CategoryID,
		existing.DiscountPercentage,
		existing.DiscountStart,
		existing.DiscountEnd,
		params.ID,
	), updated)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	return updated, nil
}

// DeleteProduct returns false without error when the id is unknown. Existing
// order items keep their snapshots, so order history survives the delete.
func DeleteProduct(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListProductsByCategory returns the products in a category. With
// includeSubcategories the match widens to the whole subtree rooted at
// categoryID, inclusive.
func ListProductsByCategory(ctx context.Context, db *sql.DB, categoryID int64, includeSubcategories bool) ([]models.Product, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, categoryID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check category: %w", err)
	}
	if !exists {
		return nil, database.ErrCategoryNotFound
	}

	var rows *sql.Rows
	if includeSubcategories {
		descendants, err := CollectDescendantIDs(ctx, db, categoryID)
		if err != nil {
			return nil, err
		}

		ids := make([]int64, 0, len(descendants)+1)
		ids = append(ids, categoryID)
		for id := range descendants {
			ids = append(ids, id)
		}

		rows, err = db.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE category_id = ANY($1) ORDER BY id`,
			pq.Array(ids))
		if err != nil {
			return nil, fmt.Errorf("list products by subtree: %w", err)
		}
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE category_id = $1 ORDER BY id`,
			categoryID)
		if err != nil {
			return nil, fmt.Errorf("list products by category: %w", err)
		}
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}
