package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/safar/go-shop-api/internal/pricing"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	UserID int64
	Items  []OrderItemRequest
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

// lockedProduct is a product row locked FOR UPDATE plus its category name,
// captured once per distinct product so every line of the order snapshots the
// same state.
type lockedProduct struct {
	product      models.Product
	categoryName string
}

// CreateOrder places an order as one atomic unit: every referenced product is
// locked and re-read inside the transaction, stock is checked and then
// decremented conditionally, and the order with its item snapshots is
// persisted. Any failure rolls the whole placement back.
//
// The total always sums the discounted (effective) line prices, matching the
// per-line snapshots.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	if req.UserID <= 0 {
		return nil, database.Validation("user_id", "user not identified")
	}
	if len(req.Items) == 0 {
		return nil, database.Validation("items", "order items are required")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, database.Validation("quantity",
				"must be greater than zero for product %d", item.ProductID)
		}
	}

	// Total quantity per distinct product: the stock check and decrement
	// operate on the aggregate even when a product appears on several lines.
	needed := make(map[int64]int)
	var distinct []int64
	for _, item := range req.Items {
		if _, ok := needed[item.ProductID]; !ok {
			distinct = append(distinct, item.ProductID)
		}
		needed[item.ProductID] += item.Quantity
	}
	// Lock rows in ascending id order so concurrent placements cannot
	// deadlock on each other.
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })

	var order *models.Order

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, req.UserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		now := time.Now().UTC()

		locked := make(map[int64]lockedProduct, len(distinct))
		for _, productID := range distinct {
			lp := lockedProduct{}
			err := tx.QueryRowContext(ctx,
				`SELECT p.id, p.name, p.description, p.price, p.stock, p.image_url, p.category_id,
					p.discount_percentage, p.discount_start, p.discount_end, p.created_at, p.updated_at,
					c.name
				 FROM products p
				 JOIN categories c ON c.id = p.category_id
				 WHERE p.id = $1
				 FOR UPDATE OF p`,
				productID).Scan(
				&lp.product.ID,
				&lp.product.Name,
				&lp.product.Description,
				&lp.product.Price,
				&lp.product.Stock,
				&lp.product.ImageURL,
				&lp.product.CategoryID,
				&lp.product.DiscountPercentage,
				&lp.product.DiscountStart,
				&lp.product.DiscountEnd,
				&lp.product.CreatedAt,
				&lp.product.UpdatedAt,
				&lp.categoryName,
			)
			if err != nil {
				if err == sql.ErrNoRows {
					return database.ErrProductNotFound
				}
				return fmt.Errorf("lock product %d: %w", productID, err)
			}

			if lp.product.Stock < needed[productID] {
				return &database.StockError{
					ProductID: productID,
					Requested: needed[productID],
					Available: lp.product.Stock,
				}
			}

			locked[productID] = lp
		}

		// Per-line snapshots and the order total, from the same locked state
		// and the same instant.
		items := make([]models.OrderItem, 0, len(req.Items))
		total := decimal.Zero
		for _, reqItem := range req.Items {
			lp := locked[reqItem.ProductID]
			p := lp.product

			item := models.OrderItem{
				ProductID:          &p.ID,
				Quantity:           reqItem.Quantity,
				UnitPrice:          p.Price,
				DiscountedPrice:    p.Price,
				ProductName:        p.Name,
				ProductImage:       p.ImageURL,
				ProductDescription: p.Description,
				CategoryID:         p.CategoryID,
				CategoryName:       lp.categoryName,
			}
			if pricing.Active(&p, now) {
				item.DiscountedPrice = pricing.EffectivePrice(&p, now)
				item.DiscountPercentage = p.DiscountPercentage
			}

			total = total.Add(item.DiscountedPrice.Mul(decimal.NewFromInt(int64(reqItem.Quantity))))
			items = append(items, item)
		}

		var orderID int64
		var orderDate time.Time
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_date, total_amount)
			 VALUES ($1, $2, $3)
			 RETURNING id, order_date`,
			req.UserID, now, total).Scan(&orderID, &orderDate)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for i := range items {
			item := &items[i]
			err = tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price,
					discounted_price, discount_percentage, product_name, product_image,
					product_description, category_id, category_name)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				 RETURNING id`,
				orderID,
				item.ProductID,
				item.Quantity,
				item.UnitPrice,
				item.DiscountedPrice,
				item.DiscountPercentage,
				item.ProductName,
				item.ProductImage,
				item.ProductDescription,
				item.CategoryID,
				item.CategoryName,
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			item.OrderID = orderID
		}

		for _, productID := range distinct {
			result, err := tx.ExecContext(ctx,
				`UPDATE products
				 SET stock = stock - $1,
				     updated_at = NOW()
				 WHERE id = $2
				   AND stock >= $1`,
				needed[productID], productID)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("get rows affected: %w", err)
			}
			if rowsAffected == 0 {
				return &database.StockError{
					ProductID: productID,
					Requested: needed[productID],
					Available: locked[productID].product.Stock,
				}
			}
		}

		order = &models.Order{
			ID:          orderID,
			UserID:      req.UserID,
			OrderDate:   orderDate,
			TotalAmount: total,
			Items:       items,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

const orderColumns = `id, user_id, order_date, total_amount`

func scanOrder(row interface{ Scan(...interface{}) error }, o *models.Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.OrderDate, &o.TotalAmount)
}

// Order item reads re-join the live catalog for display fields and fall back
// to the placement-time snapshot when the product or category is gone. The
// monetary columns always come from the snapshot, never the live product.
const orderItemSelect = `
	SELECT oi.id, oi.order_id, oi.product_id, oi.quantity,
	       oi.unit_price, oi.discounted_price, oi.discount_percentage,
	       COALESCE(p.name, oi.product_name),
	       COALESCE(p.image_url, oi.product_image),
	       COALESCE(p.description, oi.product_description),
	       COALESCE(p.category_id, oi.category_id),
	       COALESCE(c.name, oi.category_name)
	FROM order_items oi
	LEFT JOIN products p ON p.id = oi.product_id
	LEFT JOIN categories c ON c.id = p.category_id`

func scanOrderItem(row interface{ Scan(...interface{}) error }, item *models.OrderItem) error {
	return row.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.Quantity,
		&item.UnitPrice,
		&item.DiscountedPrice,
		&item.DiscountPercentage,
		&item.ProductName,
		&item.ProductImage,
		&item.ProductDescription,
		&item.CategoryID,
		&item.CategoryName,
	)
}

func loadOrderItems(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderItem, error) {
	rows, err := db.QueryContext(ctx, orderItemSelect+` WHERE oi.order_id = $1 ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := scanOrderItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := loadOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func listOrders(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		items, err := loadOrderItems(ctx, db, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func GetAllOrders(ctx context.Context, db *sql.DB) ([]models.Order, error) {
	return listOrders(ctx, db,
		`SELECT `+orderColumns+` FROM orders ORDER BY id`)
}

func GetOrdersByUser(ctx context.Context, db *sql.DB, userID int64) ([]models.Order, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		return nil, database.ErrUserNotFound
	}

	return listOrders(ctx, db,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY id`, userID)
}

func GetOrdersByDateRange(ctx context.Context, db *sql.DB, start, end time.Time) ([]models.Order, error) {
	if end.Before(start) {
		return nil, database.Validation("end_date", "cannot be earlier than start date")
	}

	return listOrders(ctx, db,
		`SELECT `+orderColumns+` FROM orders WHERE order_date BETWEEN $1 AND $2 ORDER BY id`,
		start, end)
}

func GetOrdersByUserAndDateRange(ctx context.Context, db *sql.DB, userID int64, start, end time.Time) ([]models.Order, error) {
	if end.Before(start) {
		return nil, database.Validation("end_date", "cannot be earlier than start date")
	}

	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		return nil, database.ErrUserNotFound
	}

	return listOrders(ctx, db,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 AND order_date BETWEEN $2 AND $3
		 ORDER BY id`,
		userID, start, end)
}
