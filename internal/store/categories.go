package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx so tree traversal can run
// inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// maxTreeDepth bounds subtree resolution. The visited set already guarantees
// termination; the cap keeps a corrupted tree from producing absurd payloads.
const maxTreeDepth = 64

const categoryColumns = `id, name, parent_id, created_at, updated_at`

func scanCategory(row interface{ Scan(...interface{}) error }, c *models.Category) error {
	return row.Scan(&c.ID, &c.Name, &c.ParentID, &c.CreatedAt, &c.UpdatedAt)
}

func CreateCategory(ctx context.Context, db *sql.DB, name string, parentID *int64) (*models.Category, error) {
	if name == "" {
		return nil, database.Validation("name", "category name is required")
	}

	if parentID != nil {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, *parentID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check parent category: %w", err)
		}
		if !exists {
			return nil, database.ErrCategoryNotFound
		}
	}

	category := &models.Category{}
	query := `
		INSERT INTO categories (name, parent_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + categoryColumns

	if err := scanCategory(db.QueryRowContext(ctx, query, name, parentID), category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

type UpdateCategoryParams struct {
	ID   int64
	Name *string

	// RemoveParent promotes the category to a root and wins over a
	// ParentID supplied in the same request.
	RemoveParent bool
	ParentID     *int64
}

// UpdateCategory applies a partial update: nil fields leave the row
// unchanged. An explicitly supplied empty name is rejected rather than
// treated as absent. Reparenting onto the category itself or one of its
// descendants is rejected to keep the forest acyclic.
func UpdateCategory(ctx context.Context, db *sql.DB, params UpdateCategoryParams) (*models.Category, error) {
	existing := &models.Category{}
	err := scanCategory(db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, params.ID), existing)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	if params.Name != nil {
		if *params.Name == "" {
			return nil, database.Validation("name", "category name is required")
		}
		existing.Name = *params.Name
	}

	switch {
	case params.RemoveParent:
		existing.ParentID = nil
	case params.ParentID != nil:
		if *params.ParentID == params.ID {
			return nil, database.Validation("parent_id", "category cannot be its own parent")
		}

		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, *params.ParentID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check parent category: %w", err)
		}
		if !exists {
			return nil, database.ErrCategoryNotFound
		}

		descendants, err := CollectDescendantIDs(ctx, db, params.ID)
		if err != nil {
			return nil, err
		}
		if _, ok := descendants[*params.ParentID]; ok {
			return nil, database.Validation("parent_id", "category cannot be moved under its own descendant")
		}

		existing.ParentID = params.ParentID
	}

	updated := &models.Category{}
	query := `
		UPDATE categories
		SET name = $1, parent_id = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + categoryColumns

	if err := scanCategory(db.QueryRowContext(ctx, query, existing.Name, existing.ParentID, params.ID), updated); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	return updated, nil
}

// GetCategory returns the category with its full descendant tree resolved.
func GetCategory(ctx context.Context, db *sql.DB, id int64) (*models.Category, error) {
	category := &models.Category{}
	err := scanCategory(db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id), category)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	if err := attachSubtree(ctx, db, category); err != nil {
		return nil, err
	}

	return category, nil
}

// GetChildren returns the direct children of a category, each with its own
// subtree fully resolved.
func GetChildren(ctx context.Context, db *sql.DB, id int64) ([]models.Category, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check category: %w", err)
	}
	if !exists {
		return nil, database.ErrCategoryNotFound
	}

	children, err := childRows(ctx, db, id)
	if err != nil {
		return nil, err
	}

	for i := range children {
		if err := attachSubtree(ctx, db, &children[i]); err != nil {
			return nil, err
		}
	}

	return children, nil
}

// GetRootCategories returns every category without a parent, each with its
// subtree fully resolved.
func GetRootCategories(ctx context.Context, db *sql.DB) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE parent_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list root categories: %w", err)
	}
	defer rows.Close()

	var roots []models.Category
	for rows.Next() {
		var c models.Category
		if err := scanCategory(rows, &c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		roots = append(roots, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range roots {
		if err := attachSubtree(ctx, db, &roots[i]); err != nil {
			return nil, err
		}
	}

	return roots, nil
}

// DeleteCategory removes a category and its entire descendant subtree in one
// transaction. It returns false without error when the id is unknown. The
// delete is rejected while any product still references a category in the
// subtree: callers must move or delete those products first.
func DeleteCategory(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	found := false

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check category: %w", err)
		}
		if !exists {
			return nil
		}
		found = true

		descendants, err := CollectDescendantIDs(ctx, tx, id)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(descendants)+1)
		ids = append(ids, id)
		for descendantID := range descendants {
			ids = append(ids, descendantID)
		}

		var productCount int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM products WHERE category_id = ANY($1)`,
			pq.Array(ids)).Scan(&productCount)
		if err != nil {
			return fmt.Errorf("count products in subtree: %w", err)
		}
		if productCount > 0 {
			return database.Validation("id",
				"category subtree still has %d product(s)", productCount)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM categories WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
			return fmt.Errorf("delete category subtree: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return found, nil
}

// CollectDescendantIDs walks the tree iteratively and returns every
// transitive child of rootID. The root itself is not included. The visited
// set makes the walk terminate even if the parent links are corrupted into a
// cycle.
func CollectDescendantIDs(ctx context.Context, q querier, rootID int64) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	queue := []int64{rootID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		rows, err := q.QueryContext(ctx,
			`SELECT id FROM categories WHERE parent_id = $1`, current)
		if err != nil {
			return nil, fmt.Errorf("list subcategories: %w", err)
		}

		for rows.Next() {
			var childID int64
			if err := rows.Scan(&childID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan subcategory id: %w", err)
			}
			if childID == rootID {
				continue
			}
			if _, seen := ids[childID]; seen {
				continue
			}
			ids[childID] = struct{}{}
			queue = append(queue, childID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("rows error: %w", err)
		}
		rows.Close()
	}

	return ids, nil
}

func childRows(ctx context.Context, q querier, parentID int64) ([]models.Category, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE parent_id = $1 ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	defer rows.Close()

	var children []models.Category
	for rows.Next() {
		var c models.Category
		if err := scanCategory(rows, &c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return children, nil
}

// attachSubtree resolves the whole descendant tree under root with an
// iterative breadth-first walk instead of per-node recursion.
func attachSubtree(ctx context.Context, q querier, root *models.Category) error {
	visited := map[int64]struct{}{root.ID: {}}
	frontier := []*models.Category{root}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth > maxTreeDepth {
			return fmt.Errorf("category tree exceeds max depth %d at category %d", maxTreeDepth, root.ID)
		}

		var next []*models.Category
		for _, node := range frontier {
			children, err := childRows(ctx, q, node.ID)
			if err != nil {
				return err
			}

			for _, child := range children {
				if _, seen := visited[child.ID]; seen {
					continue
				}
				visited[child.ID] = struct{}{}
				node.Subcategories = append(node.Subcategories, child)
			}
			for i := range node.Subcategories {
				next = append(next, &node.Subcategories[i])
			}
		}
		frontier = next
	}

	return nil
}
