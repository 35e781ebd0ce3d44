package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/safar/go-shop-api/internal/models"
	"github.com/safar/go-shop-api/internal/pricing"
	"github.com/safar/go-shop-api/internal/store"
	"github.com/shopspring/decimal"
)

// productResponse enriches a product row with the pricing engine's output at
// response time. The final price is never stored.
type productResponse struct {
	models.Product
	FinalPrice     decimal.Decimal `json:"final_price"`
	DiscountActive bool            `json:"discount_active"`
}

func toProductResponse(p models.Product, now time.Time) productResponse {
	return productResponse{
		Product:        p,
		FinalPrice:     pricing.EffectivePrice(&p, now),
		DiscountActive: pricing.Active(&p, now),
	}
}

func toProductResponses(products []models.Product, now time.Time) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p, now))
	}
	return out
}

type productPayload struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	ImageURL    *string          `json:"image_url"`
	CategoryID  *int64           `json:"category_id"`

	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	DiscountStart      *time.Time       `json:"discount_start"`
	DiscountEnd        *time.Time       `json:"discount_end"`
	RemoveDiscount     bool             `json:"remove_discount"`
}

func handleCreateProduct(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req productPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		params := store.CreateProductParams{
			DiscountPercentage: req.DiscountPercentage,
			DiscountStart:      req.DiscountStart,
			DiscountEnd:        req.DiscountEnd,
		}
		if req.Name != nil {
			params.Name = *req.Name
		}
		if req.Description != nil {
			params.Description = *req.Description
		}
		if req.Price != nil {
			params.Price = *req.Price
		}
		if req.Stock != nil {
			params.Stock = *req.Stock
		}
		if req.ImageURL != nil {
			params.ImageURL = *req.ImageURL
		}
		if req.CategoryID != nil {
			params.CategoryID = *req.CategoryID
		}

		product, err := store.CreateProduct(r.Context(), db, params)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, toProductResponse(*product, time.Now()))
	}
}

func handleGetProduct(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}

		product, err := store.GetProduct(r.Context(), db, id)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, toProductResponse(*product, time.Now()))
	}
}

func handleListProducts(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		if pageSize < 1 || pageSize > 100 {
			pageSize = 20
		}

		result, err := store.ListProducts(r.Context(), db, page, pageSize)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		if products, ok := result.Items.([]models.Product); ok {
			result.Items = toProductResponses(products, time.Now())
		}

		respondJSON(w, http.StatusOK, result)
	}
}

func handleListProductsByCategory(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid category ID")
			return
		}

		includeSubcategories, _ := strconv.ParseBool(r.URL.Query().Get("include_subcategories"))

		products, err := store.ListProductsByCategory(r.Context(), db, id, includeSubcategories)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, toProductResponses(products, time.Now()))
	}
}

func handleUpdateProduct(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}

		var req productPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		product, err := store.UpdateProduct(r.Context(), db, store.UpdateProductParams{
			ID:                 id,
			Name:               req.Name,
			Description:        req.Description,
			Price:              req.Price,
			Stock:              req.Stock,
			ImageURL:           req.ImageURL,
			CategoryID:         req.CategoryID,
			RemoveDiscount:     req.RemoveDiscount,
			DiscountPercentage: req.DiscountPercentage,
			DiscountStart:      req.DiscountStart,
			DiscountEnd:        req.DiscountEnd,
		})
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, toProductResponse(*product, time.Now()))
	}
}

func handleDeleteProduct(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}

		deleted, err := store.DeleteProduct(r.Context(), db, id)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
	}
}
