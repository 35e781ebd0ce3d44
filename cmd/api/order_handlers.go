package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/safar/go-shop-api/internal/store"
)

func handleCreateOrder(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if claims == nil {
			respondError(w, http.StatusBadRequest, "user not identified")
			return
		}

		var req struct {
			Items []struct {
				ProductID int64 `json:"product_id"`
				Quantity  int   `json:"quantity"`
			} `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var items []store.OrderItemRequest
		for _, item := range req.Items {
			items = append(items, store.OrderItemRequest{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		// The order is always placed for the authenticated user; a caller
		// cannot place orders on someone else's behalf.
		order, err := store.CreateOrder(r.Context(), db, store.CreateOrderRequest{
			UserID: claims.UserID,
			Items:  items,
		})
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, order)
	}
}

func handleGetOrder(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}

		order, err := store.GetOrder(r.Context(), db, id)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		claims := claimsFrom(r)
		if claims == nil || (order.UserID != claims.UserID && claims.Role != models.RoleAdmin) {
			respondStoreError(w, database.ErrForbidden)
			return
		}

		respondJSON(w, http.StatusOK, order)
	}
}

func handleGetAllOrders(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := store.GetAllOrders(r.Context(), db)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, orders)
	}
}

func handleGetOrdersByUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(r, "userID")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid user ID")
			return
		}

		claims := claimsFrom(r)
		if claims == nil || (userID != claims.UserID && claims.Role != models.RoleAdmin) {
			respondStoreError(w, database.ErrForbidden)
			return
		}

		orders, err := store.GetOrdersByUser(r.Context(), db, userID)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, orders)
	}
}

// handleFilterOrders serves /orders/filter?start=&end=[&user_id=]. Admins may
// filter any user's orders or all orders; everyone else only their own.
func handleFilterOrders(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid start date, want RFC 3339")
			return
		}
		end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid end date, want RFC 3339")
			return
		}

		claims := claimsFrom(r)
		if claims == nil {
			respondError(w, http.StatusBadRequest, "user not identified")
			return
		}

		var orders []models.Order
		if userParam := r.URL.Query().Get("user_id"); userParam != "" || claims.Role != models.RoleAdmin {
			userID := claims.UserID
			if userParam != "" {
				parsed, parseErr := pathIDFromString(userParam)
				if parseErr != nil {
					respondError(w, http.StatusBadRequest, "Invalid user ID")
					return
				}
				userID = parsed
			}

			if userID != claims.UserID && claims.Role != models.RoleAdmin {
				respondStoreError(w, database.ErrForbidden)
				return
			}

			orders, err = store.GetOrdersByUserAndDateRange(r.Context(), db, userID, start, end)
		} else {
			orders, err = store.GetOrdersByDateRange(r.Context(), db, start, end)
		}
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, orders)
	}
}
