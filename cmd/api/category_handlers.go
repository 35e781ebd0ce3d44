package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/safar/go-shop-api/internal/store"
)

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil
}

func pathIDFromString(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func handleCreateCategory(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     string `json:"name"`
			ParentID *int64 `json:"parent_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		category, err := store.CreateCategory(r.Context(), db, req.Name, req.ParentID)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, category)
	}
}

func handleUpdateCategory(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid category ID")
			return
		}

		var req struct {
			Name         *string `json:"name"`
			ParentID     *int64  `json:"parent_id"`
			RemoveParent bool    `json:"remove_parent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		category, err := store.UpdateCategory(r.Context(), db, store.UpdateCategoryParams{
			ID:           id,
			Name:         req.Name,
			ParentID:     req.ParentID,
			RemoveParent: req.RemoveParent,
		})
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, category)
	}
}

func handleGetCategory(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid category ID")
			return
		}

		category, err := store.GetCategory(r.Context(), db, id)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, category)
	}
}

func handleGetCategoryChildren(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid category ID")
			return
		}

		children, err := store.GetChildren(r.Context(), db, id)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, children)
	}
}

func handleGetRootCategories(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roots, err := store.GetRootCategories(r.Context(), db)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, roots)
	}
}

func handleDeleteCategory(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid category ID")
			return
		}

		deleted, err := store.DeleteCategory(r.Context(), db, id)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
	}
}
