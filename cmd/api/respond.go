package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/safar/go-shop-api/internal/database"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps the store error taxonomy onto HTTP statuses:
// not-found 404, validation 400, insufficient stock 409, forbidden 403,
// credential failures 401, everything else a generic 500.
func respondStoreError(w http.ResponseWriter, err error) {
	var validationErr *database.ValidationError
	var stockErr *database.StockError

	switch {
	case database.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &stockErr):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrInvalidCredentials),
		errors.Is(err, database.ErrTokenExpired),
		errors.Is(err, database.ErrUserInactive):
		respondError(w, http.StatusUnauthorized, err.Error())
	default:
		log.Printf("Internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
