package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/safar/go-shop-api/internal/auth"
	"github.com/safar/go-shop-api/internal/config"
	"github.com/safar/go-shop-api/internal/models"
)

type contextKey string

const claimsKey contextKey = "claims"

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

// authMiddleware rejects requests without a valid Bearer token and puts the
// token's identity claims on the request context.
func authMiddleware(cfg *config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respondError(w, http.StatusUnauthorized, "authorization header required")
				return
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				respondError(w, http.StatusUnauthorized, "authorization header must be a Bearer token")
				return
			}

			claims, err := auth.ValidateAccessToken(tokenString, []byte(cfg.JWTSecret))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAdmin gates a handler on the admin role. It must run inside
// authMiddleware.
func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if claims == nil || claims.Role != models.RoleAdmin {
			respondError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	}
}
