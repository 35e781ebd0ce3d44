package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-shop-api/internal/auth"
	"github.com/safar/go-shop-api/internal/config"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/safar/go-shop-api/internal/store"
)

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func issueTokens(r *http.Request, db *sql.DB, cfg *config.AuthConfig, user *models.User) (*authResponse, error) {
	accessToken, err := auth.GenerateAccessToken(user, []byte(cfg.JWTSecret), cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := store.CreateRefreshToken(r.Context(), db, user.ID,
		uuid.NewString(), time.Now().Add(cfg.RefreshTokenTTL))
	if err != nil {
		return nil, err
	}

	return &authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
	}, nil
}

func handleRegister(db *sql.DB, cfg *config.AuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Password == "" {
			respondError(w, http.StatusBadRequest, "password: password is required")
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		user, err := store.CreateUser(r.Context(), db, req.Username, req.Email, hash)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		tokens, err := issueTokens(r, db, cfg, user)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, tokens)
	}
}

func handleLogin(db *sql.DB, cfg *config.AuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		user, err := store.GetUserByEmail(r.Context(), db, req.Email)
		if err != nil {
			// Do not reveal whether the account exists.
			if errors.Is(err, database.ErrUserNotFound) {
				respondStoreError(w, database.ErrInvalidCredentials)
				return
			}
			respondStoreError(w, err)
			return
		}

		ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if !ok {
			respondStoreError(w, database.ErrInvalidCredentials)
			return
		}

		tokens, err := issueTokens(r, db, cfg, user)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, tokens)
	}
}

func handleRefresh(db *sql.DB, cfg *config.AuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.RefreshToken == "" {
			respondError(w, http.StatusBadRequest, "refresh_token: refresh token is required")
			return
		}

		newToken := uuid.NewString()
		user, err := store.RotateRefreshToken(r.Context(), db, req.RefreshToken,
			newToken, time.Now().Add(cfg.RefreshTokenTTL))
		if err != nil {
			respondStoreError(w, err)
			return
		}

		accessToken, err := auth.GenerateAccessToken(user, []byte(cfg.JWTSecret), cfg.AccessTokenTTL)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, &authResponse{
			AccessToken:  accessToken,
			RefreshToken: newToken,
		})
	}
}

func handleLogout(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.RefreshToken != "" {
			if err := store.DeleteRefreshToken(r.Context(), db, req.RefreshToken); err != nil {
				respondStoreError(w, err)
				return
			}
		}

		respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
