package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/go-shop-api/internal/auth"
	"github.com/safar/go-shop-api/internal/config"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/safar/go-shop-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testAuthConfig = config.AuthConfig{
	JWTSecret:       "router-test-secret",
	AccessTokenTTL:  time.Hour,
	RefreshTokenTTL: 7 * 24 * time.Hour,
}

func setupRouter(t *testing.T) (*sql.DB, http.Handler, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := applyMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, newRouter(db, &testAuthConfig), cleanup
}

func applyMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	entries, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(migrationDir, name))
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
	}

	return nil
}

func createAPIUser(t *testing.T, db *sql.DB, email, role string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("s3cret-password")
	if err != nil {
		t.Fatalf("Hash password: %v", err)
	}

	user, err := store.CreateUser(context.Background(), db, "apiuser", email, hash)
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	if role != models.RoleUser {
		if _, err := db.Exec(`UPDATE users SET role = $1 WHERE id = $2`, role, user.ID); err != nil {
			t.Fatalf("Set user role: %v", err)
		}
		user.Role = role
	}

	return user
}

func bearerToken(t *testing.T, user *models.User) string {
	t.Helper()

	token, err := auth.GenerateAccessToken(user, []byte(testAuthConfig.JWTSecret), testAuthConfig.AccessTokenTTL)
	if err != nil {
		t.Fatalf("Generate access token: %v", err)
	}
	return "Bearer " + token
}

func doRequest(t *testing.T, handler http.Handler, method, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestOrderReadAccessControl(t *testing.T) {
	db, handler, cleanup := setupRouter(t)
	defer cleanup()

	ctx := context.Background()

	owner := createAPIUser(t, db, "owner@example.com", models.RoleUser)
	other := createAPIUser(t, db, "other@example.com", models.RoleUser)
	admin := createAPIUser(t, db, "admin@example.com", models.RoleAdmin)

	category, err := store.CreateCategory(ctx, db, "Electronics", nil)
	if err != nil {
		t.Fatalf("Create category: %v", err)
	}
	product, err := store.CreateProduct(ctx, db, store.CreateProductParams{
		Name:       "Widget",
		Price:      decimal.NewFromInt(10),
		Stock:      100,
		CategoryID: category.ID,
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: owner.ID,
		Items:  []store.OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	orderPath := fmt.Sprintf("/orders/%d", order.ID)

	cases := []struct {
		name          string
		path          string
		authorization string
		wantStatus    int
	}{
		{"no token", orderPath, "", http.StatusUnauthorized},
		{"garbage token", orderPath, "Bearer not-a-token", http.StatusUnauthorized},
		{"non-owner forbidden", orderPath, bearerToken(t, other), http.StatusForbidden},
		{"owner allowed", orderPath, bearerToken(t, owner), http.StatusOK},
		{"admin allowed", orderPath, bearerToken(t, admin), http.StatusOK},
		{"order list is admin-only", "/orders", bearerToken(t, owner), http.StatusForbidden},
		{"admin lists all orders", "/orders", bearerToken(t, admin), http.StatusOK},
		{"cross-user history forbidden", fmt.Sprintf("/orders/user/%d", owner.ID), bearerToken(t, other), http.StatusForbidden},
		{"own history allowed", fmt.Sprintf("/orders/user/%d", owner.ID), bearerToken(t, owner), http.StatusOK},
		{"admin reads any history", fmt.Sprintf("/orders/user/%d", owner.ID), bearerToken(t, admin), http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, handler, http.MethodGet, tc.path, tc.authorization)
			if rec.Code != tc.wantStatus {
				t.Errorf("GET %s: expected status %d, got %d (body %s)",
					tc.path, tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestFilterOrdersAccessControl(t *testing.T) {
	db, handler, cleanup := setupRouter(t)
	defer cleanup()

	ctx := context.Background()

	owner := createAPIUser(t, db, "owner@example.com", models.RoleUser)
	other := createAPIUser(t, db, "other@example.com", models.RoleUser)
	admin := createAPIUser(t, db, "admin@example.com", models.RoleAdmin)

	category, err := store.CreateCategory(ctx, db, "Electronics", nil)
	if err != nil {
		t.Fatalf("Create category: %v", err)
	}
	product, err := store.CreateProduct(ctx, db, store.CreateProductParams{
		Name:       "Widget",
		Price:      decimal.NewFromInt(10),
		Stock:      100,
		CategoryID: category.ID,
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	if _, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: owner.ID,
		Items:  []store.OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("Create order: %v", err)
	}

	window := fmt.Sprintf("start=%s&end=%s",
		time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		time.Now().Add(time.Hour).UTC().Format(time.RFC3339))

	// A plain user filtering another user's orders is rejected; the same
	// query under an admin token succeeds.
	crossUser := fmt.Sprintf("/orders/filter?%s&user_id=%d", window, owner.ID)

	rec := doRequest(t, handler, http.MethodGet, crossUser, bearerToken(t, other))
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d (body %s)", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, crossUser, bearerToken(t, admin))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d (body %s)", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/orders/filter?"+window, bearerToken(t, owner))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
}

func TestCatalogMutationRequiresAdmin(t *testing.T) {
	db, handler, cleanup := setupRouter(t)
	defer cleanup()

	user := createAPIUser(t, db, "user@example.com", models.RoleUser)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/categories"},
		{http.MethodPost, "/products"},
		{http.MethodDelete, "/products/1"},
	} {
		rec := doRequest(t, handler, tc.method, tc.path, bearerToken(t, user))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected status 403, got %d", tc.method, tc.path, rec.Code)
		}
	}

	// Catalog reads stay public.
	rec := doRequest(t, handler, http.MethodGet, "/products", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /products: expected status 200, got %d", rec.Code)
	}
}
