package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/safar/go-shop-api/internal/config"
	"github.com/safar/go-shop-api/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(context.Background(), &cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	router := newRouter(db, &cfg.Auth)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func newRouter(db *sql.DB, authCfg *config.AuthConfig) *mux.Router {
	r := mux.NewRouter()

	// Public: registration, login, token lifecycle.
	r.HandleFunc("/auth/register", handleRegister(db, authCfg)).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", handleLogin(db, authCfg)).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", handleRefresh(db, authCfg)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", handleLogout(db)).Methods(http.MethodPost)

	// Public catalog reads.
	r.HandleFunc("/categories", handleGetRootCategories(db)).Methods(http.MethodGet)
	r.HandleFunc("/categories/{id:[0-9]+}", handleGetCategory(db)).Methods(http.MethodGet)
	r.HandleFunc("/categories/{id:[0-9]+}/children", handleGetCategoryChildren(db)).Methods(http.MethodGet)
	r.HandleFunc("/products", handleListProducts(db)).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}", handleGetProduct(db)).Methods(http.MethodGet)
	r.HandleFunc("/products/category/{id:[0-9]+}", handleListProductsByCategory(db)).Methods(http.MethodGet)

	// Authenticated routes.
	authed := r.NewRoute().Subrouter()
	authed.Use(authMiddleware(authCfg))

	// Catalog mutation is admin-only.
	authed.HandleFunc("/categories", requireAdmin(handleCreateCategory(db))).Methods(http.MethodPost)
	authed.HandleFunc("/categories/{id:[0-9]+}", requireAdmin(handleUpdateCategory(db))).Methods(http.MethodPut)
	authed.HandleFunc("/categories/{id:[0-9]+}", requireAdmin(handleDeleteCategory(db))).Methods(http.MethodDelete)
	authed.HandleFunc("/products", requireAdmin(handleCreateProduct(db))).Methods(http.MethodPost)
	authed.HandleFunc("/products/{id:[0-9]+}", requireAdmin(handleUpdateProduct(db))).Methods(http.MethodPut)
	authed.HandleFunc("/products/{id:[0-9]+}", requireAdmin(handleDeleteProduct(db))).Methods(http.MethodDelete)

	// Orders: placement and owner/admin reads.
	authed.HandleFunc("/orders", handleCreateOrder(db)).Methods(http.MethodPost)
	authed.HandleFunc("/orders", requireAdmin(handleGetAllOrders(db))).Methods(http.MethodGet)
	authed.HandleFunc("/orders/filter", handleFilterOrders(db)).Methods(http.MethodGet)
	authed.HandleFunc("/orders/{id:[0-9]+}", handleGetOrder(db)).Methods(http.MethodGet)
	authed.HandleFunc("/orders/user/{userID:[0-9]+}", handleGetOrdersByUser(db)).Methods(http.MethodGet)

	return r
}
