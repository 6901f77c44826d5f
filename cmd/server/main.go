package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/drillcoach/backend/internal/adaptive"
	"github.com/drillcoach/backend/internal/auth"
	"github.com/drillcoach/backend/internal/database"
	"github.com/drillcoach/backend/internal/drills"
	"github.com/drillcoach/backend/internal/middleware"
	"github.com/drillcoach/backend/internal/progression"
	"github.com/drillcoach/backend/internal/session"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Adaptive core
	cfg := adaptive.ConfigFromEnv()
	selector := adaptive.NewSelector(cfg, nil)
	ledger := progression.NewLedger(cfg)

	// Initialize handlers
	authHandler := auth.NewHandler(db)
	drillStore := drills.NewStore(db)
	drillHandler := drills.NewHandler(drillStore)
	sessionStore := session.NewStore(db)
	sessionService := session.NewService(sessionStore, selector, ledger, cfg)
	sessionHandler := session.NewHandler(sessionService)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")

	protected.HandleFunc("/drills", drillHandler.ListDrills).Methods("GET")
	protected.HandleFunc("/drills/categories", drillHandler.ListCategories).Methods("GET")
	protected.HandleFunc("/drills/{id}", drillHandler.GetDrill).Methods("GET")

	protected.HandleFunc("/sessions", sessionHandler.StartSession).Methods("POST")
	protected.HandleFunc("/sessions/{id}/complete", sessionHandler.CompleteSession).Methods("POST")

	protected.HandleFunc("/progression", sessionHandler.GetProgression).Methods("GET")
	protected.HandleFunc("/progression/history", sessionHandler.GetHistory).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
