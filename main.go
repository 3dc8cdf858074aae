package main

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ps2841/horpak-billing/config"
	"github.com/ps2841/horpak-billing/database"
	"github.com/ps2841/horpak-billing/handlers"
	"github.com/ps2841/horpak-billing/middleware"
	"github.com/ps2841/horpak-billing/services"
)

var collectorManager *services.CollectorManager

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOVERED: %v", err)
				log.Printf("Stack trace: %s", debug.Stack())

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s - completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func main() {
	log.Println("Starting Horpak Billing System...")
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()

	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	liveFeed := services.NewLiveFeed()
	collectorManager = services.NewCollectorManager(db, liveFeed)
	meterService := services.NewMeterService(db)
	billingService := services.NewBillingService(db)
	pdfGenerator := services.NewPDFGenerator(cfg.InvoiceDir, cfg.PromptPayID, cfg.InvoiceFont)

	go collectorManager.Start()

	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	floorHandler := handlers.NewFloorHandler(db)
	roomHandler := handlers.NewRoomHandler(db)
	tenantHandler := handlers.NewTenantHandler(db)
	meterHandler := handlers.NewMeterHandler(db, meterService, collectorManager, liveFeed)
	billHandler := handlers.NewBillHandler(db, billingService, pdfGenerator)
	settingsHandler := handlers.NewSettingsHandler(db)
	dashboardHandler := handlers.NewDashboardHandler(db)

	r := mux.NewRouter()

	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/health", healthCheck).Methods("GET")

	// Browsers cannot set an Authorization header on a websocket upgrade,
	// so the live feed stays outside the auth subrouter.
	r.HandleFunc("/api/meters/live", meterHandler.LiveFeed)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	api.HandleFunc("/auth/change-password", authHandler.ChangePassword).Methods("POST")
	api.HandleFunc("/debug/status", debugStatusHandler).Methods("GET")

	api.HandleFunc("/floors", floorHandler.List).Methods("GET")
	api.HandleFunc("/floors", floorHandler.Create).Methods("POST")
	api.HandleFunc("/floors/{id}", floorHandler.GetWithRooms).Methods("GET")
	api.HandleFunc("/floors/{id}", floorHandler.Update).Methods("PUT")
	api.HandleFunc("/floors/{id}", floorHandler.Delete).Methods("DELETE")

	api.HandleFunc("/rooms", roomHandler.List).Methods("GET")
	api.HandleFunc("/rooms", roomHandler.Create).Methods("POST")
	api.HandleFunc("/rooms/{id}", roomHandler.Get).Methods("GET")
	api.HandleFunc("/rooms/{id}", roomHandler.Update).Methods("PUT")
	api.HandleFunc("/rooms/{id}", roomHandler.Delete).Methods("DELETE")

	api.HandleFunc("/tenants", tenantHandler.List).Methods("GET")
	api.HandleFunc("/tenants", tenantHandler.Create).Methods("POST")
	api.HandleFunc("/tenants/{id}", tenantHandler.Get).Methods("GET")
	api.HandleFunc("/tenants/{id}", tenantHandler.Update).Methods("PUT")
	api.HandleFunc("/tenants/{id}", tenantHandler.Delete).Methods("DELETE")

	api.HandleFunc("/meters", meterHandler.Save).Methods("POST")
	api.HandleFunc("/meters/bulk", meterHandler.BulkSave).Methods("POST")
	api.HandleFunc("/meters/sources", meterHandler.ListSources).Methods("GET")
	api.HandleFunc("/meters/sources", meterHandler.CreateSource).Methods("POST")
	api.HandleFunc("/meters/sources/{id}", meterHandler.UpdateSource).Methods("PUT")
	api.HandleFunc("/meters/sources/{id}", meterHandler.DeleteSource).Methods("DELETE")
	api.HandleFunc("/meters/rooms/{month:[0-9]+}/{year:[0-9]+}", meterHandler.RoomsForPeriod).Methods("GET")
	api.HandleFunc("/meters/{month:[0-9]+}/{year:[0-9]+}", meterHandler.ListByPeriod).Methods("GET")

	api.HandleFunc("/bills", billHandler.Save).Methods("POST")
	api.HandleFunc("/bills/generate/{month}/{year}", billHandler.Generate).Methods("GET")
	api.HandleFunc("/bills/{id}/pay", billHandler.MarkPaid).Methods("PUT")
	api.HandleFunc("/bills/{id}/pdf", billHandler.InvoicePDF).Methods("GET")
	api.HandleFunc("/bills/{id:[0-9]+}", billHandler.Get).Methods("GET")
	api.HandleFunc("/bills/{month:[0-9]+}/{year:[0-9]+}", billHandler.ListByPeriod).Methods("GET")

	api.HandleFunc("/settings", settingsHandler.List).Methods("GET")
	api.HandleFunc("/settings/bulk", settingsHandler.BulkUpdate).Methods("POST")
	api.HandleFunc("/settings/{key}", settingsHandler.Update).Methods("PUT")

	api.HandleFunc("/dashboard/stats", dashboardHandler.Stats).Methods("GET")
	api.HandleFunc("/dashboard/logs", dashboardHandler.Logs).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:4173", "*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	handler := c.Handler(r)

	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  180 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.ServerAddress)
	log.Println("Meter collectors running (15-minute polling)")
	log.Println("Default credentials: admin / admin123")
	log.Println("IMPORTANT: Change default password after first login!")
	log.Println("===========================================")

	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func debugStatusHandler(w http.ResponseWriter, r *http.Request) {
	debugInfo := collectorManager.GetDebugInfo()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(debugInfo)
}
