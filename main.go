package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ajconsultancy/tradedesk/src/config"
	"github.com/ajconsultancy/tradedesk/src/database"
	"github.com/ajconsultancy/tradedesk/src/handlers"
	"github.com/ajconsultancy/tradedesk/src/logger"
	"github.com/ajconsultancy/tradedesk/src/security"
	"github.com/ajconsultancy/tradedesk/src/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{}
	for _, origin := range config.Cfg.AllowedOrigins {
		allowedOrigins[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("AJ Consultancy trade desk starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations("db/migrations")

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)

	authHandler := handlers.NewAuthHandler(authService)
	tradeHandler := handlers.NewTradeHandler(reportCache)
	clientHandler := handlers.NewClientHandler(reportCache)
	dashboardHandler := handlers.NewDashboardHandler(reportCache)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "AJ Consultancy API is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		// Public auth routes
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", authHandler.RegisterHandler)
			r.Post("/auth/login", authHandler.LoginHandler)
			r.Post("/auth/refresh", authHandler.RefreshTokenHandler)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authHandler.AuthMiddleware)

			r.Post("/auth/logout", authHandler.LogoutHandler)
			r.Get("/auth/me", authHandler.MeHandler)

			r.Post("/trades", tradeHandler.CreateTrade)
			r.Post("/trades/full-journal", tradeHandler.CreateFullJournal)
			r.Get("/trades", tradeHandler.ListTrades)
			r.Get("/trades/analytics/performance", tradeHandler.GetTradeAnalytics)
			r.Get("/trades/analytics/risk", tradeHandler.GetRiskMetrics)
			r.Get("/trades/{id}", tradeHandler.GetTrade)
			r.Patch("/trades/{id}", tradeHandler.UpdateTrade)
			r.Patch("/trades/{id}/close", tradeHandler.CloseTrade)
			r.Patch("/trades/{id}/restore", tradeHandler.RestoreTrade)
			r.Delete("/trades/{id}", tradeHandler.DeleteTrade)
			r.Post("/trades/{id}/notes", tradeHandler.AddTradeNote)

			r.Post("/clients", clientHandler.CreateClient)
			r.Get("/clients", clientHandler.ListClients)
			r.Get("/clients/summary", clientHandler.ClientSummary)
			r.Get("/clients/{id}", clientHandler.GetClient)
			r.Put("/clients/{id}", clientHandler.UpdateClient)
			r.Patch("/clients/{id}", clientHandler.UpdateClient)
			r.Patch("/clients/{id}/status", clientHandler.UpdateClientStatus)
			r.Patch("/clients/{id}/restore", clientHandler.RestoreClient)
			r.Delete("/clients/{id}", clientHandler.DeleteClient)

			r.Get("/dashboard/summary", dashboardHandler.Summary)
			r.Get("/dashboard/monthly-performance", dashboardHandler.MonthlyPerformance)
			r.Get("/dashboard/win-loss-distribution", dashboardHandler.WinLossDistribution)
			r.Get("/dashboard/recent-trades", dashboardHandler.RecentTrades)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
