package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/boxshift/backend/src/classifier"
	"github.com/username/boxshift/backend/src/config"
	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/engine"
	"github.com/username/boxshift/backend/src/handlers"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/reports"
	"github.com/username/boxshift/backend/src/security"
	"github.com/username/boxshift/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
			config.Cfg.AppURL:       true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Boxshift backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if len(config.Cfg.CSRFAuthKey) < 32 {
		logger.L.Error("CSRF_AUTH_KEY must be at least 32 bytes long.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	emailService := services.NewEmailService()

	txClassifier := classifier.New(config.Cfg)
	positionEngine := engine.New(database.DB)
	importService := services.NewImportService(txClassifier, positionEngine, reportCache)
	reportService := services.NewReportService(reports.NewGenerator(database.DB), reportCache)

	handlers.InitializeGitHubOAuthConfig()
	userHandler := handlers.NewUserHandler(authService)
	waitlistHandler := handlers.NewWaitlistHandler(emailService)
	importHandler := handlers.NewImportHandler(importService)
	txHandler := handlers.NewTransactionHandler(importService)
	reportHandler := handlers.NewReportHandler(reportService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	// Public routes
	apiRouter.HandleFunc("GET /api/auth/csrf", handlers.GetCSRFToken)
	apiRouter.HandleFunc("GET /api/auth/github/login", userHandler.HandleGitHubLogin)
	apiRouter.HandleFunc("GET /api/auth/github/callback", userHandler.HandleGitHubCallback)

	csrfProtection := handlers.CSRFMiddleware()
	applyCsrf := func(handler http.HandlerFunc) http.Handler {
		return csrfProtection(handler)
	}
	applyCsrfAndAuth := func(handler http.HandlerFunc) http.Handler {
		return csrfProtection(userHandler.AuthMiddleware(handler))
	}

	apiRouter.Handle("POST /api/waitlist", applyCsrf(waitlistHandler.HandleJoin))
	apiRouter.Handle("POST /api/auth/register", applyCsrf(userHandler.RegisterUserHandler))
	apiRouter.Handle("POST /api/auth/login", applyCsrf(userHandler.LoginUserHandler))
	apiRouter.Handle("POST /api/auth/refresh", applyCsrf(userHandler.RefreshTokenHandler))
	apiRouter.Handle("POST /api/auth/logout", applyCsrfAndAuth(userHandler.LogoutUserHandler))

	apiRouter.Handle("GET /api/user/me", applyCsrfAndAuth(userHandler.GetMeHandler))
	apiRouter.Handle("POST /api/user/onboard", applyCsrfAndAuth(userHandler.OnboardHandler))

	apiRouter.Handle("POST /api/import", applyCsrfAndAuth(importHandler.HandleImport))
	apiRouter.Handle("GET /api/transactions", applyCsrfAndAuth(txHandler.HandleGetTransactions))
	apiRouter.Handle("GET /api/transactions/years", applyCsrfAndAuth(txHandler.HandleGetTransactionYears))
	apiRouter.Handle("GET /api/holdings", applyCsrfAndAuth(txHandler.HandleGetHoldings))
	apiRouter.Handle("GET /api/dashboard/summary", applyCsrfAndAuth(txHandler.HandleGetDashboardSummary))

	apiRouter.Handle("POST /api/reports/{year}/generate", applyCsrfAndAuth(reportHandler.HandleGenerateReport))
	apiRouter.Handle("GET /api/reports/{year}", applyCsrfAndAuth(reportHandler.HandleGetReport))
	apiRouter.Handle("GET /api/reports/{year}/vpb", applyCsrfAndAuth(reportHandler.HandleGetFiling))
	apiRouter.Handle("POST /api/vpb/calculate", applyCsrfAndAuth(reportHandler.HandleCalculateVPB))
	apiRouter.Handle("GET /api/reports/{year}/aangifte", applyCsrfAndAuth(reportHandler.HandleGetAangifte))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Boxshift backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
