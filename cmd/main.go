package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sportsblock/internal/auth"
	"sportsblock/internal/balance"
	"sportsblock/internal/config"
	"sportsblock/internal/database"
	"sportsblock/internal/handlers"
	"sportsblock/internal/jobs"
	"sportsblock/internal/repository"
	"sportsblock/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize collaborators
	repo := repository.NewRepository(database.GetDB())
	authorizer := auth.NewAuthorizer(cfg.App.AdminAccounts)
	medalsBalances := balance.NewHiveEngineClient(cfg.Hive.EngineRPCURL, cfg.Hive.TokenSymbol)

	// Initialize services
	authService := services.NewAuthService(database.GetDB())
	lifecycleService := services.NewLifecycleService(repo)
	poolLedger := services.NewPoolLedger(repo, medalsBalances, lifecycleService, cfg.App.MinStake, cfg.App.MaxStake)
	stakeService := services.NewStakeService(repo, poolLedger)
	settlementService := services.NewSettlementService(repo, lifecycleService)
	predictionService := services.NewPredictionService(repo, lifecycleService, authorizer)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	predictionHandler := handlers.NewPredictionHandler(predictionService, settlementService)
	stakeHandler := handlers.NewStakeHandler(stakeService)

	// Start lock sweeper job
	lockSweeper := jobs.NewLockSweeper(repo, time.Minute)
	go lockSweeper.Start()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"https://sportsblock.app",
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", authHandler.Logout)
		authRoutes.GET("/me", auth.AuthMiddleware(), authHandler.GetMe)
	}

	// Prediction routes
	api := router.Group("/api")
	{
		// Reads are public; authenticated callers get their own stakes joined in
		api.GET("/predictions", auth.OptionalAuthMiddleware(), predictionHandler.ListPredictions)
		api.GET("/predictions/:id", auth.OptionalAuthMiddleware(), predictionHandler.GetPrediction)

		protected := api.Group("", auth.AuthMiddleware())
		{
			protected.POST("/predictions", predictionHandler.CreatePrediction)
			protected.PUT("/predictions/:id", predictionHandler.EditPrediction)
			protected.DELETE("/predictions/:id", predictionHandler.DeletePrediction)
			protected.POST("/predictions/:id/lock", predictionHandler.LockPrediction)
			protected.POST("/predictions/:id/settle", predictionHandler.SettlePrediction)
			protected.POST("/predictions/:id/void", predictionHandler.VoidPrediction)
			protected.POST("/predictions/:id/stakes", stakeHandler.PlaceStake)
			protected.GET("/predictions/:id/stakes/me", stakeHandler.GetMyStakes)
		}
	}

	// HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	lockSweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}

	log.Println("Server stopped")
}
