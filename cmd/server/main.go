package main

import (
	"context" // context package is needed for Redis operations
	"log"     // log package is needed for logging

	"referral_system/internal/activation" // Registration-deposit workflow
	"referral_system/internal/api"        // Custom package for API handlers
	"referral_system/internal/config"     // Custom package for configuration
	"referral_system/internal/funds"      // Withdrawals and daily rewards
	"referral_system/internal/ledger"     // Balance ledger
	"referral_system/internal/middleware" // Custom package for middleware
	"referral_system/internal/referral"   // Referral graph and reward engine
	"referral_system/internal/settings"   // Tiered settings cache
	"referral_system/internal/store"      // Persistence bindings

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Wire the stores and core services. One settings cache per process,
	// passed by reference to every component that reads settings.
	stores := store.NewGormStores(db)
	settingsCache := settings.NewCache(stores.Settings, settings.NewRedisShared(redisClient))
	bankLedger := ledger.New(stores.Users, stores.Txs)
	graph := referral.NewGraph(stores.Edges)
	engine := referral.NewEngine(stores.Users, stores.Edges, bankLedger, referral.DefaultTiers)
	workflow := activation.New(stores.Users, stores.Deposits, bankLedger, graph, engine, settingsCache)
	fundsSvc := funds.NewService(stores.Users, stores.Withdrawals, bankLedger, settingsCache)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Auth routes
	r.POST("/user", api.RegisterHandler(stores.Users, graph, settingsCache)) // Registration endpoint
	r.GET("/user", api.LoginHandler(stores.Users, cfg.JWTSecret))            // Login endpoint

	// Account routes (protected by JWT)
	accountGroup := r.Group("/account")
	accountGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	accountGroup.GET("", api.ProfileHandler(stores.Users, redisClient))                          // Profile endpoint
	accountGroup.GET("/transactions", api.GetTransactionHistoryHandler(stores.Txs, redisClient)) // Transaction history endpoint
	accountGroup.POST("/deposit", api.SubmitDepositHandler(workflow))                            // Deposit submission endpoint
	accountGroup.POST("/withdraw", api.RequestWithdrawalHandler(fundsSvc, redisClient))          // Withdrawal request endpoint
	accountGroup.POST("/spin", api.SpinHandler(fundsSvc, redisClient))                           // Daily spin endpoint

	// Referral routes (protected by JWT)
	referralGroup := r.Group("/referrals")
	referralGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	referralGroup.GET("", api.ReferralSummaryHandler(stores.Edges))            // Referral summary endpoint
	referralGroup.POST("/check", api.CheckRewardsHandler(engine, redisClient)) // User-initiated reward check

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.AdminOnlyMiddleware(db))
	adminGroup.GET("/users", api.ListUsersHandler(db, redisClient))                                // List users endpoint
	adminGroup.GET("/transactions", api.ListTransactionsHandler(db, redisClient))                  // List transactions endpoint
	adminGroup.POST("/deposits/:id/verify", api.VerifyDepositHandler(workflow, redisClient))       // Deposit verification endpoint
	adminGroup.POST("/withdrawals/:id/verify", api.VerifyWithdrawalHandler(fundsSvc, redisClient)) // Withdrawal verification endpoint
	adminGroup.GET("/settings", api.GetSettingsHandler(settingsCache))                             // Settings read endpoint
	adminGroup.PUT("/settings", api.UpdateSettingHandler(settingsCache))                           // Settings update endpoint

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
