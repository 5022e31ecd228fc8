package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/wrenfield/vintrack/api/internal/config"
	"github.com/wrenfield/vintrack/api/internal/database"
	"github.com/wrenfield/vintrack/api/internal/handlers"
	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/middleware"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/repository"
	"github.com/wrenfield/vintrack/api/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// A .env file is optional; real deployments use the environment.
	_ = godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting Vintrack API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Connect to the database and run migrations
	ctx := context.Background()
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"driver": cfg.Database.Driver,
			"host":   cfg.Database.Host,
			"name":   cfg.Database.Name,
		})
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", err, nil)
	}

	log.Info("Database ready", map[string]interface{}{
		"driver":   cfg.Database.Driver,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize repository layer
	vineyardRepo := repository.NewVineyardRepository(db.DB)
	sprayRepo := repository.NewSprayRepository(db.DB)
	recordRepo := repository.NewSprayRecordRepository(db.DB)
	chemicalRepo := repository.NewChemicalRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)

	// Initialize service layer
	vineyardService := services.NewVineyardService(vineyardRepo, log)
	sprayService := services.NewSprayService(sprayRepo, chemicalRepo, vineyardRepo, log)
	recordService := services.NewSprayRecordService(recordRepo, sprayRepo, vineyardRepo, log)
	chemicalService := services.NewChemicalService(chemicalRepo, recordRepo, log)
	userService := services.NewUserService(userRepo, recordRepo, log)
	exportService := services.NewExportService(recordRepo, vineyardRepo, log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, cfg.Auth)
	vineyardHandler := handlers.NewVineyardHandler(vineyardService)
	sprayHandler := handlers.NewSprayHandler(sprayService, recordService)
	recordHandler := handlers.NewSprayRecordHandler(recordService, exportService)
	chemicalHandler := handlers.NewChemicalHandler(chemicalService)
	userHandler := handlers.NewUserHandler(userService)

	authRequired := middleware.Auth(cfg.Auth, userRepo)
	operatorOnly := middleware.RequireRole(models.RoleOperator)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authRequired, authHandler.Me)
		}

		vineyards := v1.Group("/vineyards", authRequired)
		{
			vineyards.GET("", vineyardHandler.List)
			vineyards.GET("/:id", vineyardHandler.Get)
			vineyards.POST("", adminOnly, vineyardHandler.Create)
			vineyards.PUT("/:id", adminOnly, vineyardHandler.Update)
			vineyards.DELETE("/:id", adminOnly, vineyardHandler.Delete)
			vineyards.GET("/:id/spray-status", recordHandler.Status)
			vineyards.GET("/:id/programs/:programID/complete", recordHandler.ProgramStatus)
			vineyards.GET("/:id/spray-diary", recordHandler.ExportDiary)
		}

		units := v1.Group("/management-units", authRequired)
		{
			units.GET("", vineyardHandler.ListUnits)
			units.GET("/:id", vineyardHandler.GetUnit)
			units.PUT("/:id", adminOnly, vineyardHandler.UpdateUnit)
		}

		v1.GET("/growth-stages", authRequired, vineyardHandler.GrowthStages)

		programs := v1.Group("/spray-programs", authRequired)
		{
			programs.GET("", sprayHandler.ListPrograms)
			programs.GET("/:id", sprayHandler.GetProgram)
			programs.POST("", adminOnly, sprayHandler.CreateProgram)
			programs.PUT("/:id", adminOnly, sprayHandler.UpdateProgram)
			programs.DELETE("/:id", adminOnly, sprayHandler.DeleteProgram)
			programs.GET("/:id/sprays", sprayHandler.ListSprays)
			programs.POST("/:id/sprays", adminOnly, sprayHandler.CreateSpray)
		}

		sprays := v1.Group("/sprays", authRequired)
		{
			sprays.GET("/:id", sprayHandler.GetSpray)
			sprays.PUT("/:id", adminOnly, sprayHandler.UpdateSpray)
			sprays.DELETE("/:id", adminOnly, sprayHandler.DeleteSpray)
			sprays.POST("/:id/apply", adminOnly, sprayHandler.Apply)
			sprays.POST("/:id/complete", operatorOnly, recordHandler.Complete)
			sprays.GET("/:id/records", recordHandler.ListForSpray)
		}

		records := v1.Group("/spray-records", authRequired)
		{
			records.GET("/:id", recordHandler.Get)
			records.PUT("/:id", operatorOnly, recordHandler.Edit)
			records.DELETE("/:id", adminOnly, recordHandler.Delete)
			records.POST("/:id/notes", operatorOnly, recordHandler.AddNote)
		}

		chemicals := v1.Group("/chemicals", authRequired)
		{
			chemicals.GET("", chemicalHandler.List)
			chemicals.GET("/:id", chemicalHandler.Get)
			chemicals.POST("", adminOnly, chemicalHandler.Create)
			chemicals.PUT("/:id", adminOnly, chemicalHandler.Update)
			chemicals.DELETE("/:id", adminOnly, chemicalHandler.Delete)
		}
		v1.GET("/chemical-groups", authRequired, chemicalHandler.ListGroups)

		users := v1.Group("/users", authRequired)
		{
			users.GET("", adminOnly, userHandler.List)
			users.GET("/operators", userHandler.ListOperators)
			users.GET("/:id", adminOnly, userHandler.Get)
			users.PUT("/:id/role", adminOnly, userHandler.ChangeRole)
			users.DELETE("/:id", adminOnly, userHandler.Delete)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
