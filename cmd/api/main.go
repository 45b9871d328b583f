package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/config"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/database"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/logger"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbpool, err := database.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer dbpool.Close()

	dbManager := database.NewPostgresDBManager(context.Background(), dbpool)
	router := server.SetupRoutes(server.NewStatisticsService(dbManager, logger.New(cfg.LogLevel)))

	log.Printf("Server starting on port %s", cfg.APIPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.APIPort), router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
