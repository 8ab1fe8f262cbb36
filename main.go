package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/recman/recman-backend/src/db"
	"github.com/recman/recman-backend/src/middleware"
	"github.com/recman/recman-backend/src/models"
	"github.com/recman/recman-backend/src/routes"
	"github.com/recman/recman-backend/src/seed"
	"github.com/recman/recman-backend/src/services"
)

func main() {

	// Database connection
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("Error connecting to database: %v\n", err)
	}

	// Auto-migrate models
	if err := database.AutoMigrate(&models.RecordModel{}, &models.FileModel{}); err != nil {
		log.Fatalf("Error during auto-migration: %v\n", err)
	}

	// Upload directory
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	store, err := services.NewUploadStore(uploadDir)
	if err != nil {
		log.Fatalf("Error preparing upload directory: %v\n", err)
	}

	// Optional sample data
	seed.Seed(database)

	// Port and host setup
	host := os.Getenv("SERVER_HOST")
	if host == "" {
		host = ":8080"
	}

	// Gin router setup
	router := gin.Default()
	router.Use(middleware.SetupCORS())

	// Services setup
	recordService := services.NewRecordService(database, store)
	searchService := services.NewSearchService(database)
	archiveService := services.NewArchiveService(database, store)

	// Routes setup
	routes.SetupRecordRoutes(router, recordService, store)
	routes.SetupSearchRoutes(router, searchService)
	routes.SetupArchiveRoutes(router, archiveService)

	// Server run
	if err := router.Run(host); err != nil {
		log.Fatalf("Error starting server on %s: %v\n", host, err)
	}
}
