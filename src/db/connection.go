package db

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Connect() (*gorm.DB, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading config from environment")
	}

	// TranslateError turns driver-specific unique violations into
	// gorm.ErrDuplicatedKey, which the import replay relies on
	config := &gorm.Config{TranslateError: true}

	var database *gorm.DB
	var err error

	switch os.Getenv("DB_DRIVER") {
	case "postgres":
		dsn := os.Getenv("DB_DSN")
		database, err = gorm.Open(postgres.Open(dsn), config)
	default:
		path := os.Getenv("DB_PATH")
		if path == "" {
			path = "records.sqlite"
		}
		database, err = gorm.Open(sqlite.Open(path), config)
	}
	if err != nil {
		log.Println("Error connecting to the database:", err)
		return nil, err
	}

	log.Println("RecMan DB connected successfully!")

	return database, nil
}
