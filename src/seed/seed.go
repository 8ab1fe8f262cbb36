package seed

import (
	"log"
	"os"
	"time"

	"github.com/recman/recman-backend/src/models"
	"gorm.io/gorm"
)

// Seed creates a handful of sample records on an empty store. It only runs
// when SEED_SAMPLE_DATA=true.
func Seed(db *gorm.DB) {
	if os.Getenv("SEED_SAMPLE_DATA") != "true" {
		return
	}

	var count int64
	if err := db.Model(&models.RecordModel{}).Count(&count).Error; err != nil {
		log.Printf("Seed: could not count records: %v\n", err)
		return
	}
	if count > 0 {
		log.Println("Seed: records already present, skipping")
		return
	}

	samples := []models.RecordModel{
		{Title: "Alpha report", Description: "annual", GroupName: "finance", CreatedAt: time.Now()},
		{Title: "Beta minutes", Description: "weekly sync notes", GroupName: "operations", CreatedAt: time.Now()},
		{Title: "Gamma proposal", Description: "draft budget", GroupName: "finance", CreatedAt: time.Now()},
	}

	for _, sample := range samples {
		if err := db.Create(&sample).Error; err != nil {
			log.Printf("Seed: failed to create record %q: %v\n", sample.Title, err)
		} else {
			log.Printf("Seed: record %q created\n", sample.Title)
		}
	}
}
