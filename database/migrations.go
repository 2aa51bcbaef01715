package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"screenlens/models"
)

func Migrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.Project{},
		&models.Screen{},
		&models.ScreenDescription{},
		&models.Conversation{},
		&models.ChatMessage{},
		&models.Settings{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	fmt.Println("Migrations completed")
}
