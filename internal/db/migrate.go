package db

import (
	"fmt"

	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPageName is the page seeded for every owner on init.
const DefaultPageName = "Inbox"

// AllModels returns every GORM model managed by Taskyard.
func AllModels() []interface{} {
	return []interface{}{
		&models.Page{},
		&models.Task{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every managed table, tasks first.
func DropAll(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&models.Task{}, &models.Page{}); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}

// SeedPage makes sure the owner has a default page and returns it.
func SeedPage(db *gorm.DB, owner string) (*models.Page, error) {
	page := models.Page{Owner: owner, Name: DefaultPageName}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}, {Name: "name"}},
		DoNothing: true,
	}).Create(&page)
	if result.Error != nil {
		return nil, fmt.Errorf("db: seed page for %s: %w", owner, result.Error)
	}

	var seeded models.Page
	if err := db.Where("owner = ? AND name = ?", owner, DefaultPageName).First(&seeded).Error; err != nil {
		return nil, fmt.Errorf("db: load seeded page for %s: %w", owner, err)
	}
	return &seeded, nil
}
