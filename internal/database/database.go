package database

import (
	"errors"
	"log"

	"adwall/config"
	"adwall/internal/domain"
	"adwall/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Ad{},
		&models.FormSchema{},
		&models.FormField{},
		&models.AuditLog{},
	)
}

// SeedAdmin ensures an admin account exists. The password must be rotated on
// first login in any real deployment.
func SeedAdmin(db *gorm.DB) {
	var count int64
	db.Model(&models.User{}).Where("role = ?", domain.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("admin12345"), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[seed] admin hash: %v", err)
		return
	}
	admin := &models.User{
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		log.Printf("[seed] admin: %v", err)
		return
	}
	log.Printf("[seed] created admin user (id=%d)", admin.ID)
}

// SeedFormSchemas inserts the ad form definitions if they are missing.
// Schemas are data: editing them in the DB changes the forms the client
// renders without a redeploy.
func SeedFormSchemas(db *gorm.DB) error {
	for _, schema := range defaultFormSchemas() {
		var existing models.FormSchema
		err := db.Where("slug = ?", schema.Slug).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&schema).Error; err != nil {
			return err
		}
	}
	return nil
}

func defaultFormSchemas() []models.FormSchema {
	zero := 0
	adFields := func() []models.FormField {
		return []models.FormField{
			{Position: 1, Name: "title", Label: "Ad title", Kind: models.FieldKindText, Required: true, MaxLength: 100, Placeholder: "Enter the ad title"},
			{Position: 2, Name: "author", Label: "Publisher", Kind: models.FieldKindText, Required: true, Disabled: true, MaxLength: 50, Placeholder: "Filled from the current user"},
			{Position: 3, Name: "description", Label: "Copy", Kind: models.FieldKindTextarea, Required: true, MaxLength: 500, Placeholder: "Enter the ad copy"},
			{Position: 4, Name: "imageUrls", Label: "Images", Kind: models.FieldKindFile, Required: true, Multiple: true, Placeholder: "Upload ad images"},
			{Position: 5, Name: "videoUrls", Label: "Videos", Kind: models.FieldKindFile, Required: false, Multiple: true, Placeholder: "Upload ad videos"},
			{Position: 6, Name: "targetUrl", Label: "Landing page", Kind: models.FieldKindText, Required: true, MaxLength: 255, Placeholder: "URL opened when the ad is clicked"},
			{Position: 7, Name: "price", Label: "Bid price", Kind: models.FieldKindNumber, Required: true, Min: &zero, Placeholder: "Per-click bid in yuan"},
		}
	}
	return []models.FormSchema{
		{Slug: "ad-form", Title: "Create ad", Fields: adFields()},
		{Slug: "update-ad-form", Title: "Update ad", Fields: adFields()},
	}
}
