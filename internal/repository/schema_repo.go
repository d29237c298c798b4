package repository

import (
	"errors"

	"adwall/internal/models"

	"gorm.io/gorm"
)

var ErrSchemaNotFound = errors.New("form schema not found")

type SchemaRepository struct {
	db *gorm.DB
}

func NewSchemaRepository(db *gorm.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

func (r *SchemaRepository) GetAll() ([]models.FormSchema, error) {
	var schemas []models.FormSchema
	err := r.db.Preload("Fields", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Order("slug ASC").Find(&schemas).Error
	return schemas, err
}

func (r *SchemaRepository) GetBySlug(slug string) (*models.FormSchema, error) {
	var schema models.FormSchema
	err := r.db.Preload("Fields", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("slug = ?", slug).First(&schema).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchemaNotFound
		}
		return nil, err
	}
	return &schema, nil
}
