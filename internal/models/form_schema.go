package models

import (
	"time"
)

// Field kinds a form schema may declare. The client renders each kind with a
// matching widget; validation rules are the declarative flags on FormField.
const (
	FieldKindText     = "text"
	FieldKindTextarea = "textarea"
	FieldKindNumber   = "number"
	FieldKindFile     = "file"
)

// FormSchema is a data-driven form definition served to the client
// (e.g. the create-ad and update-ad forms).
type FormSchema struct {
	ID        uint        `gorm:"primaryKey" json:"-"`
	Slug      string      `gorm:"uniqueIndex;size:50;not null" json:"id"`
	Title     string      `gorm:"size:100;not null" json:"title"`
	Fields    []FormField `gorm:"foreignKey:SchemaID" json:"fields"`
	CreatedAt time.Time   `json:"-"`
	UpdatedAt time.Time   `json:"-"`
}

func (FormSchema) TableName() string { return "form_schemas" }

type FormField struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	SchemaID    uint   `gorm:"not null;index" json:"-"`
	Position    int    `gorm:"not null" json:"-"` // render order within the schema
	Name        string `gorm:"size:50;not null" json:"name"`
	Label       string `gorm:"size:100;not null" json:"label"`
	Kind        string `gorm:"size:20;not null" json:"type"`
	Required    bool   `gorm:"not null;default:false" json:"required"`
	Disabled    bool   `gorm:"not null;default:false" json:"disabled,omitempty"`
	Multiple    bool   `gorm:"not null;default:false" json:"multiple,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"`
	Min         *int   `json:"min,omitempty"`
	Placeholder string `gorm:"size:255" json:"placeholder,omitempty"`
}

func (FormField) TableName() string { return "form_fields" }
