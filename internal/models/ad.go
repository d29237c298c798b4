package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Ad is a paid wall entry. Media URL lists are stored as JSON arrays in text
// columns; use EncodeURLList/DecodeURLList at the boundary.
type Ad struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:100;not null" json:"title"`
	Description string         `gorm:"size:500;not null" json:"description"`
	Author      string         `gorm:"size:64;not null;index" json:"author"` // display name, "Anonymous" when hidden
	ImageURLs   string         `gorm:"type:text" json:"-"`
	VideoURLs   string         `gorm:"type:text" json:"-"`
	TargetURL   string         `gorm:"size:512;not null" json:"target_url"`
	PriceCents  int64          `gorm:"not null;default:0" json:"price_cents"` // per-click charge
	Category    string         `gorm:"size:50;not null;index" json:"category"`
	Clicks      int64          `gorm:"not null;default:0" json:"clicks"`
	Likes       int64          `gorm:"not null;default:0" json:"likes"`
	Status      string         `gorm:"size:20;not null;index" json:"status"`
	IsAnonymous bool           `gorm:"not null;default:false" json:"is_anonymous"`
	UserID      *uint          `gorm:"index" json:"user_id"` // nil for ownerless ads
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Ad) TableName() string { return "ads" }

// Scoring inputs for bidrank.
func (a *Ad) BidPriceCents() int64 { return a.PriceCents }
func (a *Ad) BidClicks() int64     { return a.Clicks }

// AdView is the wire representation of an ad: media lists decoded, bid score
// attached, author possibly rewritten for admin viewers.
type AdView struct {
	Ad
	ImageURLList []string `json:"image_urls"`
	VideoURLList []string `json:"video_urls"`
	BidScore     float64  `json:"bid_score"`
}

// EncodeURLList serializes a media URL list for storage.
func EncodeURLList(urls []string) string {
	if len(urls) == 0 {
		return "[]"
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeURLList is lenient: a non-JSON, non-empty value is treated as a
// single bare URL, matching how legacy rows were stored.
func DecodeURLList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return []string{raw}
	}
	if urls == nil {
		return []string{}
	}
	return urls
}
