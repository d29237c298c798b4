package repository

import (
	"errors"

	"adwall/internal/domain"
	"adwall/internal/models"

	"gorm.io/gorm"
)

type AdRepository struct {
	db *gorm.DB
}

func NewAdRepository(db *gorm.DB) *AdRepository {
	return &AdRepository{db: db}
}

// AdFilter narrows List results. Zero values mean "no constraint";
// Status "All" and Category "All" are treated the same as empty.
type AdFilter struct {
	Search   string // matches title, description or author
	Status   string
	Category string
	OwnerID  *uint  // only ads owned by this user
	Author   string // admin: only ads published under this display name
	SortBy   string // createdAt (default) | price | clicks | likes
}

func (r *AdRepository) Create(ad *models.Ad) error {
	return r.db.Create(ad).Error
}

func (r *AdRepository) GetByID(id uint) (*models.Ad, error) {
	var ad models.Ad
	if err := r.db.Preload("User").First(&ad, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAdNotFound
		}
		return nil, err
	}
	return &ad, nil
}

func (r *AdRepository) Save(ad *models.Ad) error {
	return r.db.Save(ad).Error
}

func (r *AdRepository) Delete(ad *models.Ad) error {
	return r.db.Delete(ad).Error
}

func (r *AdRepository) IncrementLikes(id uint) (*models.Ad, error) {
	res := r.db.Model(&models.Ad{}).Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("likes + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrAdNotFound
	}
	return r.GetByID(id)
}

func (r *AdRepository) List(f AdFilter) ([]models.Ad, error) {
	q := r.db.Model(&models.Ad{}).Preload("User")
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("title LIKE ? OR description LIKE ? OR author LIKE ?", like, like, like)
	}
	if f.Status != "" && f.Status != "All" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" && f.Category != "All" {
		q = q.Where("category = ?", f.Category)
	}
	if f.OwnerID != nil {
		q = q.Where("user_id = ?", *f.OwnerID)
	}
	if f.Author != "" && f.Author != "All" {
		q = q.Where("author = ?", f.Author)
	}
	switch f.SortBy {
	case "price":
		q = q.Order("price_cents DESC")
	case "clicks":
		q = q.Order("clicks DESC")
	case "likes":
		q = q.Order("likes DESC")
	default:
		q = q.Order("created_at DESC")
	}
	var ads []models.Ad
	err := q.Find(&ads).Error
	return ads, err
}

// AdStats aggregates the dashboard numbers for one owner or the whole wall.
type AdStats struct {
	Total         int64           `json:"total"`
	Active        int64           `json:"active"`
	TotalClicks   int64           `json:"total_clicks"`
	TotalLikes    int64           `json:"total_likes"`
	AvgPriceCents float64         `json:"avg_price_cents"`
	Trend         []AdStatEntry   `json:"trend"`     // top ads by clicks
	TopLiked      []AdStatEntry   `json:"top_liked"` // top ads by likes
	CategoryStats []CategoryCount `json:"category_stats"`
}

type AdStatEntry struct {
	Title  string `json:"title"`
	Clicks int64  `json:"clicks,omitempty"`
	Likes  int64  `json:"likes,omitempty"`
}

type CategoryCount struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

func (r *AdRepository) Stats(ownerID *uint) (*AdStats, error) {
	scope := func() *gorm.DB {
		q := r.db.Model(&models.Ad{})
		if ownerID != nil {
			q = q.Where("user_id = ?", *ownerID)
		}
		return q
	}
	stats := &AdStats{}
	if err := scope().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := scope().Where("status = ?", domain.AdStatusActive).Count(&stats.Active).Error; err != nil {
		return nil, err
	}
	var sums struct {
		Clicks   int64
		Likes    int64
		AvgPrice float64
	}
	if err := scope().Select(
		"COALESCE(SUM(clicks),0) AS clicks, COALESCE(SUM(likes),0) AS likes, COALESCE(AVG(price_cents),0) AS avg_price",
	).Scan(&sums).Error; err != nil {
		return nil, err
	}
	stats.TotalClicks = sums.Clicks
	stats.TotalLikes = sums.Likes
	stats.AvgPriceCents = sums.AvgPrice

	if err := scope().Select("title", "clicks").Order("clicks DESC").Limit(5).Scan(&stats.Trend).Error; err != nil {
		return nil, err
	}
	if err := scope().Select("title", "likes").Order("likes DESC").Limit(5).Scan(&stats.TopLiked).Error; err != nil {
		return nil, err
	}
	if err := scope().Select("category AS name, COUNT(*) AS value").
		Group("category").Order("value DESC").Scan(&stats.CategoryStats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
