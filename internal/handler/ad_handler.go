package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"adwall/config"
	"adwall/internal/domain"
	"adwall/internal/middleware"
	"adwall/internal/models"
	"adwall/internal/repository"
	"adwall/internal/service"
	"adwall/internal/ws"
	"adwall/pkg/bidrank"
	"adwall/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

type AdHandler struct {
	adRepo  *repository.AdRepository
	billing *service.BillingService
	cloud   cloudinary.Client
	wall    *ws.WallHub
	cfg     *config.BillingConfig
}

func NewAdHandler(
	adRepo *repository.AdRepository,
	billing *service.BillingService,
	cloud cloudinary.Client,
	wall *ws.WallHub,
	cfg *config.BillingConfig,
) *AdHandler {
	return &AdHandler{adRepo: adRepo, billing: billing, cloud: cloud, wall: wall, cfg: cfg}
}

type CreateAdRequest struct {
	Title       string   `json:"title" binding:"required,max=100"`
	Description string   `json:"description" binding:"required,max=500"`
	ImageURLs   []string `json:"image_urls" binding:"required,min=1"`
	VideoURLs   []string `json:"video_urls"`
	TargetURL   string   `json:"target_url" binding:"required,max=512"`
	PriceCents  int64    `json:"price_cents" binding:"min=0"`
	Category    string   `json:"category"`
	IsAnonymous bool     `json:"is_anonymous"`
	Status      string   `json:"status"`
}

type UpdateAdRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	ImageURLs   []string `json:"image_urls"`
	VideoURLs   []string `json:"video_urls"`
	TargetURL   *string  `json:"target_url"`
	PriceCents  *int64   `json:"price_cents"`
	Category    *string  `json:"category"`
	IsAnonymous *bool    `json:"is_anonymous"`
	Status      *string  `json:"status"`
}

// view builds the wire representation, revealing the real publisher behind
// anonymous ads to admin viewers.
func (h *AdHandler) view(ad *models.Ad, admin bool) models.AdView {
	v := models.AdView{
		Ad:           *ad,
		ImageURLList: models.DecodeURLList(ad.ImageURLs),
		VideoURLList: models.DecodeURLList(ad.VideoURLs),
		BidScore:     bidrank.Score(ad.PriceCents, ad.Clicks, h.cfg.BidClickWeight),
	}
	if admin && ad.IsAnonymous && ad.User != nil {
		v.Author = fmt.Sprintf("%s (anonymous)", ad.User.Username)
	}
	return v
}

func (h *AdHandler) views(ads []models.Ad, admin bool) []models.AdView {
	out := make([]models.AdView, len(ads))
	for i := range ads {
		out[i] = h.view(&ads[i], admin)
	}
	return out
}

// Create handles POST /ads.
func (h *AdHandler) Create(c *gin.Context) {
	var req CreateAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	owner := &models.User{
		ID:       middleware.GetUserID(c),
		Username: middleware.GetUsername(c),
	}
	res, err := h.billing.CreateAd(owner, service.AdInput{
		Title:       req.Title,
		Description: req.Description,
		ImageURLs:   req.ImageURLs,
		VideoURLs:   req.VideoURLs,
		TargetURL:   req.TargetURL,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		IsAnonymous: req.IsAnonymous,
		Status:      req.Status,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create ad"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"ad":              h.view(res.Ad, false),
		"override_reason": res.OverrideReason,
	})
}

// List handles GET /ads. Anonymous visitors see the public gallery; owners
// can restrict to their own ads; admins can filter by publisher and see the
// real name behind anonymous ads.
func (h *AdHandler) List(c *gin.Context) {
	admin := middleware.IsAdmin(c)
	filter := repository.AdFilter{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Category: c.Query("category"),
		SortBy:   c.Query("sortBy"),
	}
	if admin {
		filter.Author = c.Query("targetUser")
	}
	if c.Query("mine") == "true" {
		userID := middleware.GetUserID(c)
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		filter.OwnerID = &userID
	}
	sortByScore := filter.SortBy == "score"
	if sortByScore {
		filter.SortBy = "" // rank in memory, keep creation order for ties
	}
	ads, err := h.adRepo.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list ads"})
		return
	}
	if sortByScore {
		ptrs := make([]*models.Ad, len(ads))
		for i := range ads {
			ptrs[i] = &ads[i]
		}
		bidrank.SortByScore(ptrs, h.cfg.BidClickWeight)
		ranked := make([]models.Ad, len(ptrs))
		for i, p := range ptrs {
			ranked[i] = *p
		}
		ads = ranked
	}
	c.JSON(http.StatusOK, h.views(ads, admin))
}

// Get handles GET /ads/:id.
func (h *AdHandler) Get(c *gin.Context) {
	ad, ok := h.loadAd(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.view(ad, middleware.IsAdmin(c)))
}

// Update handles PUT /ads/:id. The response's status may differ from the
// requested one; override_reason says why.
func (h *AdHandler) Update(c *gin.Context) {
	id, ok := adID(c)
	if !ok {
		return
	}
	var req UpdateAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.billing.UpdateAd(id, middleware.GetUserID(c), middleware.IsAdmin(c), service.AdUpdate{
		Title:       req.Title,
		Description: req.Description,
		ImageURLs:   req.ImageURLs,
		VideoURLs:   req.VideoURLs,
		TargetURL:   req.TargetURL,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		IsAnonymous: req.IsAnonymous,
		Status:      req.Status,
	})
	if err != nil {
		h.writeBillingError(c, err)
		return
	}
	h.wall.PublishAdStatus(res.Ad.ID, res.Ad.Status)
	c.JSON(http.StatusOK, gin.H{
		"ad":              h.view(res.Ad, middleware.IsAdmin(c)),
		"override_reason": res.OverrideReason,
	})
}

// Delete handles DELETE /ads/:id, removing uploaded media best-effort.
func (h *AdHandler) Delete(c *gin.Context) {
	ad, ok := h.loadAd(c)
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)
	if !middleware.IsAdmin(c) && (ad.UserID == nil || *ad.UserID != userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to manage this ad"})
		return
	}
	if h.cloud != nil {
		media := append(models.DecodeURLList(ad.ImageURLs), models.DecodeURLList(ad.VideoURLs)...)
		for _, url := range media {
			_ = h.cloud.DeleteByURL(c.Request.Context(), url)
		}
	}
	if err := h.adRepo.Delete(ad); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// Click handles POST /ads/:id/clicks, the billed click path.
func (h *AdHandler) Click(c *gin.Context) {
	id, ok := adID(c)
	if !ok {
		return
	}
	res, err := h.billing.RecordClick(id)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			// The ad was paused as a side effect; the click was not counted.
			h.wall.PublishAdStatus(res.Ad.ID, res.Ad.Status)
			h.wall.NotifyOwnerPaused(res.OwnerID, 1, res.OwnerBalance)
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error": "insufficient balance, ad paused",
				"ad":    h.view(res.Ad, false),
			})
			return
		}
		h.writeBillingError(c, err)
		return
	}
	h.wall.PublishAdClicked(res.Ad.ID, res.Ad.Clicks,
		bidrank.Score(res.Ad.PriceCents, res.Ad.Clicks, h.cfg.BidClickWeight))
	if res.PausedOthers > 0 {
		h.wall.NotifyOwnerPaused(res.OwnerID, res.PausedOthers, res.OwnerBalance)
	}
	c.JSON(http.StatusOK, gin.H{
		"ad":            h.view(res.Ad, false),
		"billed":        res.Billed,
		"paused_others": res.PausedOthers,
	})
}

// Like handles POST /ads/:id/like.
func (h *AdHandler) Like(c *gin.Context) {
	id, ok := adID(c)
	if !ok {
		return
	}
	ad, err := h.adRepo.IncrementLikes(id)
	if err != nil {
		h.writeBillingError(c, err)
		return
	}
	h.wall.PublishAdLiked(ad.ID, ad.Likes)
	c.JSON(http.StatusOK, gin.H{"success": true, "likes": ad.Likes})
}

// Activation handles POST /ads/:id/activation.
func (h *AdHandler) Activation(c *gin.Context) {
	id, ok := adID(c)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active is required"})
		return
	}
	res, err := h.billing.ToggleActivation(id, middleware.GetUserID(c), middleware.IsAdmin(c), *req.Active)
	if err != nil {
		h.writeBillingError(c, err)
		return
	}
	h.wall.PublishAdStatus(res.Ad.ID, res.Ad.Status)
	c.JSON(http.StatusOK, gin.H{
		"ad":              h.view(res.Ad, middleware.IsAdmin(c)),
		"override_reason": res.OverrideReason,
	})
}

// Stats handles GET /ads/stats. mine=true scopes to the caller's ads.
func (h *AdHandler) Stats(c *gin.Context) {
	var ownerID *uint
	if c.Query("mine") == "true" {
		userID := middleware.GetUserID(c)
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		ownerID = &userID
	}
	stats, err := h.adRepo.Stats(ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdHandler) loadAd(c *gin.Context) (*models.Ad, bool) {
	id, ok := adID(c)
	if !ok {
		return nil, false
	}
	ad, err := h.adRepo.GetByID(id)
	if err != nil {
		h.writeBillingError(c, err)
		return nil, false
	}
	return ad, true
}

func (h *AdHandler) writeBillingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAdNotFound), errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func adID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ad id"})
		return 0, false
	}
	return uint(id), true
}
