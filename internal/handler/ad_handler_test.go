package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adwall/config"
	"adwall/internal/auth"
	"adwall/internal/database"
	"adwall/internal/domain"
	"adwall/internal/middleware"
	"adwall/internal/models"
	"adwall/internal/repository"
	"adwall/internal/service"
	"adwall/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db     *gorm.DB
	cfg    *config.Config
	engine *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	cfg := &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:  "test-access",
			RefreshSecret: "test-refresh",
			AccessExpiry:  time.Hour,
			RefreshExpiry: time.Hour,
			Issuer:        "adwall-test",
		},
		Billing: config.BillingConfig{
			Currency:         "CNY",
			SignupBonusCents: 10000,
			BidClickWeight:   0.42,
			MinTopUpCents:    100,
		},
	}

	adRepo := repository.NewAdRepository(db)
	billing := service.NewBillingService(db, &cfg.Billing)
	h := NewAdHandler(adRepo, billing, nil, ws.NewWallHub(), &cfg.Billing)

	r := gin.New()
	authMw := middleware.AuthRequired(&cfg.JWT)
	optionalMw := middleware.OptionalAuth(&cfg.JWT)
	r.GET("/ads", optionalMw, h.List)
	r.GET("/ads/:id", optionalMw, h.Get)
	r.POST("/ads/:id/clicks", optionalMw, h.Click)
	r.POST("/ads/:id/like", optionalMw, h.Like)
	r.POST("/ads", authMw, h.Create)
	r.POST("/ads/:id/activation", authMw, h.Activation)

	return &testEnv{db: db, cfg: cfg, engine: r}
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(&e.cfg.JWT, u.ID, u.Username, u.Role)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedUser(t *testing.T, username, role string, balanceCents int64) *models.User {
	t.Helper()
	u := &models.User{Username: username, Role: role, BalanceCents: balanceCents}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) seedAd(t *testing.T, owner *models.User, title string, priceCents, clicks int64, status string, anonymous bool) *models.Ad {
	t.Helper()
	ad := &models.Ad{
		Title:       title,
		Description: "test",
		Author:      owner.Username,
		ImageURLs:   models.EncodeURLList([]string{"https://example.com/a.jpg"}),
		TargetURL:   "https://example.com",
		PriceCents:  priceCents,
		Clicks:      clicks,
		Category:    domain.DefaultCategory,
		Status:      status,
		IsAnonymous: anonymous,
		UserID:      &owner.ID,
	}
	if anonymous {
		ad.Author = domain.AnonymousAuthor
	}
	require.NoError(t, e.db.Create(ad).Error)
	return ad
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestClickEndpointBillsOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice", domain.RoleUser, 5000)
	ad := env.seedAd(t, owner, "Coffee", 1200, 0, domain.AdStatusActive, false)

	w := env.request(t, http.MethodPost, fmt.Sprintf("/ads/%d/clicks", ad.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	var billed bool
	require.NoError(t, json.Unmarshal(body["billed"], &billed))
	require.True(t, billed)

	var stored models.User
	require.NoError(t, env.db.First(&stored, owner.ID).Error)
	require.EqualValues(t, 3800, stored.BalanceCents)
}

func TestClickEndpointInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "bob", domain.RoleUser, 100)
	ad := env.seedAd(t, owner, "Pricey", 1200, 0, domain.AdStatusActive, false)

	w := env.request(t, http.MethodPost, fmt.Sprintf("/ads/%d/clicks", ad.ID), "", nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	// The pause is a committed side effect of the failed click.
	var stored models.Ad
	require.NoError(t, env.db.First(&stored, ad.ID).Error)
	require.Equal(t, domain.AdStatusPaused, stored.Status)
	require.EqualValues(t, 0, stored.Clicks)
}

func TestClickEndpointUnknownAd(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodPost, "/ads/9999/clicks", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.request(t, http.MethodPost, "/ads/abc/clicks", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSortedByScore(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "carol", domain.RoleUser, 100000)
	// score = price + price*clicks*0.42
	env.seedAd(t, owner, "low", 100, 0, domain.AdStatusActive, false)     // 100
	env.seedAd(t, owner, "high", 1000, 10, domain.AdStatusActive, false)  // 5200
	env.seedAd(t, owner, "middle", 2000, 1, domain.AdStatusActive, false) // 2840

	w := env.request(t, http.MethodGet, "/ads?sortBy=score", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var views []models.AdView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 3)
	require.Equal(t, "high", views[0].Title)
	require.Equal(t, "middle", views[1].Title)
	require.Equal(t, "low", views[2].Title)
	require.InDelta(t, 5200, views[0].BidScore, 0.001)
}

func TestCreateAdRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodPost, "/ads", "", gin.H{
		"title": "x", "description": "y",
		"image_urls": []string{"https://example.com/a.jpg"},
		"target_url": "https://example.com",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAdEndpoint(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "dave", domain.RoleUser, 5000)

	w := env.request(t, http.MethodPost, "/ads", env.token(t, owner), gin.H{
		"title":       "Lunch deal",
		"description": "half price noodles",
		"image_urls":  []string{"https://example.com/noodles.jpg"},
		"target_url":  "https://example.com/lunch",
		"price_cents": 300,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	var view models.AdView
	require.NoError(t, json.Unmarshal(body["ad"], &view))
	require.Equal(t, domain.AdStatusActive, view.Status)
	require.Equal(t, []string{"https://example.com/noodles.jpg"}, view.ImageURLList)

	// Missing media is rejected by binding.
	w = env.request(t, http.MethodPost, "/ads", env.token(t, owner), gin.H{
		"title":       "No media",
		"description": "nope",
		"target_url":  "https://example.com",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAdOverrideReported(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "erin", domain.RoleUser, 100)

	w := env.request(t, http.MethodPost, "/ads", env.token(t, owner), gin.H{
		"title":       "Too rich",
		"description": "cannot afford a click",
		"image_urls":  []string{"https://example.com/x.jpg"},
		"target_url":  "https://example.com",
		"price_cents": 5000,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	var reason string
	require.NoError(t, json.Unmarshal(body["override_reason"], &reason))
	require.Equal(t, domain.OverrideInsufficientFunds, reason)

	var view models.AdView
	require.NoError(t, json.Unmarshal(body["ad"], &view))
	require.Equal(t, domain.AdStatusPaused, view.Status)
}

func TestAdminSeesThroughAnonymity(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "frank", domain.RoleUser, 5000)
	admin := env.seedUser(t, "admin", domain.RoleAdmin, 0)
	ad := env.seedAd(t, owner, "Secret", 100, 0, domain.AdStatusActive, true)

	// The public sees the placeholder author.
	w := env.request(t, http.MethodGet, fmt.Sprintf("/ads/%d", ad.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view models.AdView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal(t, domain.AnonymousAuthor, view.Author)

	w = env.request(t, http.MethodGet, fmt.Sprintf("/ads/%d", ad.ID), env.token(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal(t, "frank (anonymous)", view.Author)
}

func TestActivationEndpoint(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "gail", domain.RoleUser, 50)
	stranger := env.seedUser(t, "hank", domain.RoleUser, 50)
	ad := env.seedAd(t, owner, "Toggled", 1000, 0, domain.AdStatusPaused, false)

	path := fmt.Sprintf("/ads/%d/activation", ad.ID)

	w := env.request(t, http.MethodPost, path, env.token(t, stranger), gin.H{"active": true})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Owner activates but the balance cannot cover one click.
	w = env.request(t, http.MethodPost, path, env.token(t, owner), gin.H{"active": true})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	var reason string
	require.NoError(t, json.Unmarshal(body["override_reason"], &reason))
	require.Equal(t, domain.OverrideInsufficientFunds, reason)
}

func TestLikeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "iris", domain.RoleUser, 0)
	ad := env.seedAd(t, owner, "Likeable", 100, 0, domain.AdStatusActive, false)

	w := env.request(t, http.MethodPost, fmt.Sprintf("/ads/%d/like", ad.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stored models.Ad
	require.NoError(t, env.db.First(&stored, ad.ID).Error)
	require.EqualValues(t, 1, stored.Likes)
}
