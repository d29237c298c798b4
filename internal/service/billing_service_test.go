package service

import (
	"testing"

	"adwall/config"
	"adwall/internal/database"
	"adwall/internal/domain"
	"adwall/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func testBillingConfig() *config.BillingConfig {
	return &config.BillingConfig{
		Currency:         "CNY",
		SignupBonusCents: 10000,
		BidClickWeight:   0.42,
		MinTopUpCents:    100,
	}
}

func seedUser(t *testing.T, db *gorm.DB, username string, balanceCents int64) *models.User {
	t.Helper()
	u := &models.User{Username: username, Role: domain.RoleUser, BalanceCents: balanceCents}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedAd(t *testing.T, db *gorm.DB, owner *models.User, title string, priceCents int64, status string) *models.Ad {
	t.Helper()
	ad := &models.Ad{
		Title:       title,
		Description: "test ad",
		Author:      "someone",
		ImageURLs:   models.EncodeURLList([]string{"https://example.com/a.jpg"}),
		TargetURL:   "https://example.com",
		PriceCents:  priceCents,
		Category:    domain.DefaultCategory,
		Status:      status,
	}
	if owner != nil {
		ad.Author = owner.Username
		ad.UserID = &owner.ID
	}
	require.NoError(t, db.Create(ad).Error)
	return ad
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return &u
}

func reloadAd(t *testing.T, db *gorm.DB, id uint) *models.Ad {
	t.Helper()
	var ad models.Ad
	require.NoError(t, db.First(&ad, id).Error)
	return &ad
}

func ledgerEntries(t *testing.T, db *gorm.DB, userID uint) []models.Transaction {
	t.Helper()
	var txs []models.Transaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("id ASC").Find(&txs).Error)
	return txs
}

func TestRecordClickDebitsAndCounts(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "alice", 5000)
	ad := seedAd(t, db, owner, "Coffee shop", 1200, domain.AdStatusActive)

	res, err := svc.RecordClick(ad.ID)
	require.NoError(t, err)
	require.True(t, res.Billed)
	require.EqualValues(t, 1, res.Ad.Clicks)
	require.EqualValues(t, 0, res.PausedOthers)

	require.EqualValues(t, 3800, reloadUser(t, db, owner.ID).BalanceCents)
	require.EqualValues(t, 1, reloadAd(t, db, ad.ID).Clicks)

	txs := ledgerEntries(t, db, owner.ID)
	require.Len(t, txs, 1)
	require.EqualValues(t, -1200, txs[0].AmountCents)
	require.Equal(t, domain.TxTypeAdCharge, txs[0].Type)
}

func TestRecordClickUnknownAd(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())

	_, err := svc.RecordClick(9999)
	require.ErrorIs(t, err, domain.ErrAdNotFound)
}

func TestRecordClickOwnerlessAdIsFree(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	ad := seedAd(t, db, nil, "Legacy ad", 1000, domain.AdStatusActive)

	res, err := svc.RecordClick(ad.ID)
	require.NoError(t, err)
	require.False(t, res.Billed)
	require.EqualValues(t, 1, reloadAd(t, db, ad.ID).Clicks)
}

func TestRecordClickInsufficientFundsPausesAd(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "bob", 500)
	ad := seedAd(t, db, owner, "Too pricey", 1200, domain.AdStatusActive)

	res, err := svc.RecordClick(ad.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NotNil(t, res)
	require.Equal(t, domain.AdStatusPaused, res.Ad.Status)

	// The pause committed; the click did not count and nothing was charged.
	stored := reloadAd(t, db, ad.ID)
	require.Equal(t, domain.AdStatusPaused, stored.Status)
	require.EqualValues(t, 0, stored.Clicks)
	require.EqualValues(t, 500, reloadUser(t, db, owner.ID).BalanceCents)
	require.Empty(t, ledgerEntries(t, db, owner.ID))
}

func TestRecordClickSweepsUnaffordableSiblings(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "carol", 6000)
	cheap := seedAd(t, db, owner, "Cheap", 1000, domain.AdStatusActive)
	pricey := seedAd(t, db, owner, "Pricey", 5500, domain.AdStatusActive)
	affordable := seedAd(t, db, owner, "Affordable", 5000, domain.AdStatusActive)

	res, err := svc.RecordClick(cheap.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.PausedOthers)

	// Balance fell to 5000: 5500 can no longer buy a click, 5000 still can.
	require.Equal(t, domain.AdStatusPaused, reloadAd(t, db, pricey.ID).Status)
	require.Equal(t, domain.AdStatusActive, reloadAd(t, db, affordable.ID).Status)
	require.Equal(t, domain.AdStatusActive, reloadAd(t, db, cheap.ID).Status)
}

func TestRecordClickDrainsBalanceThenPauses(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "dave", 10000)
	ad := seedAd(t, db, owner, "Steady", 3000, domain.AdStatusActive)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordClick(ad.ID)
		require.NoError(t, err)
	}
	require.EqualValues(t, 1000, reloadUser(t, db, owner.ID).BalanceCents)

	_, err := svc.RecordClick(ad.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	stored := reloadAd(t, db, ad.ID)
	require.Equal(t, domain.AdStatusPaused, stored.Status)
	require.EqualValues(t, 3, stored.Clicks)
	require.EqualValues(t, 1000, reloadUser(t, db, owner.ID).BalanceCents)
	require.Len(t, ledgerEntries(t, db, owner.ID), 3)
}

func TestToggleActivationOwnership(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "erin", 5000)
	stranger := seedUser(t, db, "mallory", 5000)
	ad := seedAd(t, db, owner, "Mine", 1000, domain.AdStatusActive)

	_, err := svc.ToggleActivation(ad.ID, stranger.ID, false, false)
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Admins manage anyone's ads.
	res, err := svc.ToggleActivation(ad.ID, stranger.ID, true, false)
	require.NoError(t, err)
	require.Equal(t, domain.AdStatusPaused, res.Ad.Status)
}

func TestToggleActivationGatesOnBalance(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "frank", 800)
	ad := seedAd(t, db, owner, "Gated", 1000, domain.AdStatusPaused)

	res, err := svc.ToggleActivation(ad.ID, owner.ID, false, true)
	require.NoError(t, err)
	require.Equal(t, domain.AdStatusPaused, res.Ad.Status)
	require.Equal(t, domain.OverrideInsufficientFunds, res.OverrideReason)

	_, err = svc.TopUp(owner.ID, 500)
	require.NoError(t, err)

	res, err = svc.ToggleActivation(ad.ID, owner.ID, false, true)
	require.NoError(t, err)
	require.Equal(t, domain.AdStatusActive, res.Ad.Status)
	require.Empty(t, res.OverrideReason)
}

func TestCreateAdAppliesSolvencyGate(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "grace", 900)

	res, err := svc.CreateAd(owner, AdInput{
		Title:       "Big spender",
		Description: "expensive per click",
		ImageURLs:   []string{"https://example.com/x.jpg"},
		TargetURL:   "https://example.com",
		PriceCents:  2000,
	})
	require.NoError(t, err)
	require.Equal(t, domain.AdStatusPaused, res.Ad.Status)
	require.Equal(t, domain.OverrideInsufficientFunds, res.OverrideReason)
	require.Equal(t, domain.DefaultCategory, res.Ad.Category)

	res, err = svc.CreateAd(owner, AdInput{
		Title:       "Modest",
		Description: "cheap per click",
		ImageURLs:   []string{"https://example.com/y.jpg"},
		TargetURL:   "https://example.com",
		PriceCents:  500,
		Category:    "Food",
	})
	require.NoError(t, err)
	require.Equal(t, domain.AdStatusActive, res.Ad.Status)
	require.Empty(t, res.OverrideReason)
	require.Equal(t, "Food", res.Ad.Category)
}

func TestCreateAdRejectsNegativePrice(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "heidi", 1000)

	_, err := svc.CreateAd(owner, AdInput{Title: "Bad", Description: "x", PriceCents: -1})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCreateAdAnonymousAuthor(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "ivan", 5000)

	res, err := svc.CreateAd(owner, AdInput{
		Title:       "Hidden",
		Description: "who posted this",
		PriceCents:  100,
		IsAnonymous: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.AnonymousAuthor, res.Ad.Author)
	require.NotNil(t, res.Ad.UserID)
	require.Equal(t, owner.ID, *res.Ad.UserID)
}

func TestUpdateAdReGatesOnPriceRaise(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "judy", 1500)
	ad := seedAd(t, db, owner, "Creeping price", 1000, domain.AdStatusActive)

	newPrice := int64(2000)
	res, err := svc.UpdateAd(ad.ID, owner.ID, false, AdUpdate{PriceCents: &newPrice})
	require.NoError(t, err)
	require.Equal(t, domain.AdStatusPaused, res.Ad.Status)
	require.Equal(t, domain.OverrideInsufficientFunds, res.OverrideReason)
	require.EqualValues(t, 2000, res.Ad.PriceCents)
}

func TestUpdateAdAnonymityFlip(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "kate", 5000)
	ad := seedAd(t, db, owner, "Flip", 100, domain.AdStatusActive)

	anon := true
	res, err := svc.UpdateAd(ad.ID, owner.ID, false, AdUpdate{IsAnonymous: &anon})
	require.NoError(t, err)
	require.Equal(t, domain.AnonymousAuthor, res.Ad.Author)

	anon = false
	res, err = svc.UpdateAd(ad.ID, owner.ID, false, AdUpdate{IsAnonymous: &anon})
	require.NoError(t, err)
	require.Equal(t, "kate", res.Ad.Author)
}

func TestUpdateAdForbiddenForStrangers(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "liam", 5000)
	stranger := seedUser(t, db, "nina", 5000)
	ad := seedAd(t, db, owner, "Private", 100, domain.AdStatusActive)

	title := "hijacked"
	_, err := svc.UpdateAd(ad.ID, stranger.ID, false, AdUpdate{Title: &title})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTopUpValidation(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	u := seedUser(t, db, "oscar", 0)

	_, err := svc.TopUp(u.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.TopUp(u.ID, -500)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.TopUp(u.ID, 50) // below minimum
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	got, err := svc.TopUp(u.ID, 2500)
	require.NoError(t, err)
	require.EqualValues(t, 2500, got.BalanceCents)

	txs := ledgerEntries(t, db, u.ID)
	require.Len(t, txs, 1)
	require.Equal(t, domain.TxTypeTopUp, txs[0].Type)
	require.EqualValues(t, 2500, txs[0].AmountCents)
}

func TestTopUpDoesNotReactivate(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "peggy", 0)
	ad := seedAd(t, db, owner, "Stays paused", 1000, domain.AdStatusPaused)

	_, err := svc.TopUp(owner.ID, 5000)
	require.NoError(t, err)
	require.Equal(t, domain.AdStatusPaused, reloadAd(t, db, ad.ID).Status)
}

func TestAdminCredit(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	u := seedUser(t, db, "quinn", 100)

	got, err := svc.AdminCredit(u.ID, 50, "admin") // below top-up minimum is fine for admins
	require.NoError(t, err)
	require.EqualValues(t, 150, got.BalanceCents)

	_, err = svc.AdminCredit(9999, 100, "admin")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	txs := ledgerEntries(t, db, u.ID)
	require.Len(t, txs, 1)
	require.Equal(t, domain.TxTypeAdminCredit, txs[0].Type)
}

func TestLedgerReconcilesWithBalance(t *testing.T) {
	db := setupDB(t)
	svc := NewBillingService(db, testBillingConfig())
	owner := seedUser(t, db, "ruth", 0)
	_, err := svc.TopUp(owner.ID, 4000)
	require.NoError(t, err)
	ad := seedAd(t, db, owner, "Reconciled", 700, domain.AdStatusActive)

	for i := 0; i < 4; i++ {
		_, err := svc.RecordClick(ad.ID)
		require.NoError(t, err)
	}

	var sum int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("user_id = ?", owner.ID).
		Select("COALESCE(SUM(amount_cents),0)").Scan(&sum).Error)
	require.Equal(t, reloadUser(t, db, owner.ID).BalanceCents, sum)
}
