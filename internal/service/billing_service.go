package service

import (
	"errors"
	"fmt"

	"adwall/config"
	"adwall/internal/domain"
	"adwall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BillingService owns every operation that touches an advertiser's balance
// or an ad's Active/Paused state. Each operation runs in one database
// transaction; the owner's user row is locked (SELECT ... FOR UPDATE) before
// any solvency decision so concurrent clicks cannot double-spend a stale
// balance. The balance never goes below zero.
type BillingService struct {
	db  *gorm.DB
	cfg *config.BillingConfig
}

func NewBillingService(db *gorm.DB, cfg *config.BillingConfig) *BillingService {
	return &BillingService{db: db, cfg: cfg}
}

// ClickResult reports the outcome of a recorded click. OwnerID and
// OwnerBalance are for internal fan-out (owner notices) and never serialize.
type ClickResult struct {
	Ad           *models.Ad `json:"ad"`
	Billed       bool       `json:"billed"`        // false for ownerless ads
	PausedOthers int64      `json:"paused_others"` // campaigns paused by the risk sweep
	OwnerID      uint       `json:"-"`
	OwnerBalance int64      `json:"-"`
}

// AdResult carries a persisted ad plus the reason its requested status was
// overridden, if any. Callers must check OverrideReason instead of comparing
// statuses themselves.
type AdResult struct {
	Ad             *models.Ad `json:"ad"`
	OverrideReason string     `json:"override_reason,omitempty"`
}

// RecordClick charges the ad's owner for one click and counts it.
//
// Outcomes:
//   - ad missing: domain.ErrAdNotFound, nothing changes.
//   - ownerless ad: click counted, no charge, Billed=false.
//   - owner cannot afford the price: the ad is paused (that write commits),
//     the click is NOT counted, domain.ErrInsufficientFunds is returned with
//     the paused ad in the result.
//   - solvent owner: balance debited, ledger entry appended, click counted,
//     and every other Active ad of the owner whose price now exceeds the
//     remaining balance is paused in the same transaction.
func (s *BillingService) RecordClick(adID uint) (*ClickResult, error) {
	var out ClickResult
	insufficient := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ad models.Ad
		if err := tx.First(&ad, adID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAdNotFound
			}
			return err
		}
		if ad.UserID == nil {
			if err := tx.Model(&ad).UpdateColumn("clicks", gorm.Expr("clicks + 1")).Error; err != nil {
				return err
			}
			ad.Clicks++
			out.Ad = &ad
			return nil
		}

		var owner models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, *ad.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if owner.BalanceCents < ad.PriceCents {
			// The pause must survive, so it cannot ride on a rolled-back
			// transaction; commit it and surface the 402 after.
			if err := tx.Model(&ad).Update("status", domain.AdStatusPaused).Error; err != nil {
				return err
			}
			ad.Status = domain.AdStatusPaused
			out.Ad = &ad
			out.OwnerID = owner.ID
			out.OwnerBalance = owner.BalanceCents
			insufficient = true
			return nil
		}

		owner.BalanceCents -= ad.PriceCents
		if err := tx.Model(&owner).UpdateColumn("balance_cents", owner.BalanceCents).Error; err != nil {
			return err
		}
		entry := models.Transaction{
			UserID:      owner.ID,
			AmountCents: -ad.PriceCents,
			Type:        domain.TxTypeAdCharge,
			Description: fmt.Sprintf("Click charge for ad #%d %q", ad.ID, ad.Title),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Model(&ad).UpdateColumn("clicks", gorm.Expr("clicks + 1")).Error; err != nil {
			return err
		}
		ad.Clicks++
		out.Ad = &ad
		out.Billed = true
		out.OwnerID = owner.ID
		out.OwnerBalance = owner.BalanceCents

		// Risk sweep: one click can depress the budget below the per-click
		// price of the owner's other campaigns; pause those now rather than
		// letting their next click bounce.
		res := tx.Model(&models.Ad{}).
			Where("user_id = ? AND id <> ? AND status = ? AND price_cents > ?",
				owner.ID, ad.ID, domain.AdStatusActive, owner.BalanceCents).
			Update("status", domain.AdStatusPaused)
		if res.Error != nil {
			return res.Error
		}
		out.PausedOthers = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}
	if insufficient {
		return &out, domain.ErrInsufficientFunds
	}
	return &out, nil
}

// ToggleActivation sets an ad's status on behalf of its owner or an admin.
// Pausing always succeeds. Activating re-checks solvency: when the owner's
// balance is below the ad's price the ad stays Paused and the result reports
// the override instead of failing.
func (s *BillingService) ToggleActivation(adID, actorID uint, isAdmin, desiredActive bool) (*AdResult, error) {
	var out AdResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ad models.Ad
		if err := tx.First(&ad, adID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAdNotFound
			}
			return err
		}
		if !isAdmin && (ad.UserID == nil || *ad.UserID != actorID) {
			return domain.ErrForbidden
		}
		target := domain.AdStatusPaused
		if desiredActive {
			target = domain.AdStatusActive
			if ad.UserID != nil {
				var owner models.User
				if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, *ad.UserID).Error; err != nil {
					return err
				}
				if owner.BalanceCents < ad.PriceCents {
					target = domain.AdStatusPaused
					out.OverrideReason = domain.OverrideInsufficientFunds
				}
			}
		}
		if err := tx.Model(&ad).Update("status", target).Error; err != nil {
			return err
		}
		ad.Status = target
		out.Ad = &ad
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdInput carries the caller-editable ad fields. Nil pointers on update mean
// "leave unchanged".
type AdInput struct {
	Title       string
	Description string
	ImageURLs   []string
	VideoURLs   []string
	TargetURL   string
	PriceCents  int64
	Category    string
	IsAnonymous bool
	Status      string // optional; empty defaults to Active on create
}

// CreateAd persists a new ad for owner. The intended status (Active unless
// the input says otherwise) passes the solvency gate: an owner who cannot
// afford one click gets the ad in Paused with the override reported.
func (s *BillingService) CreateAd(owner *models.User, in AdInput) (*AdResult, error) {
	if in.PriceCents < 0 {
		return nil, domain.ErrInvalidAmount
	}
	status := in.Status
	if status == "" {
		status = domain.AdStatusActive
	}
	if !domain.ValidAdStatus(status) {
		status = domain.AdStatusActive
	}
	author := owner.Username
	if in.IsAnonymous {
		author = domain.AnonymousAuthor
	}
	category := in.Category
	if category == "" {
		category = domain.DefaultCategory
	}

	var out AdResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if status == domain.AdStatusActive {
			var locked models.User
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, owner.ID).Error; err != nil {
				return err
			}
			if locked.BalanceCents < in.PriceCents {
				status = domain.AdStatusPaused
				out.OverrideReason = domain.OverrideInsufficientFunds
			}
		}
		ownerID := owner.ID
		ad := models.Ad{
			Title:       in.Title,
			Description: in.Description,
			Author:      author,
			ImageURLs:   models.EncodeURLList(in.ImageURLs),
			VideoURLs:   models.EncodeURLList(in.VideoURLs),
			TargetURL:   in.TargetURL,
			PriceCents:  in.PriceCents,
			Category:    category,
			Status:      status,
			IsAnonymous: in.IsAnonymous,
			UserID:      &ownerID,
		}
		if err := tx.Create(&ad).Error; err != nil {
			return err
		}
		out.Ad = &ad
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdUpdate lists the fields an update may change; nil means keep.
type AdUpdate struct {
	Title       *string
	Description *string
	ImageURLs   []string
	VideoURLs   []string
	TargetURL   *string
	PriceCents  *int64
	Category    *string
	IsAnonymous *bool
	Status      *string
}

// UpdateAd applies an owner/admin edit. When the edit changes the price or
// asks for Active, the solvency gate runs against the then-current balance.
func (s *BillingService) UpdateAd(adID, actorID uint, isAdmin bool, in AdUpdate) (*AdResult, error) {
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return nil, domain.ErrInvalidAmount
	}
	var out AdResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ad models.Ad
		if err := tx.Preload("User").First(&ad, adID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAdNotFound
			}
			return err
		}
		if !isAdmin && (ad.UserID == nil || *ad.UserID != actorID) {
			return domain.ErrForbidden
		}

		if in.Title != nil {
			ad.Title = *in.Title
		}
		if in.Description != nil {
			ad.Description = *in.Description
		}
		if in.TargetURL != nil {
			ad.TargetURL = *in.TargetURL
		}
		if in.Category != nil {
			ad.Category = *in.Category
		}
		if in.ImageURLs != nil {
			ad.ImageURLs = models.EncodeURLList(in.ImageURLs)
		}
		if in.VideoURLs != nil {
			ad.VideoURLs = models.EncodeURLList(in.VideoURLs)
		}
		if in.IsAnonymous != nil {
			ad.IsAnonymous = *in.IsAnonymous
			if *in.IsAnonymous {
				ad.Author = domain.AnonymousAuthor
			} else if ad.User != nil {
				ad.Author = ad.User.Username
			}
		}

		priceChanged := in.PriceCents != nil && *in.PriceCents != ad.PriceCents
		if in.PriceCents != nil {
			ad.PriceCents = *in.PriceCents
		}
		wantsActive := in.Status != nil && *in.Status == domain.AdStatusActive
		if in.Status != nil && domain.ValidAdStatus(*in.Status) {
			ad.Status = *in.Status
		}

		// Re-gate when the charge could now exceed the owner's budget:
		// either the price moved under an Active ad, or Active was requested.
		mustGate := ad.Status == domain.AdStatusActive && (priceChanged || wantsActive)
		if mustGate && ad.UserID != nil {
			var owner models.User
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, *ad.UserID).Error; err != nil {
				return err
			}
			if owner.BalanceCents < ad.PriceCents {
				ad.Status = domain.AdStatusPaused
				out.OverrideReason = domain.OverrideInsufficientFunds
			}
		}
		if err := tx.Save(&ad).Error; err != nil {
			return err
		}
		out.Ad = &ad
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TopUp credits a user's own balance and appends the ledger entry. It never
// reactivates paused ads; activation is a separate explicit action.
func (s *BillingService) TopUp(userID uint, amountCents int64) (*models.User, error) {
	return s.credit(userID, amountCents, domain.TxTypeTopUp, "Balance top-up")
}

// AdminCredit lets an admin credit an arbitrary user.
func (s *BillingService) AdminCredit(userID uint, amountCents int64, adminUsername string) (*models.User, error) {
	desc := fmt.Sprintf("Credit by admin %s", adminUsername)
	return s.credit(userID, amountCents, domain.TxTypeAdminCredit, desc)
}

func (s *BillingService) credit(userID uint, amountCents int64, txType, description string) (*models.User, error) {
	if amountCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if amountCents < s.cfg.MinTopUpCents && txType == domain.TxTypeTopUp {
		return nil, domain.ErrInvalidAmount
	}
	var user models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		user.BalanceCents += amountCents
		if err := tx.Model(&user).UpdateColumn("balance_cents", user.BalanceCents).Error; err != nil {
			return err
		}
		return tx.Create(&models.Transaction{
			UserID:      userID,
			AmountCents: amountCents,
			Type:        txType,
			Description: description,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GrantSignupBonus seeds a new account's promotional credit inside the
// caller's transaction (registration creates the user and the bonus
// atomically).
func (s *BillingService) GrantSignupBonus(tx *gorm.DB, user *models.User) error {
	if s.cfg.SignupBonusCents <= 0 {
		return nil
	}
	user.BalanceCents += s.cfg.SignupBonusCents
	if err := tx.Model(user).UpdateColumn("balance_cents", user.BalanceCents).Error; err != nil {
		return err
	}
	return tx.Create(&models.Transaction{
		UserID:      user.ID,
		AmountCents: s.cfg.SignupBonusCents,
		Type:        domain.TxTypeSignupBonus,
		Description: "Promotional signup credit",
	}).Error
}
