package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"adwall/config"
	"adwall/internal/auth"
	"adwall/internal/domain"
	"adwall/internal/models"
	"adwall/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameExists = errors.New("username already taken")
	ErrInvalidCreds   = errors.New("invalid username or password")
)

type AuthService struct {
	cfg        *config.Config
	db         *gorm.DB
	userRepo   *repository.UserRepository
	billingSvc *BillingService
}

func NewAuthService(cfg *config.Config, db *gorm.DB, userRepo *repository.UserRepository, billingSvc *BillingService) *AuthService {
	return &AuthService{cfg: cfg, db: db, userRepo: userRepo, billingSvc: billingSvc}
}

// Register creates an account and grants the promotional signup credit in
// one transaction, so a user row never exists without its ledger entry.
// Registering as "admin" yields the admin role, matching the seeded account.
func (s *AuthService) Register(username, password string) (*models.User, string, string, error) {
	_, err := s.userRepo.GetByUsername(username)
	if err == nil {
		return nil, "", "", ErrUsernameExists
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", err
	}
	role := domain.RoleUser
	if username == "admin" {
		role = domain.RoleAdmin
	}
	u := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		return s.billingSvc.GrantSignupBonus(tx, u)
	})
	if err != nil {
		return nil, "", "", err
	}
	access, refresh, err := s.issueTokens(u)
	return u, access, refresh, err
}

func (s *AuthService) Login(username, password string) (*models.User, string, string, error) {
	u, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", "", ErrInvalidCreds
		}
		return nil, "", "", err
	}
	if u.PasswordHash == "" {
		return nil, "", "", ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCreds
	}
	access, refresh, err := s.issueTokens(u)
	return u, access, refresh, err
}

// LoginWithGoogle finds or creates an account from a verified Google
// identity. New accounts get the signup bonus like password registrations.
func (s *AuthService) LoginWithGoogle(googleID, email, name, avatarURL string) (*models.User, string, string, bool, error) {
	u, err := s.userRepo.GetByGoogleID(googleID)
	if err == nil {
		access, refresh, err := s.issueTokens(u)
		return u, access, refresh, false, err
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", "", false, err
	}
	username := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	if username == "" {
		username = fmt.Sprintf("user%d", time.Now().UnixNano()%100000)
	}
	// Usernames are unique; suffix on collision rather than failing login.
	if _, err := s.userRepo.GetByUsername(username); err == nil {
		username = fmt.Sprintf("%s_%d", username, time.Now().UnixNano()%10000)
	}
	gid := googleID
	u = &models.User{
		Username:  username,
		GoogleID:  &gid,
		Role:      domain.RoleUser,
		AvatarURL: avatarURL,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		return s.billingSvc.GrantSignupBonus(tx, u)
	})
	if err != nil {
		return nil, "", "", false, err
	}
	access, refresh, err := s.issueTokens(u)
	return u, access, refresh, true, err
}

// UpdateProfile changes the username and/or password. A password change
// requires the current password; Google-only accounts may set an initial
// password without one.
func (s *AuthService) UpdateProfile(userID uint, newUsername, currentPassword, newPassword string) (*models.User, error) {
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if newUsername != "" && newUsername != u.Username {
		if _, err := s.userRepo.GetByUsername(newUsername); err == nil {
			return nil, ErrUsernameExists
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		u.Username = newUsername
	}
	if newPassword != "" {
		if u.PasswordHash != "" {
			if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
				return nil, ErrInvalidCreds
			}
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.userRepo.Update(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) RefreshToken(refreshToken string) (string, string, error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return "", "", err
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", "", err
	}
	access, refresh, err := s.issueTokens(u)
	return access, refresh, err
}

func (s *AuthService) issueTokens(u *models.User) (string, string, error) {
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Username, u.Role)
	if err != nil {
		return "", "", err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, u.ID)
	if err != nil {
		return access, "", err
	}
	return access, refresh, nil
}
