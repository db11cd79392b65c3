package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/twofactor"
	"gorm.io/gorm"
)

// UserStore implements twofactor.UserStore
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a user store on db
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func userErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return twofactor.ErrUserNotFound
	}
	return err
}

func (s *UserStore) ByLogin(ctx context.Context, login string) (*models.UserAuth, error) {
	var u models.UserAuth
	err := s.db.WithContext(ctx).Preload("Company").Where("login = ?", login).First(&u).Error
	if err != nil {
		return nil, userErr(err)
	}
	return &u, nil
}

func (s *UserStore) ByID(ctx context.Context, id string) (*models.UserAuth, error) {
	var u models.UserAuth
	err := s.db.WithContext(ctx).Preload("Company").Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, userErr(err)
	}
	return &u, nil
}

func (s *UserStore) ByIDs(ctx context.Context, ids []string) ([]models.UserAuth, error) {
	if len(ids) == 0 {
		return []models.UserAuth{}, nil
	}
	var users []models.UserAuth
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("login").Find(&users).Error; err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return nil, fmt.Errorf("user %s: %w", id, twofactor.ErrUserNotFound)
		}
	}
	return users, nil
}

func (s *UserStore) SaveTwoFactor(ctx context.Context, u *models.UserAuth) error {
	return s.db.WithContext(ctx).Model(&models.UserAuth{}).Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"enable_2fa":      u.Enable2FA,
			"secret_code_2fa": u.SecretCode2FA,
			"qr_image_2fa":    u.QRImage2FA,
		}).Error
}

func (s *UserStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.UserAuth{}).Where("id = ?", id).
		Update("last_login", at).Error
}

// EnsureAdmin creates the initial administrator when no user exists yet
func (s *UserStore) EnsureAdmin(ctx context.Context, login, passwordHash string) (bool, error) {
	var count int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.UserAuth{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	admin := models.UserAuth{
		ID:       uuid.NewString(),
		Login:    login,
		Email:    login,
		Password: passwordHash,
		Name:     "Administrator",
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}

// List returns all users ordered by login
func (s *UserStore) List(ctx context.Context) ([]models.UserAuth, error) {
	var users []models.UserAuth
	err := s.db.WithContext(ctx).Order("login").Find(&users).Error
	return users, err
}
