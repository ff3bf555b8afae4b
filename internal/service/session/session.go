package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kamistore/backend/internal/models"
)

// TTL is the fixed lifetime of a session token.
const TTL = 7 * 24 * time.Hour

const CookieName = "session"

type Service struct {
	DB *gorm.DB
}

// Create issues an opaque token for the user and persists it with a 7-day
// expiry.
func (s *Service) Create(ctx context.Context, userID uint) (string, error) {
	token := uuid.NewString()
	sess := models.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(TTL),
	}
	if err := s.DB.WithContext(ctx).Create(&sess).Error; err != nil {
		return "", err
	}
	return token, nil
}

// GetUser resolves a token to its owning user. An expired or unknown token
// yields (nil, nil): expired sessions are treated as absent, not purged.
func (s *Service) GetUser(ctx context.Context, token string) (*models.User, error) {
	var sess models.Session
	err := s.DB.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, time.Now()).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, sess.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) Delete(ctx context.Context, token string) error {
	return s.DB.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error
}

func (s *Service) DeleteUserSessions(ctx context.Context, userID uint) error {
	return s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{}).Error
}

// DeleteOthers revokes every session of the user except the one holding
// keepToken.
func (s *Service) DeleteOthers(ctx context.Context, userID uint, keepToken string) error {
	return s.DB.WithContext(ctx).
		Where("user_id = ? AND token != ?", userID, keepToken).
		Delete(&models.Session{}).Error
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.Session, error) {
	var sessions []models.Session
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// TokenFromRequest reads the session token from the Authorization header
// (either "Bearer <token>" or the bare token, for the browser extension) and
// falls back to the session cookie. ok reports whether any token was present;
// it says nothing about validity.
func TokenFromRequest(c echo.Context) (token string, ok bool) {
	if h := c.Request().Header.Get("Authorization"); h != "" {
		token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		return token, token != ""
	}

	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
