package otp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kamistore/backend/internal/hash"
	"github.com/kamistore/backend/internal/logging"
	"github.com/kamistore/backend/internal/mail"
	"github.com/kamistore/backend/internal/models"
	"github.com/kamistore/backend/internal/sanitize"
)

const (
	// MaxAttempts is the hard cap on failed verifications per OTP record.
	// Once reached the record is dead even for a correct code.
	MaxAttempts = 5

	otpTTL          = 10 * time.Minute
	resetTTL        = 10 * time.Minute
	verificationTTL = 24 * time.Hour
)

var (
	ErrInvalidOTP      = errors.New("invalid OTP")
	ErrOTPNotFound     = errors.New("OTP not found or expired")
	ErrTooManyAttempts = errors.New("too many attempts, please request a new OTP")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token has expired")
)

// InvalidCodeError is returned on a code mismatch and carries how many
// attempts the caller has left on this record.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid OTP, %d attempts remaining", e.Remaining)
}

type Service struct {
	DB     *gorm.DB
	Mailer *mail.Mailer
}

// GenerateCode returns a cryptographically random 6-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func newSalt() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashCode(code, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue generates and stores a fresh OTP for (user, purpose) and emails the
// code. An unknown email is a silent success so the response never reveals
// whether the account exists. Any prior unused OTP for the same purpose is
// discarded.
func (s *Service) Issue(ctx context.Context, email, purpose string) error {
	l := logging.FromContext(ctx).With("svc", "otp.issue")

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", sanitize.Email(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	code, err := GenerateCode()
	if err != nil {
		return err
	}
	salt, err := newSalt()
	if err != nil {
		return err
	}

	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL", user.ID, purpose).
		Delete(&models.OTP{}).Error; err != nil {
		return err
	}

	record := models.OTP{
		UserID:    user.ID,
		OTPHash:   hashCode(code, salt),
		OTPSalt:   salt,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(otpTTL),
	}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}

	if err := s.Mailer.SendOTPEmail(user.Email, code, purpose); err != nil {
		l.Error("otp_email_failed", "error", err)
	}
	return nil
}

// Verify checks a code against the newest unused, unexpired OTP for
// (user, purpose). A match marks the record used; a mismatch burns an
// attempt. It only attests the code, it issues nothing.
func (s *Service) Verify(ctx context.Context, email, code, purpose string) error {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", sanitize.Email(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}

	var record models.OTP
	err = s.DB.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?",
			user.ID, purpose, time.Now()).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOTPNotFound
	}
	if err != nil {
		return err
	}

	if record.Attempts >= MaxAttempts {
		return ErrTooManyAttempts
	}

	if !hmac.Equal([]byte(hashCode(code, record.OTPSalt)), []byte(record.OTPHash)) {
		if err := s.DB.WithContext(ctx).Model(&record).
			Update("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
			return err
		}
		return &InvalidCodeError{Remaining: MaxAttempts - record.Attempts - 1}
	}

	return s.DB.WithContext(ctx).Model(&record).Update("used_at", time.Now()).Error
}

// CreatePasswordReset stores a single-use 6-digit reset code with a 10-minute
// expiry and emails it. Enumeration-safe like Issue; at most one live reset
// per user.
func (s *Service) CreatePasswordReset(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "otp.password_reset")

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", sanitize.Email(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	code, err := GenerateCode()
	if err != nil {
		return err
	}

	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Delete(&models.PasswordReset{}).Error; err != nil {
		return err
	}

	reset := models.PasswordReset{
		UserID:    user.ID,
		Token:     code,
		ExpiresAt: time.Now().Add(resetTTL),
	}
	if err := s.DB.WithContext(ctx).Create(&reset).Error; err != nil {
		return err
	}

	if err := s.Mailer.SendOTPEmail(user.Email, code, models.PurposePasswordReset); err != nil {
		l.Error("reset_email_failed", "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token: single use is enforced by deleting
// the record, not by a used flag.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	var reset models.PasswordReset
	err := s.DB.WithContext(ctx).Where("token = ?", token).First(&reset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	if time.Now().After(reset.ExpiresAt) {
		return ErrTokenExpired
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return err
	}

	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", reset.UserID).
		Update("password_hash", pwHash).Error; err != nil {
		return err
	}

	return s.DB.WithContext(ctx).
		Where("user_id = ?", reset.UserID).
		Delete(&models.PasswordReset{}).Error
}

// CreateEmailVerification issues a 24-hour verification token for the user
// and returns it for mailing.
func (s *Service) CreateEmailVerification(ctx context.Context, userID uint) (string, error) {
	token := uuid.NewString()
	record := models.EmailVerification{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(verificationTTL),
	}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return "", err
	}
	return token, nil
}

// VerifyEmail consumes a verification token and stamps the user's
// email_verified_at.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	var record models.EmailVerification
	err := s.DB.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	if time.Now().After(record.ExpiresAt) {
		return ErrTokenExpired
	}

	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", record.UserID).
		Update("email_verified_at", time.Now()).Error; err != nil {
		return err
	}

	return s.DB.WithContext(ctx).
		Where("user_id = ?", record.UserID).
		Delete(&models.EmailVerification{}).Error
}
