package otp

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kamistore/backend/internal/config"
	"github.com/kamistore/backend/internal/hash"
	"github.com/kamistore/backend/internal/mail"
	"github.com/kamistore/backend/internal/models"
)

func newService(t *testing.T) (*Service, *models.User) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.OTP{}, &models.PasswordReset{}, &models.EmailVerification{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	pwHash, err := hash.HashPassword("passw0rd!")
	require.NoError(t, err)
	user := &models.User{Username: "otp_user", Email: "otp@example.com", PasswordHash: pwHash}
	require.NoError(t, db.Create(user).Error)

	mailer := mail.New(&config.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &Service{DB: db, Mailer: mailer}, user
}

func seed(t *testing.T, svc *Service, userID uint, code, purpose string, expiresAt time.Time, attempts int, usedAt *time.Time) *models.OTP {
	salt, err := newSalt()
	require.NoError(t, err)

	record := &models.OTP{
		UserID:    userID,
		OTPHash:   hashCode(code, salt),
		OTPSalt:   salt,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		Attempts:  attempts,
		UsedAt:    usedAt,
	}
	require.NoError(t, svc.DB.Create(record).Error)
	return record
}

func TestGenerateCode(t *testing.T) {
	codeRe := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 32; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Regexp(t, codeRe, code)
	}
}

func TestIssueReplacesUnusedAndKeepsUsed(t *testing.T) {
	svc, user := newService(t)

	unused := seed(t, svc, user.ID, "111111", models.PurposePasswordReset, time.Now().Add(10*time.Minute), 0, nil)
	usedTime := time.Now()
	used := seed(t, svc, user.ID, "222222", models.PurposePasswordReset, time.Now().Add(10*time.Minute), 0, &usedTime)
	otherPurpose := seed(t, svc, user.ID, "333333", models.PurposeEmailVerification, time.Now().Add(10*time.Minute), 0, nil)

	require.NoError(t, svc.Issue(context.Background(), "otp@example.com", models.PurposePasswordReset))

	var gone models.OTP
	err := svc.DB.First(&gone, unused.ID).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Used records and other purposes survive.
	var keptUsed, keptOther models.OTP
	require.NoError(t, svc.DB.First(&keptUsed, used.ID).Error)
	require.NoError(t, svc.DB.First(&keptOther, otherPurpose.ID).Error)

	var live int64
	svc.DB.Model(&models.OTP{}).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL", user.ID, models.PurposePasswordReset).
		Count(&live)
	require.EqualValues(t, 1, live)
}

func TestIssueUnknownEmailIsSilent(t *testing.T) {
	svc, _ := newService(t)

	require.NoError(t, svc.Issue(context.Background(), "ghost@example.com", models.PurposePasswordReset))

	var count int64
	svc.DB.Model(&models.OTP{}).Count(&count)
	require.Zero(t, count)
}

func TestVerifySingleUse(t *testing.T) {
	svc, user := newService(t)
	seed(t, svc, user.ID, "123456", models.PurposePasswordReset, time.Now().Add(10*time.Minute), 0, nil)

	require.NoError(t, svc.Verify(context.Background(), "otp@example.com", "123456", models.PurposePasswordReset))

	// Once used_at is set the same code can never verify again.
	err := svc.Verify(context.Background(), "otp@example.com", "123456", models.PurposePasswordReset)
	require.ErrorIs(t, err, ErrOTPNotFound)
}

func TestVerifyAttemptLimit(t *testing.T) {
	svc, user := newService(t)
	record := seed(t, svc, user.ID, "123456", models.PurposePasswordReset, time.Now().Add(10*time.Minute), 0, nil)

	for i := 0; i < MaxAttempts; i++ {
		err := svc.Verify(context.Background(), "otp@example.com", "000000", models.PurposePasswordReset)
		var invalid *InvalidCodeError
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, MaxAttempts-i-1, invalid.Remaining)
	}

	err := svc.Verify(context.Background(), "otp@example.com", "123456", models.PurposePasswordReset)
	require.ErrorIs(t, err, ErrTooManyAttempts)

	var stored models.OTP
	require.NoError(t, svc.DB.First(&stored, record.ID).Error)
	require.Equal(t, MaxAttempts, stored.Attempts)
	require.Nil(t, stored.UsedAt)
}

func TestVerifyPicksNewestRecord(t *testing.T) {
	svc, user := newService(t)
	older := seed(t, svc, user.ID, "111111", models.PurposePasswordReset, time.Now().Add(10*time.Minute), 0, nil)
	require.NoError(t, svc.DB.Model(&models.OTP{}).
		Where("id = ?", older.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	seed(t, svc, user.ID, "222222", models.PurposePasswordReset, time.Now().Add(10*time.Minute), 0, nil)

	err := svc.Verify(context.Background(), "otp@example.com", "111111", models.PurposePasswordReset)
	var invalid *InvalidCodeError
	require.ErrorAs(t, err, &invalid)

	require.NoError(t, svc.Verify(context.Background(), "otp@example.com", "222222", models.PurposePasswordReset))
}

func TestVerifyUnknownUser(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Verify(context.Background(), "ghost@example.com", "123456", models.PurposePasswordReset)
	require.ErrorIs(t, err, ErrInvalidOTP)
}

func TestCreatePasswordResetKeepsOneLive(t *testing.T) {
	svc, user := newService(t)

	require.NoError(t, svc.CreatePasswordReset(context.Background(), "otp@example.com"))
	require.NoError(t, svc.CreatePasswordReset(context.Background(), "otp@example.com"))

	var count int64
	svc.DB.Model(&models.PasswordReset{}).Where("user_id = ?", user.ID).Count(&count)
	require.EqualValues(t, 1, count)

	require.NoError(t, svc.CreatePasswordReset(context.Background(), "ghost@example.com"))
	svc.DB.Model(&models.PasswordReset{}).Count(&count)
	require.EqualValues(t, 1, count)
}

func TestResetPasswordConsumesToken(t *testing.T) {
	svc, user := newService(t)
	reset := models.PasswordReset{UserID: user.ID, Token: "654321", ExpiresAt: time.Now().Add(10 * time.Minute)}
	require.NoError(t, svc.DB.Create(&reset).Error)

	require.NoError(t, svc.ResetPassword(context.Background(), "654321", "newPassw0rd!"))

	var updated models.User
	require.NoError(t, svc.DB.First(&updated, user.ID).Error)
	require.True(t, hash.CheckPassword(updated.PasswordHash, "newPassw0rd!"))

	err := svc.ResetPassword(context.Background(), "654321", "anotherPw1!")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetPasswordExpired(t *testing.T) {
	svc, user := newService(t)
	reset := models.PasswordReset{UserID: user.ID, Token: "654321", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, svc.DB.Create(&reset).Error)

	err := svc.ResetPassword(context.Background(), "654321", "newPassw0rd!")
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestEmailVerificationRoundtrip(t *testing.T) {
	svc, user := newService(t)

	token, err := svc.CreateEmailVerification(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.VerifyEmail(context.Background(), token))

	var updated models.User
	require.NoError(t, svc.DB.First(&updated, user.ID).Error)
	require.NotNil(t, updated.EmailVerifiedAt)

	// Consumed by deletion.
	require.ErrorIs(t, svc.VerifyEmail(context.Background(), token), ErrInvalidToken)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	svc, user := newService(t)

	record := models.EmailVerification{UserID: user.ID, Token: "tok", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, svc.DB.Create(&record).Error)

	require.ErrorIs(t, svc.VerifyEmail(context.Background(), "tok"), ErrTokenExpired)

	var updated models.User
	require.NoError(t, svc.DB.First(&updated, user.ID).Error)
	require.Nil(t, updated.EmailVerifiedAt)
}
