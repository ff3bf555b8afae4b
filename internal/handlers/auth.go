package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kamistore/backend/internal/events"
	"github.com/kamistore/backend/internal/hash"
	"github.com/kamistore/backend/internal/logging"
	"github.com/kamistore/backend/internal/mail"
	"github.com/kamistore/backend/internal/models"
	"github.com/kamistore/backend/internal/sanitize"
	"github.com/kamistore/backend/internal/service/otp"
	"github.com/kamistore/backend/internal/service/session"
)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *session.Service
	OTP      *otp.Service
	Mailer   *mail.Mailer
	Producer *events.Producer
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username, email, and password are required")
	}

	username := sanitize.Username(req.Username)
	email := sanitize.Email(req.Email)

	if !sanitize.ValidEmail(email) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email format")
	}
	if len([]rune(username)) < sanitize.MinUsernameLen {
		return echo.NewHTTPError(http.StatusBadRequest, "username must be at least 2 characters")
	}
	if err := sanitize.ValidatePassword(req.Password); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var existing models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	if err := h.DB.WithContext(ctx).Where("username = ?", username).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "username already taken")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		// The unique constraints close the race the pre-checks leave open.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusBadRequest, "email or username already registered")
		}
		l.Error("register_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	token, err := h.OTP.CreateEmailVerification(ctx, user.ID)
	if err != nil {
		l.Error("verification_token_failed", "error", err)
	} else if err := h.Mailer.SendVerificationEmail(user.Email, token); err != nil {
		l.Error("verification_email_failed", "error", err)
	}

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	l.Info("register_successful", "user_id", user.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user created successfully, please verify your email",
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		EmailOrUsername string `json:"emailOrUsername"`
		Password        string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.EmailOrUsername == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email/username and password are required")
	}

	input := strings.ToLower(strings.TrimSpace(req.EmailOrUsername))

	// Unknown identifier and wrong password get the same response so
	// accounts cannot be enumerated.
	var user models.User
	err := h.DB.WithContext(ctx).
		Where("email = ? OR username = ?", input, input).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if err != nil {
		l.Error("login_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	token, err := h.Sessions.Create(ctx, user.ID)
	if err != nil {
		l.Error("login_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	c.SetCookie(CreateCookie(session.CookieName, token, "/", time.Now().Add(session.TTL)))

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	l.Info("login_successful", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"user": userPayload(&user)})
}

// Logout is idempotent: a missing or unknown session is not an error, the
// cookie is cleared either way.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if token, ok := session.TokenFromRequest(c); ok {
		if err := h.Sessions.Delete(ctx, token); err != nil {
			l.Error("logout_failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	c.SetCookie(DeleteCookie(session.CookieName, "/"))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

func (h *AuthHandler) CurrentUser(c echo.Context) error {
	user, _, err := currentUser(c, h.Sessions)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": userPayload(user)})
}

// ExtensionUser never returns 401: the browser extension expects a 200 with
// user null when nobody is signed in.
func (h *AuthHandler) ExtensionUser(c echo.Context) error {
	ctx := c.Request().Context()

	var payload interface{}
	if token, ok := session.TokenFromRequest(c); ok {
		user, err := h.Sessions.GetUser(ctx, token)
		if err != nil {
			logging.FromContext(ctx).Error("session_lookup_failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
		if user != nil {
			payload = userPayload(user)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"isKamiApiSuccessfulResponse": true,
		"user":                        payload,
	})
}

func (h *AuthHandler) CheckUsername(c echo.Context) error {
	ctx := c.Request().Context()

	username := c.QueryParam("username")
	if username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}

	username = sanitize.Username(username)
	if !sanitize.ValidUsername(username) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid username format")
	}

	var user models.User
	err := h.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.FromContext(ctx).Error("check_username_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"available": errors.Is(err, gorm.ErrRecordNotFound),
	})
}
