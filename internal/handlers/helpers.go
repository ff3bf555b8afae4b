package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kamistore/backend/internal/events"
	"github.com/kamistore/backend/internal/logging"
	"github.com/kamistore/backend/internal/models"
	"github.com/kamistore/backend/internal/service/session"
)

func CreateCookie(name, value, path string, expTime time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		MaxAge:   int(time.Until(expTime).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// currentUser re-derives the authenticated user from the request, the way
// every protected endpoint does independently. A missing token and an
// invalid or expired one are reported separately.
func currentUser(c echo.Context, s *session.Service) (*models.User, string, error) {
	token, ok := session.TokenFromRequest(c)
	if !ok {
		return nil, "", echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	user, err := s.GetUser(c.Request().Context(), token)
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("session_lookup_failed", "error", err)
		return nil, "", echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	if user == nil {
		return nil, "", echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
	}
	return user, token, nil
}

func userPayload(u *models.User) echo.Map {
	return echo.Map{
		"id":             u.ID,
		"username":       u.Username,
		"email":          u.Email,
		"email_verified": u.EmailVerifiedAt != nil,
	}
}

// publish fires a domain event; failures are logged and never fail the
// request.
func publish(c echo.Context, p *events.Producer, topic, key string, event map[string]interface{}) {
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_failed", "topic", topic, "error", err)
	}
}
