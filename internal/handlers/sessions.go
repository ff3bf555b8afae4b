package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kamistore/backend/internal/logging"
	"github.com/kamistore/backend/internal/service/session"
)

type SessionHandler struct {
	Sessions *session.Service
}

func (h *SessionHandler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list_sessions")

	user, token, err := currentUser(c, h.Sessions)
	if err != nil {
		return err
	}

	sessions, err := h.Sessions.List(ctx, user.ID)
	if err != nil {
		l.Error("list_sessions_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	out := make([]echo.Map, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, echo.Map{
			"id":         s.ID,
			"created_at": s.CreatedAt,
			"expires_at": s.ExpiresAt,
			"current":    s.Token == token,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

// RevokeOtherSessions logs out every session of the user except the one
// making the request.
func (h *SessionHandler) RevokeOtherSessions(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "revoke_sessions")

	user, token, err := currentUser(c, h.Sessions)
	if err != nil {
		return err
	}

	if err := h.Sessions.DeleteOthers(ctx, user.ID, token); err != nil {
		l.Error("revoke_sessions_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "all other sessions logged out"})
}
