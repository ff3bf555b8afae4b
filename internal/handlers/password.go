package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kamistore/backend/internal/logging"
	"github.com/kamistore/backend/internal/sanitize"
	"github.com/kamistore/backend/internal/service/otp"
)

type OTPHandler struct {
	OTP *otp.Service
}

// SendOTP issues a purpose-scoped OTP. The response is the same whether or
// not the email is registered.
func (h *OTPHandler) SendOTP(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "send_otp")

	var req struct {
		Email   string `json:"email"`
		Purpose string `json:"purpose"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Purpose == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and purpose are required")
	}

	if err := h.OTP.Issue(ctx, req.Email, req.Purpose); err != nil {
		l.Error("send_otp_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "If an account exists, an OTP has been sent",
	})
}

func (h *OTPHandler) VerifyOTP(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "verify_otp")

	var req struct {
		Email   string `json:"email"`
		OTP     string `json:"otp"`
		Purpose string `json:"purpose"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.OTP == "" || req.Purpose == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email, OTP, and purpose are required")
	}

	err := h.OTP.Verify(ctx, req.Email, req.OTP, req.Purpose)
	var invalidCode *otp.InvalidCodeError
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"message": "OTP verified successfully"})
	case errors.Is(err, otp.ErrInvalidOTP),
		errors.Is(err, otp.ErrOTPNotFound),
		errors.Is(err, otp.ErrTooManyAttempts),
		errors.As(err, &invalidCode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		l.Error("verify_otp_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// ForgotPassword starts the reset flow; enumeration-safe like SendOTP.
func (h *OTPHandler) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "forgot_password")

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	if err := h.OTP.CreatePasswordReset(ctx, req.Email); err != nil {
		l.Error("forgot_password_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "If an account exists, a reset code has been sent",
	})
}

func (h *OTPHandler) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reset_password")

	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Token == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token and password are required")
	}
	if err := sanitize.ValidatePassword(req.Password); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err := h.OTP.ResetPassword(ctx, req.Token, req.Password)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"message": "password reset successfully"})
	case errors.Is(err, otp.ErrInvalidToken), errors.Is(err, otp.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		l.Error("reset_password_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func (h *OTPHandler) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "verify_email")

	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}

	err := h.OTP.VerifyEmail(ctx, req.Token)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"message": "email verified successfully"})
	case errors.Is(err, otp.ErrInvalidToken), errors.Is(err, otp.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		l.Error("verify_email_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
