package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/kamistore/backend/internal/handlers"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	OTPHandler     *handlers.OTPHandler
	OrderHandler   *handlers.OrderHandler
	SessionHandler *handlers.SessionHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	v1.POST("/register-user", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.Logout)
	v1.GET("/get-current-user", d.AuthHandler.CurrentUser)
	v1.GET("/check-username", d.AuthHandler.CheckUsername)

	// The extension calls cross-origin with an Authorization header, so this
	// route alone is CORS-enabled.
	ext := v1.Group("", middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	ext.GET("/browser-extension-user", d.AuthHandler.ExtensionUser)

	v1.POST("/forgot-password", d.OTPHandler.ForgotPassword)
	v1.POST("/send-otp", d.OTPHandler.SendOTP)
	v1.POST("/verify-otp", d.OTPHandler.VerifyOTP)
	v1.POST("/reset-password", d.OTPHandler.ResetPassword)
	v1.POST("/verify-email", d.OTPHandler.VerifyEmail)

	v1.POST("/create-order", d.OrderHandler.CreateOrder)
	v1.GET("/get-order", d.OrderHandler.GetOrder)
	v1.GET("/get-user-orders", d.OrderHandler.ListOrders)
	v1.PUT("/update-order", d.OrderHandler.UpdateOrder)
	v1.PATCH("/update-order", d.OrderHandler.UpdateOrder)
	v1.DELETE("/delete-order", d.OrderHandler.DeleteOrder)

	v1.GET("/user-sessions", d.SessionHandler.ListSessions)
	v1.DELETE("/user-sessions", d.SessionHandler.RevokeOtherSessions)
}
