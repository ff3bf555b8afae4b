package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kamistore/backend/internal/config"
	"github.com/kamistore/backend/internal/hash"
	"github.com/kamistore/backend/internal/mail"
	"github.com/kamistore/backend/internal/models"
	"github.com/kamistore/backend/internal/service/order"
	"github.com/kamistore/backend/internal/service/otp"
	"github.com/kamistore/backend/internal/service/session"
)

type testEnv struct {
	T        *testing.T
	E        *echo.Echo
	DB       *gorm.DB
	A        *AuthHandler
	O        *OrderHandler
	P        *OTPHandler
	S        *SessionHandler
	Sessions *session.Service
	OTPSvc   *otp.Service
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailer := mail.New(&config.Config{}, logger)
	sessions := &session.Service{DB: db}
	otpSvc := &otp.Service{DB: db, Mailer: mailer}
	orders := &order.Service{DB: db}

	return &testEnv{
		T:        t,
		E:        echo.New(),
		DB:       db,
		A:        &AuthHandler{DB: db, Sessions: sessions, OTP: otpSvc, Mailer: mailer},
		O:        &OrderHandler{Orders: orders, Sessions: sessions},
		P:        &OTPHandler{OTP: otpSvc},
		S:        &SessionHandler{Sessions: sessions},
		Sessions: sessions,
		OTPSvc:   otpSvc,
	}
}

func (env *testEnv) doJSONRequest(method, target string, payload interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, *http.Request, echo.Context) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(env.T, err)
		body = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, req, c
}

// createUser inserts a user directly, bypassing the register endpoint.
func (env *testEnv) createUser(username, email, password string) *models.User {
	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)

	user := &models.User{Username: username, Email: email, PasswordHash: pwHash}
	require.NoError(env.T, env.DB.Create(user).Error)
	return user
}

// startSession issues a session for the user and returns its cookie.
func (env *testEnv) startSession(userID uint) *http.Cookie {
	token, err := env.Sessions.Create(context.Background(), userID)
	require.NoError(env.T, err)
	return &http.Cookie{Name: session.CookieName, Value: token}
}

// expireSessions pushes every session of the user into the past.
func (env *testEnv) expireSessions(userID uint) {
	require.NoError(env.T, env.DB.Model(&models.Session{}).
		Where("user_id = ?", userID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)
}

func httpError(t *testing.T, err error) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	return he
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
