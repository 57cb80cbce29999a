package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-studio/pkg/utils"
)

func newAuthEngine(cfg AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(cfg)
	engine := gin.New()
	engine.POST("/api/login", h.Login)
	engine.GET("/login", h.LoginPage)
	return engine
}

func postLogin(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_LoginRequiresPasscode(t *testing.T) {
	engine := newAuthEngine(AuthConfig{Passcode: "moon"})

	for _, body := range []string{`{}`, `{"passcode":"   "}`, `garbage`} {
		w := postLogin(engine, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"error":"Passcode required."}`, w.Body.String())
	}
}

func TestAuthHandler_LoginRejectsWrongPasscode(t *testing.T) {
	engine := newAuthEngine(AuthConfig{Passcode: "moon"})

	w := postLogin(engine, `{"passcode":"sun"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Incorrect passcode."}`, w.Body.String())
	assert.Empty(t, w.Result().Cookies())
}

func TestAuthHandler_LoginSetsCookie(t *testing.T) {
	engine := newAuthEngine(AuthConfig{Passcode: "moon", CookieName: "studio"})

	w := postLogin(engine, `{"passcode":" moon "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "studio", c.Name)
	assert.Equal(t, "granted", c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, int((14 * 24 * time.Hour).Seconds()), c.MaxAge)
}

func TestAuthHandler_LoginWithoutConfiguredPasscode(t *testing.T) {
	engine := newAuthEngine(AuthConfig{})

	w := postLogin(engine, `{"passcode":"anything"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_LoginSignsSession(t *testing.T) {
	signer := utils.NewSessionSigner("secret", "storybook-studio")
	engine := newAuthEngine(AuthConfig{Passcode: "moon", Signer: signer})

	w := postLogin(engine, `{"passcode":"moon"}`)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	_, err := signer.Verify(cookies[0].Value)
	assert.NoError(t, err)
}

func TestAuthHandler_LoginPageSanitizesFrom(t *testing.T) {
	engine := newAuthEngine(AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/login?from=//evil.example", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "evil.example")

	req = httptest.NewRequest(http.MethodGet, "/login?from=/library", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "library")
}
