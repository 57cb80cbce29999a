package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storybook-studio/internal/config"
	"storybook-studio/internal/infrastructure/storage/filesystem"
	"storybook-studio/internal/interfaces/http/handler"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Name = "storybook-studio"
	cfg.Observability.Metrics.Enabled = true

	dir := t.TempDir()
	books := filesystem.NewBookRepository(dir, 1)
	handlers := RouterHandlers{
		Health: handler.NewHealthHandler("test").Require("storage", books),
		Auth:   handler.NewAuthHandler(handler.AuthConfig{Passcode: "moon"}),
		Book:   handler.NewBookHandler(nil, books, filesystem.NewPageImageRepository(dir), time.Minute),
	}
	return NewWithDeps(cfg, handlers, RouterDeps{})
}

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_SystemEndpointsArePublic(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/live").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/metrics").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/login").Code)
}

func TestRouter_BooksRequireSession(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/books").Code)

	w := serve(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}
