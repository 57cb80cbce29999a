// Package handler 提供 HTTP 请求处理器
package handler

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storybook-studio/internal/interfaces/http/dto"
	"storybook-studio/internal/interfaces/http/middleware"
	"storybook-studio/pkg/logger"
	"storybook-studio/pkg/utils"
)

// grantedSession 未配置签名密钥时的会话值
const grantedSession = "granted"

// AuthConfig 口令登录配置
type AuthConfig struct {
	Passcode   string
	CookieName string
	SessionTTL time.Duration
	Secure     bool
	Signer     *utils.SessionSigner
}

// AuthHandler 口令登录处理器
type AuthHandler struct {
	cfg AuthConfig
}

// NewAuthHandler 创建登录处理器
func NewAuthHandler(cfg AuthConfig) *AuthHandler {
	if cfg.CookieName == "" {
		cfg.CookieName = middleware.DefaultSessionCookie
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 14 * 24 * time.Hour
	}
	return &AuthHandler{cfg: cfg}
}

// Login 口令登录
// @Summary 口令登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "口令"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	// 请求体无法解析时按空口令处理
	_ = c.ShouldBindJSON(&req)

	passcode := strings.TrimSpace(req.Passcode)
	if passcode == "" {
		dto.BadRequest(c, "Passcode required.")
		return
	}
	if h.cfg.Passcode != "" && passcode != h.cfg.Passcode {
		logger.Warn(c.Request.Context(), "rejected login attempt", "client_ip", c.ClientIP())
		dto.Unauthorized(c, "Incorrect passcode.")
		return
	}

	value := grantedSession
	if h.cfg.Signer != nil {
		token, err := h.cfg.Signer.Sign(h.cfg.SessionTTL)
		if err != nil {
			logger.Error(c.Request.Context(), "failed to sign session", err)
			dto.InternalError(c, "Failed to create session.")
			return
		}
		value = token
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, value, int(h.cfg.SessionTTL.Seconds()), "/", "", h.cfg.Secure, true)
	c.JSON(http.StatusOK, dto.LoginResponse{Success: true})
}

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Storybook Studio · Sign in</title>
</head>
<body>
<main>
<h1>Storybook Studio</h1>
<form id="login">
<label for="passcode">Passcode</label>
<input id="passcode" name="passcode" type="password" autocomplete="current-password" required>
<button type="submit">Enter studio</button>
<p id="error" role="alert"></p>
</form>
</main>
<script>
document.getElementById("login").addEventListener("submit", async (event) => {
  event.preventDefault();
  const passcode = document.getElementById("passcode").value;
  const res = await fetch("/api/login", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ passcode }),
  });
  if (res.ok) {
    window.location.href = {{.From}};
    return;
  }
  const body = await res.json().catch(() => ({}));
  document.getElementById("error").textContent = body.error || "Login failed.";
});
</script>
</body>
</html>
`))

// LoginPage 渲染口令登录页
func (h *AuthHandler) LoginPage(c *gin.Context) {
	from := c.Query("from")
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		from = "/"
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := loginPage.Execute(c.Writer, gin.H{"From": from}); err != nil {
		logger.Error(c.Request.Context(), "failed to render login page", err)
	}
}
