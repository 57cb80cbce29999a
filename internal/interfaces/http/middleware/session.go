package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"storybook-studio/internal/interfaces/http/dto"
	"storybook-studio/pkg/utils"
)

// DefaultSessionCookie 默认会话 cookie 名
const DefaultSessionCookie = "storybook-session"

// SessionConfig 口令会话配置
type SessionConfig struct {
	CookieName string
	// Signer 非空时 cookie 必须是有效签名令牌
	Signer *utils.SessionSigner
	// PublicPaths 无需会话即可访问的路径
	PublicPaths []string
}

func (cfg SessionConfig) cookieName() string {
	if cfg.CookieName == "" {
		return DefaultSessionCookie
	}
	return cfg.CookieName
}

// HasSession 请求是否携带有效会话
func (cfg SessionConfig) HasSession(c *gin.Context) bool {
	value, err := c.Cookie(cfg.cookieName())
	if err != nil || value == "" {
		return false
	}
	if cfg.Signer == nil {
		return true
	}
	_, err = cfg.Signer.Verify(value)
	return err == nil
}

// Session 口令门禁中间件
func Session(cfg SessionConfig) gin.HandlerFunc {
	public := make(map[string]struct{}, len(cfg.PublicPaths))
	for _, p := range cfg.PublicPaths {
		public[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		hasSession := cfg.HasSession(c)

		if hasSession && path == "/login" {
			c.Redirect(http.StatusTemporaryRedirect, "/")
			c.Abort()
			return
		}

		if _, ok := public[path]; ok || hasSession {
			c.Next()
			return
		}

		if strings.HasPrefix(path, "/api") {
			dto.AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		target := "/login"
		if path != "/" {
			target += "?from=" + url.QueryEscape(path)
		}
		c.Redirect(http.StatusTemporaryRedirect, target)
		c.Abort()
	}
}
