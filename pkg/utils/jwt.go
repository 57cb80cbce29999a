// Package utils 提供通用工具函数
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// sessionSubject 会话令牌的固定主体
const sessionSubject = "studio-session"

// SessionClaims 会话令牌声明
type SessionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// SessionSigner 使用 HS256 签发和校验口令会话
type SessionSigner struct {
	secret []byte
	issuer string
}

// NewSessionSigner 创建会话签名器
func NewSessionSigner(secret, issuer string) *SessionSigner {
	return &SessionSigner{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Sign 签发有效期为 ttl 的会话令牌
func (s *SessionSigner) Sign(ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Scope: "studio",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionSubject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify 校验会话令牌
func (s *SessionSigner) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithSubject(sessionSubject))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
