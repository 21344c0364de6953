package web

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gemini-chat-gateway/internal/config"
)

// ===== Session cookie primitives =====
//
// The session key is an opaque random token minted on first contact. The
// cookie value is the key wrapped in an HS256-signed token so a client cannot
// forge someone else's key; a bad signature simply mints a fresh identity.

type SessionManager struct {
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
}

func NewSessionManager(cfg config.SessionConfig) *SessionManager {
	return &SessionManager{
		cookieName: cfg.CookieName,
		secret:     []byte(cfg.HMACSecret),
		ttl:        cfg.TTL,
		secure:     cfg.Secure,
	}
}

// Resolve returns the stable session key for a request, minting one when the
// request carries no valid cookie. minted signals the caller to SetCookie.
func (m *SessionManager) Resolve(r *http.Request) (key string, minted bool) {
	c, err := r.Cookie(m.cookieName)
	if err == nil && c.Value != "" {
		if key := m.verify(c.Value); key != "" {
			return key, false
		}
	}
	return uuid.NewString(), true
}

func (m *SessionManager) verify(token string) string {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return ""
	}
	return claims.Subject
}

// SetCookie signs the key and instructs the browser to persist it.
func (m *SessionManager) SetCookie(w http.ResponseWriter, key string) error {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
