package auth

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	// DefaultSessionCookie holds the signed session token
	DefaultSessionCookie = "session"
	// DefaultProfileCookie holds the client readable profile snapshot
	DefaultProfileCookie = "userData"
)

// CookieSessionStore persists the session token and the profile
// snapshot as cookies on a CookieJar.
type CookieSessionStore struct {
	tokens        TokenService
	sessionCookie string
	profileCookie string
	secure        bool
	logger        Logger
	now           func() time.Time
}

// SessionStoreOption configures a CookieSessionStore
type SessionStoreOption func(*CookieSessionStore)

// WithSessionLogger sets the logger
func WithSessionLogger(l Logger) SessionStoreOption {
	return func(s *CookieSessionStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionClock overrides the time source used for cookie expiry
func WithSessionClock(now func() time.Time) SessionStoreOption {
	return func(s *CookieSessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCookieSessionStore creates a session store using the cookie names
// and the secure flag from cfg.
func NewCookieSessionStore(tokens TokenService, cfg Config, opts ...SessionStoreOption) *CookieSessionStore {
	s := &CookieSessionStore{
		tokens:        tokens,
		sessionCookie: orDefault(cfg.GetSessionCookieName(), DefaultSessionCookie),
		profileCookie: orDefault(cfg.GetProfileCookieName(), DefaultProfileCookie),
		secure:        cfg.GetSecureCookies(),
		logger:        defLogger{},
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SessionCookieName returns the name of the token cookie
func (s *CookieSessionStore) SessionCookieName() string {
	return s.sessionCookie
}

// ProfileCookieName returns the name of the profile cookie
func (s *CookieSessionStore) ProfileCookieName() string {
	return s.profileCookie
}

// Establish writes the token cookie and the profile cookie. The two
// writes are not transactional.
func (s *CookieSessionStore) Establish(jar CookieJar, user *User, token string) error {
	payload, err := json.Marshal(ClaimsFromUser(user).Profile())
	if err != nil {
		return internalError(err, "failed to encode profile cookie")
	}

	ttl := s.tokens.TTL()
	expires := s.now().Add(ttl)

	jar.Cookie(&fiber.Cookie{
		Name:     s.sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	jar.Cookie(&fiber.Cookie{
		Name:     s.profileCookie,
		Value:    url.PathEscape(string(payload)),
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  expires,
		HTTPOnly: false,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	return nil
}

// Current returns the verified claims of the session cookie, or nil
// when the cookie is absent, tampered with or expired.
func (s *CookieSessionStore) Current(jar CookieJar) *SessionClaims {
	claims, err := s.current(jar)
	if err != nil {
		return nil
	}
	return claims
}

func (s *CookieSessionStore) current(jar CookieJar) (*SessionClaims, error) {
	raw := jar.Cookies(s.sessionCookie)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := s.tokens.Decode(raw)
	if err != nil {
		s.logger.Debug("discarding session cookie", "kind", KindOf(err))
		return nil, err
	}

	return claims, nil
}

// Clear expires both cookies. Clearing an empty jar is a no-op for the client.
func (s *CookieSessionStore) Clear(jar CookieJar) {
	for _, name := range []string{s.sessionCookie, s.profileCookie} {
		s.cookieDel(jar, name, name == s.sessionCookie)
	}
}

// Profile decodes the profile cookie. The result is display only.
func (s *CookieSessionStore) Profile(jar CookieJar) *ProfileSnapshot {
	raw := jar.Cookies(s.profileCookie)
	if raw == "" {
		return nil
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return nil
	}

	snapshot := &ProfileSnapshot{}
	if err := json.Unmarshal([]byte(decoded), snapshot); err != nil {
		s.logger.Debug("discarding profile cookie", "error", err)
		return nil
	}

	return snapshot
}

// fasthttp never emits max-age=0, a past expiry deletes the cookie instead
func (s *CookieSessionStore) cookieDel(jar CookieJar, name string, httpOnly bool) {
	jar.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  s.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: httpOnly,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
