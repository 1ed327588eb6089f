package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	// RedirectCookieName stores the page a rejected request was headed to
	RedirectCookieName = "redirect_to"
	// DefaultLoginPath is where rejected page requests are sent
	DefaultLoginPath = "/auth/login"
	// DefaultAPIPrefix marks routes answered with JSON errors
	DefaultAPIPrefix = "/api"
)

// ProtectedRouteConfig configures the session guard
type ProtectedRouteConfig struct {
	// Role, when set, is the required user type
	Role UserRole
	// LoginPath defaults to DefaultLoginPath
	LoginPath string
	// APIPrefix defaults to DefaultAPIPrefix
	APIPrefix string
	// Optional lets anonymous requests through without claims
	Optional bool
}

// ProtectedRoute returns fiber middleware that requires a session and,
// optionally, a user type. Claims are stored with SetFiberClaims.
func (s *Auther) ProtectedRoute(cfgs ...ProtectedRouteConfig) fiber.Handler {
	cfg := ProtectedRouteConfig{}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	cfg.LoginPath = orDefault(cfg.LoginPath, DefaultLoginPath)
	cfg.APIPrefix = orDefault(cfg.APIPrefix, DefaultAPIPrefix)

	return func(c *fiber.Ctx) error {
		var (
			claims *SessionClaims
			err    error
		)

		if cfg.Role != "" {
			claims, err = s.RequireRole(c.UserContext(), c, cfg.Role)
		} else {
			claims, err = s.RequireSession(c.UserContext(), c)
		}

		if err != nil {
			if cfg.Optional && KindOf(err) == KindUnauthenticated {
				return c.Next()
			}
			return s.rejectRequest(c, cfg, err)
		}

		SetFiberClaims(c, claims)
		return c.Next()
	}
}

func (s *Auther) rejectRequest(c *fiber.Ctx, cfg ProtectedRouteConfig, err error) error {
	s.logger.Info(
		"protected route rejected request",
		"kind", KindOf(err),
		"path", c.OriginalURL(),
	)

	if wantsJSON(c, cfg.APIPrefix) {
		return SendError(c, err)
	}

	switch KindOf(err) {
	case KindUnauthenticated, KindInvalidSignature, KindExpired:
		s.SetRedirect(c)
		statusCode := http.StatusSeeOther
		if c.Method() == fiber.MethodGet {
			statusCode = http.StatusFound
		}
		return c.Redirect(cfg.LoginPath, statusCode)
	default:
		return c.Status(StatusCode(err)).SendString(publicMessage(err))
	}
}

// SetRedirect remembers the rejected page for five minutes
func (s *Auther) SetRedirect(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     RedirectCookieName,
		Value:    c.OriginalURL(),
		Path:     "/",
		Expires:  s.now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   s.sessions.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// GetRedirect returns the remembered page, or def, and clears the cookie
func (s *Auther) GetRedirect(c *fiber.Ctx, def string) string {
	r := c.Cookies(RedirectCookieName)
	if !isLocalPath(r) {
		return def
	}

	c.Cookie(&fiber.Cookie{
		Name:     RedirectCookieName,
		Value:    "",
		Path:     "/",
		Expires:  s.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   s.sessions.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return r
}

// isLocalPath accepts same origin paths only. Browsers read "/\host"
// as "//host", a protocol relative URL.
func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}

// SendError writes err as a JSON {error} body with its HTTP status
func SendError(c *fiber.Ctx, err error) error {
	return c.Status(StatusCode(err)).JSON(fiber.Map{
		"error": publicMessage(err),
	})
}

func wantsJSON(c *fiber.Ctx, apiPrefix string) bool {
	if strings.HasPrefix(c.Path(), apiPrefix) {
		return true
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
