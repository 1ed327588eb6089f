package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// LocalsClaimsKey is the fiber locals key holding the session claims
const LocalsClaimsKey = "session"

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the SessionClaims in the given context
func WithClaimsContext(r context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the SessionClaims from the standard context
func GetClaims(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok && raw != nil
}

// SetFiberClaims stores claims both in the fiber locals and the user context
func SetFiberClaims(c *fiber.Ctx, claims *SessionClaims) {
	c.Locals(LocalsClaimsKey, claims)
	c.SetUserContext(WithClaimsContext(c.UserContext(), claims))
}

// GetFiberClaims extracts the SessionClaims from the fiber locals
func GetFiberClaims(c *fiber.Ctx) (*SessionClaims, bool) {
	raw, ok := c.Locals(LocalsClaimsKey).(*SessionClaims)
	return raw, ok && raw != nil
}
