package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Logger takes a message followed by key/value pairs
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenTTL() time.Duration
	GetIssuer() string
	GetSessionCookieName() string
	GetProfileCookieName() string
	GetSecureCookies() bool
	GetLoginPath() string
	GetBcryptCost() int
}

// Users is the storage capability the verifier and the facade need.
// InsertIfAbsent must be atomic with respect to the email key.
type Users interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	InsertIfAbsent(ctx context.Context, user *User) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

// CookieJar reads request cookies and writes response cookies.
// *fiber.Ctx satisfies it.
type CookieJar interface {
	Cookie(cookie *fiber.Cookie)
	Cookies(key string, defaultValue ...string) string
}

var _ CookieJar = (*fiber.Ctx)(nil)

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) { d.log("ERR", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.log("WRN", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.log("INF", msg, args...) }
func (d defLogger) Debug(msg string, args ...any) { d.log("DBG", msg, args...) }

func (d defLogger) log(level, msg string, args ...any) {
	var b strings.Builder
	b.WriteString("[" + level + "] AUTH ")
	b.WriteString(strings.TrimSuffix(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	fmt.Println(b.String())
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
