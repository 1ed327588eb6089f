package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CredentialVerifier checks credentials and registers new accounts
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*User, error)
	Register(ctx context.Context, msg RegisterUserMessage) (*User, error)
}

var _ CredentialVerifier = (*UserProvider)(nil)

// LoginResult is returned by a successful login
type LoginResult struct {
	User  *User
	Token string
}

// Auther orchestrates the verifier, the token codec and the session store.
// It is the only layer that turns errors into user facing text.
type Auther struct {
	verifier     CredentialVerifier
	tokens       TokenService
	sessions     *CookieSessionStore
	users        Users
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(verifier CredentialVerifier, tokens TokenService, sessions *CookieSessionStore) *Auther {
	return &Auther{
		verifier:     verifier,
		tokens:       tokens,
		sessions:     sessions,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithUserStore attaches the live user store. With a store attached,
// RequireSession re-derives the profile claims from the stored record.
func (s *Auther) WithUserStore(users Users) *Auther {
	s.users = users
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Sessions returns the underlying cookie store
func (s *Auther) Sessions() *CookieSessionStore {
	return s.sessions
}

// Login verifies the credentials, mints a token and sets both cookies
func (s *Auther) Login(ctx context.Context, jar CookieJar, email, password string) (*LoginResult, error) {
	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		s.logger.Info("login failed", "kind", KindOf(err))
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Email:     NormalizeEmail(email),
			Metadata:  map[string]any{"kind": string(KindOf(err))},
		})
		return nil, err
	}

	token, err := s.issue(jar, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded", "user_id", user.ID.String())
	s.recordActivity(ctx, userActivity(ActivityEventLoginSuccess, user, nil))

	return &LoginResult{
		User:  user,
		Token: token,
	}, nil
}

// Register delegates to the verifier
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	user, err := s.verifier.Register(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, userActivity(ActivityEventUserRegistered, user, nil))
	return user, nil
}

// Logout clears both cookies. It never fails.
func (s *Auther) Logout(ctx context.Context, jar CookieJar) {
	if claims := s.sessions.Current(jar); claims != nil {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLogout,
			UserID:    claims.UserID(),
			Email:     claims.Email,
			UserType:  claims.UserType,
		})
	}
	s.sessions.Clear(jar)
}

// CurrentSession returns the verified claims or nil for anonymous requests
func (s *Auther) CurrentSession(jar CookieJar) *SessionClaims {
	return s.sessions.Current(jar)
}

// RequireSession returns the session claims or ErrUnauthenticated.
// Expired or tampered tokens are treated like absent ones.
func (s *Auther) RequireSession(ctx context.Context, jar CookieJar) (*SessionClaims, error) {
	claims := s.sessions.Current(jar)
	if claims == nil {
		return nil, ErrUnauthenticated
	}

	if s.users == nil {
		return claims, nil
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrUnauthenticated.Wrap(err)
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("session for unknown user", "user_id", id.String())
			return nil, ErrUnauthenticated.Wrap(err)
		}
		return nil, internalError(err, "failed to refresh session")
	}

	claims.refreshFrom(user)
	return claims, nil
}

// RequireRole is RequireSession plus a user type check
func (s *Auther) RequireRole(ctx context.Context, jar CookieJar, role UserRole) (*SessionClaims, error) {
	claims, err := s.RequireSession(ctx, jar)
	if err != nil {
		return nil, err
	}

	if !claims.HasRole(role) {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventAccessForbidden,
			UserID:    claims.UserID(),
			Email:     claims.Email,
			UserType:  claims.UserType,
			Metadata:  map[string]any{"required_role": role},
		})
		return nil, ErrForbidden.WithMetadata(map[string]any{
			"required_role": role,
			"user_type":     claims.UserType,
		})
	}

	return claims, nil
}

// Reissue mints a fresh token from the stored record, after a mutation
// that changed the profile claims.
func (s *Auther) Reissue(ctx context.Context, jar CookieJar, userID uuid.UUID) (*User, error) {
	if s.users == nil {
		return nil, internalError(errors.New("no user store attached"), "failed to reissue session")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated.Wrap(err)
		}
		return nil, internalError(err, "failed to reissue session")
	}

	if _, err := s.issue(jar, user); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, userActivity(ActivityEventSessionReissued, user, nil))
	return user, nil
}

func (s *Auther) issue(jar CookieJar, user *User) (string, error) {
	token, err := s.tokens.Encode(user)
	if err != nil {
		s.logger.Error("failed to encode token", "error", err)
		return "", internalError(err, "failed to encode token")
	}

	if err := s.sessions.Establish(jar, user, token); err != nil {
		s.logger.Error("failed to establish session", "error", err)
		return "", internalError(err, "failed to establish session")
	}

	return token, nil
}

func (s *Auther) recordActivity(ctx context.Context, event ActivityEvent) {
	emitActivity(ctx, s.activitySink, s.logger, s.now, event)
}

// PublicMessage renders err for end users. Token failures never
// reach the client verbatim.
func (s *Auther) PublicMessage(err error) string {
	return publicMessage(err)
}

func publicMessage(err error) string {
	if err == nil {
		return ""
	}

	switch KindOf(err) {
	case KindInvalidCredentials:
		return "Invalid email or password"
	case KindDuplicateEmail:
		return "Email already registered"
	case KindWeakPassword:
		return "Password must be at least 6 characters"
	case KindPasswordTooLong:
		return "Password must be at most 72 characters"
	case KindInvalidRole:
		return "Invalid user type"
	case KindInvalidEmail:
		return "Invalid email format"
	case KindInvalidPhone:
		return "Invalid phone number"
	case KindMissingFields:
		return "All fields are required"
	case KindInvalidSignature, KindExpired, KindUnauthenticated:
		return "Please sign in again"
	case KindForbidden:
		return "You do not have access to this resource"
	case KindNotFound:
		return "Not found"
	case KindTooManyAttempts:
		return "Too many login attempts, please try again later"
	default:
		return "Internal server error"
	}
}
