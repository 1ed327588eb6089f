package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-careauth"
)

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*auth.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*auth.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) InsertIfAbsent(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if u, ok := args.Get(0).(*auth.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) Update(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if u, ok := args.Get(0).(*auth.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) List(ctx context.Context) ([]*auth.User, error) {
	args := m.Called(ctx)
	if u, ok := args.Get(0).([]*auth.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// quietLogger drops every message
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

// testConfig implements auth.Config
type testConfig struct {
	signingKey    string
	ttl           time.Duration
	issuer        string
	sessionCookie string
	profileCookie string
	secure        bool
	loginPath     string
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey: "test-signing-key",
		ttl:        auth.DefaultTokenTTL,
		issuer:     "careauth-test",
		loginPath:  auth.DefaultLoginPath,
	}
}

func (c *testConfig) GetSigningKey() string        { return c.signingKey }
func (c *testConfig) GetTokenTTL() time.Duration   { return c.ttl }
func (c *testConfig) GetIssuer() string            { return c.issuer }
func (c *testConfig) GetSessionCookieName() string { return c.sessionCookie }
func (c *testConfig) GetProfileCookieName() string { return c.profileCookie }
func (c *testConfig) GetSecureCookies() bool       { return c.secure }
func (c *testConfig) GetLoginPath() string         { return c.loginPath }
func (c *testConfig) GetBcryptCost() int           { return bcrypt.MinCost }

// cookieJar behaves like a browser holding cookies for one origin.
// Cookies written with an expiry before now are dropped.
type cookieJar struct {
	mu      sync.Mutex
	now     func() time.Time
	values  map[string]string
	written map[string]*fiber.Cookie
}

func newCookieJar() *cookieJar {
	return &cookieJar{
		now:     time.Now,
		values:  map[string]string{},
		written: map[string]*fiber.Cookie{},
	}
}

func (j *cookieJar) Cookie(c *fiber.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cp := *c
	j.written[c.Name] = &cp

	if (!c.Expires.IsZero() && c.Expires.Before(j.now())) || c.MaxAge < 0 {
		delete(j.values, c.Name)
		return
	}
	j.values[c.Name] = c.Value
}

func (j *cookieJar) Cookies(key string, defaultValue ...string) string {
	j.mu.Lock()
	defer j.mu.Unlock()

	if v, ok := j.values[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (j *cookieJar) set(name, value string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.values[name] = value
}

func (j *cookieJar) has(name string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.values[name]
	return ok
}

func (j *cookieJar) lastWritten(name string) *fiber.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written[name]
}

type testStack struct {
	cfg      *testConfig
	store    *auth.MemoryUsers
	tokens   *auth.TokenServiceImpl
	provider *auth.UserProvider
	sessions *auth.CookieSessionStore
	auther   *auth.Auther
	events   *activityRecorder
}

func newTestStack(t *testing.T, opts ...auth.TokenServiceOption) *testStack {
	t.Helper()

	cfg := newTestConfig()
	store := auth.NewMemoryUsers()

	tokens, err := auth.NewTokenServiceFromConfig(cfg, append([]auth.TokenServiceOption{auth.WithTokenLogger(quietLogger{})}, opts...)...)
	require.NoError(t, err)

	provider := auth.NewUserProvider(store,
		auth.WithUserProviderLogger(quietLogger{}),
		auth.WithPasswordCost(bcrypt.MinCost),
	)
	sessions := auth.NewCookieSessionStore(tokens, cfg, auth.WithSessionLogger(quietLogger{}))
	events := &activityRecorder{}

	auther := auth.NewAuthenticator(provider, tokens, sessions).
		WithLogger(quietLogger{}).
		WithUserStore(store).
		WithActivitySink(events)

	return &testStack{
		cfg:      cfg,
		store:    store,
		tokens:   tokens,
		provider: provider,
		sessions: sessions,
		auther:   auther,
		events:   events,
	}
}

func (s *testStack) register(t *testing.T, email, password string, role auth.UserRole) *auth.User {
	t.Helper()
	user, err := s.auther.Register(context.Background(), auth.RegisterUserMessage{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  password,
		UserType:  role,
	})
	require.NoError(t, err)
	return user
}

// activityRecorder implements auth.ActivitySink
type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}
