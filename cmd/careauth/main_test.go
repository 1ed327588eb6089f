package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	auth "github.com/goliatone/go-careauth"
	"github.com/goliatone/go-careauth/config"
)

func newTestApp(t *testing.T, env ...string) *App {
	t.Helper()

	for i := 0; i+1 < len(env); i += 2 {
		t.Setenv(env[i], env[i+1])
	}

	t.Setenv("CAREAUTH_DATABASE_DSN", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	t.Setenv("CAREAUTH_DATABASE_MAX_OPEN_CONNS", "1")
	t.Setenv("CAREAUTH_AUTH_BCRYPT_COST", "4")
	t.Setenv("CAREAUTH_AUTH_LOGIN_RATE_LIMIT", "0")

	cfg, err := config.Load("")
	require.NoError(t, err)

	app, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.bunDB.Close() })

	return app
}

func TestNewAppWithMigrations(t *testing.T) {
	app := newTestApp(t, "CAREAUTH_DATABASE_MIGRATE", "true")

	resp := postJSON(t, app, "/api/auth/register",
		`{"firstName":"Bob","lastName":"Lee","email":"bob@example.com","password":"secret1","userType":"patient"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	group, err := app.repo.Migrate(context.Background())
	require.NoError(t, err)
	assert.True(t, group.IsZero())
}

func TestSetupDatabaseClosesOnFailure(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	app := &App{config: cfg, logger: zap.NewNop()}

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = setupDatabase(ctx, app, db)
	require.Error(t, err)
	assert.Nil(t, app.bunDB)
	assert.Nil(t, app.repo)

	assert.ErrorContains(t, sqldb.PingContext(context.Background()), "sql: database is closed")
}

func TestNewAppFailsOnUnreachableDatabase(t *testing.T) {
	t.Setenv("CAREAUTH_DATABASE_DSN", "file:/nonexistent-"+uuid.NewString()+"/careauth.db?mode=ro")

	cfg, err := config.Load("")
	require.NoError(t, err)

	app, err := NewApp(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, app)
}

func postJSON(t *testing.T, app *App, path, body string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := app.srv.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestNewAppServesAuthFlow(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(t, app, "/api/auth/register",
		`{"firstName":"Alice","lastName":"Smith","email":"alice@example.com","password":"secret1","userType":"patient"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/api/auth/login", `{"email":"alice@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultSessionCookie {
			session = &http.Cookie{Name: c.Name, Value: c.Value}
		}
	}
	require.NotNil(t, session)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(session)
	resp, err := app.srv.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		User auth.ProfileSnapshot `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Alice Smith", body.User.Name)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(session)
	resp, err = app.srv.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestNewAppRedirectsAnonymousPages(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.srv.Test(httptest.NewRequest(http.MethodGet, "/dashboard", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, auth.DefaultLoginPath, resp.Header.Get("Location"))
}

func TestActivityLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := activityLogger(zap.New(core))

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Email:     "mallory@example.com",
	})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "anonymous", fields["actor_id"])
	assert.Equal(t, string(auth.ActivityEventLoginFailure), fields["verb"])
	assert.Equal(t, "m***@example.com", fields["email"])
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("nonsense"))
}
