package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-print"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	auth "github.com/goliatone/go-careauth"
	"github.com/goliatone/go-careauth/config"
)

type App struct {
	config *config.Config
	bunDB  *bun.DB
	repo   auth.RepositoryManager
	auther *auth.Auther
	srv    *fiber.App
	logger *zap.Logger
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) GetLogger(name string) auth.Logger {
	return auth.NewZapLogger(a.logger.Named(name))
}

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lgr, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lgr.Sync()

	if cfg.App.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(cfg.Server))
		fmt.Println(print.MaybePrettyJSON(cfg.Database.Driver))
		fmt.Println("============")
	}

	ctx := context.Background()
	app, err := NewApp(ctx, cfg, lgr)
	if err != nil {
		lgr.Fatal("failed to start", zap.Error(err))
	}
	defer app.bunDB.Close()

	go func() {
		if err := app.srv.Listen(cfg.Server.Addr()); err != nil {
			lgr.Error("server stopped", zap.Error(err))
		}
	}()

	lgr.Info("listening", zap.String("addr", cfg.Server.Addr()))

	WaitExitSignal()

	if err := app.srv.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		lgr.Error("shutdown failed", zap.Error(err))
	}
}

// NewApp wires persistence, auth and the HTTP server
func NewApp(ctx context.Context, cfg *config.Config, lgr *zap.Logger) (*App, error) {
	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		return nil, err
	}

	if err := WithAuth(app); err != nil {
		app.bunDB.Close()
		return nil, err
	}

	WithHTTPServer(app)

	return app, nil
}

func WithPersistence(ctx context.Context, app *App) error {
	dbCfg := app.Config().Database

	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch dbCfg.Driver {
	case "postgres":
		sqldb, err = sql.Open("pgx", dbCfg.DSN)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err = sql.Open(sqliteshim.ShimName, dbCfg.DSN)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if dbCfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(dbCfg.MaxOpenConns)
	}

	return setupDatabase(ctx, app, db)
}

// setupDatabase checks the connection and prepares the schema.
// db is closed when any step fails.
func setupDatabase(ctx context.Context, app *App, db *bun.DB) (err error) {
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	dbCfg := app.Config().Database

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	switch {
	case dbCfg.Migrate:
		group, err := repo.Migrate(ctx)
		if err != nil {
			return err
		}
		if !group.IsZero() {
			app.GetLogger("db").Info("migrations applied", "group", group.String())
		}
	case dbCfg.CreateSchema:
		if err := repo.CreateSchema(ctx); err != nil {
			return err
		}
	}

	app.bunDB = db
	app.repo = repo

	return nil
}

func WithAuth(app *App) error {
	cfg := app.Config()

	tokens, err := auth.NewTokenServiceFromConfig(cfg, auth.WithTokenLogger(app.GetLogger("token")))
	if err != nil {
		return err
	}

	provider := auth.NewUserProvider(app.repo.Users(),
		auth.WithUserProviderLogger(app.GetLogger("users")),
		auth.WithPasswordCost(cfg.GetBcryptCost()),
		auth.WithHashidIDs(cfg.Auth.HashidIDs),
		auth.WithPhoneRegion(cfg.Auth.PhoneRegion),
	)

	sessions := auth.NewCookieSessionStore(tokens, cfg, auth.WithSessionLogger(app.GetLogger("session")))

	app.auther = auth.NewAuthenticator(provider, tokens, sessions).
		WithLogger(app.GetLogger("auth")).
		WithUserStore(app.repo.Users()).
		WithActivitySink(activityLogger(app.logger.Named("activity")))

	return nil
}

func WithHTTPServer(app *App) {
	cfg := app.Config()

	srv := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			app.logger.Error("unhandled error", zap.Error(err), zap.String("path", c.Path()))
			return auth.SendError(c, err)
		},
	})

	srv.Use(recover.New())
	srv.Use(requestid.New())
	srv.Use(fiberlog.New())

	guard := auth.ProtectedRouteConfig{LoginPath: cfg.GetLoginPath()}

	opts := []auth.AuthControllerOption{
		auth.WithAuther(app.auther),
		auth.WithRepositoryManager(app.repo),
		auth.WithPhoneNormalizer(auth.NewUserProvider(app.repo.Users(), auth.WithPhoneRegion(cfg.Auth.PhoneRegion))),
		auth.WithControllerLogger(app.GetLogger("http")),
		auth.WithControllerActivitySink(activityLogger(app.logger.Named("activity"))),
		auth.WithGuardConfig(guard),
		auth.WithDebug(cfg.App.Debug),
	}

	if cfg.Auth.LoginRateLimit > 0 {
		opts = append(opts, auth.WithLoginLimiter(limiter.New(limiter.Config{
			Max:        cfg.Auth.LoginRateLimit,
			Expiration: cfg.Auth.LoginRateWindow,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return auth.SendError(c, auth.ErrTooManyLoginAttempts)
			},
		})))
	}

	auth.RegisterAuthRoutes(srv.Group("/api"), opts...)

	ProtectedRoutes(srv, app.auther, guard)

	app.srv = srv
}

// ProtectedRoutes mounts the page routes that redirect anonymous visitors
func ProtectedRoutes(srv *fiber.App, auther *auth.Auther, guard auth.ProtectedRouteConfig) {
	admin := guard
	admin.Role = auth.RoleAdmin

	srv.Get("/dashboard", auther.ProtectedRoute(guard), ProfilePage)
	srv.Get("/admin", auther.ProtectedRoute(admin), ProfilePage)
}

// ProfilePage renders the verified session profile
func ProfilePage(c *fiber.Ctx) error {
	claims, ok := auth.GetFiberClaims(c)
	if !ok {
		return auth.SendError(c, auth.ErrUnauthenticated)
	}
	return c.JSON(fiber.Map{"user": claims.Profile()})
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(
		ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
