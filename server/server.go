// Package server is the account service: a go-router HTTP API, served by
// the fiber adapter, over a single SQLite users table.
package server

import (
	"context"
	"database/sql"
	"io/fs"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"

	signup "github.com/goliatone/go-signup"
)

// Config carries what the service needs to start.
type Config struct {
	DSN          string
	PasswordCost int
	MaxLatency   time.Duration
	Debug        bool
}

// OpenDB opens a SQLite database through the bun sqlite shim.
func OpenDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database").
			WithMetadata(map[string]any{"dsn": dsn})
	}
	// SQLite allows a single writer; in-memory databases also vanish per connection.
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Migrate applies the embedded migrations to db.
func Migrate(ctx context.Context, db *bun.DB, logger signup.Logger) error {
	return MigrateFS(ctx, db, signup.GetMigrationsFS(), logger)
}

// MigrateFS applies the migrations found in fsys.
func MigrateFS(ctx context.Context, db *bun.DB, fsys fs.FS, logger signup.Logger) error {
	if logger == nil {
		logger = signup.NopLogger()
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(fsys); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discover migrations")
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize migrations")
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	if group.IsZero() {
		logger.Debug("database schema up to date")
		return nil
	}

	logger.Info("database migrated", "group", group.String())
	return nil
}

// Server wires the database, repositories and HTTP app.
type Server struct {
	db     *bun.DB
	http   router.Server[*fiber.App]
	repo   RepositoryManager
	logger signup.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithHTTPServer mounts the routes on srv instead of the default adapter.
func WithHTTPServer(srv router.Server[*fiber.App]) Option {
	return func(s *Server) {
		if srv != nil {
			s.http = srv
		}
	}
}

// NewHTTPServer returns the fiber adapter the service runs on by default.
func NewHTTPServer() router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "signup",
			DisableStartupMessage: true,
		}))
	})
}

// New opens the database, migrates it and mounts the controller.
func New(ctx context.Context, cfg Config, logger signup.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = signup.NopLogger()
	}

	db, err := OpenDB(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return NewWithDB(db, cfg, logger, opts...), nil
}

// NewWithDB builds a Server over an already migrated db.
func NewWithDB(db *bun.DB, cfg Config, logger signup.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = signup.NopLogger()
	}

	repo := NewRepositoryManager(db)
	repo.MustValidate()

	controller := NewController(repo,
		WithControllerLogger(logger),
		WithControllerDebug(cfg.Debug),
		WithSimulatedLatency(cfg.MaxLatency),
		WithPasswordHasher(NewHasher(cfg.PasswordCost)),
	)

	s := &Server{
		db:     db,
		repo:   repo,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.http == nil {
		s.http = NewHTTPServer()
	}

	RegisterAccountRoutes(s.http.Router(), controller)

	return s
}

// Router returns the router the controller routes are mounted on.
func (s *Server) Router() router.Router[*fiber.App] {
	return s.http.Router()
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.http.WrappedRouter()
}

// Repo returns the repository manager.
func (s *Server) Repo() RepositoryManager {
	return s.repo
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("account service listening", "addr", addr)
	return s.http.Serve(addr)
}

// Shutdown stops the HTTP app and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}
