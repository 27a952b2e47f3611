package main

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-signup/activitymap"
	"github.com/goliatone/go-signup/client"
	"github.com/goliatone/go-signup/config"
	"github.com/goliatone/go-signup/internal/logging"
)

// App wires the client components over one device storage.
type App struct {
	config *config.Config
	logger *glog.BaseLogger
	db     *bun.DB

	storage   *signup.ObservedStorage
	api       *client.Client
	sessions  *signup.SessionStore
	scenarios *signup.ScenarioTracker
	validator *signup.AvailabilityValidator
	settings  *signup.AppSettings
	router    *signup.Router
	form      *signup.SignUpForm

	in  *bufio.Reader
	out io.Writer

	// input collected from flags for the sign-up page
	input signUpInput
}

type signUpInput struct {
	email         string
	password      string
	announcements *bool
}

// NewApp opens the device storage and builds every component.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
	lgr := logging.New("signup", cfg.Log)

	db, err := openDeviceDB(cfg.Client.StoragePath)
	if err != nil {
		return nil, err
	}

	bunStorage := signup.NewBunStorage(db)
	if err := bunStorage.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return newApp(ctx, cfg, lgr, db, bunStorage, in, out)
}

func newApp(ctx context.Context, cfg *config.Config, lgr *glog.BaseLogger, db *bun.DB, storage signup.Storage, in io.Reader, out io.Writer) (*App, error) {
	observed := signup.Observe(storage)
	activity := activitymap.LogSink(lgr.GetLogger("activity"), activitymap.WithDefaultChannel("cli"))

	api := client.New(cfg.Client.BaseURL,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithLogger(lgr.GetLogger("client")),
	)

	sessions, err := signup.NewSessionStore(ctx, observed, api,
		signup.WithSessionLogger(lgr.GetLogger("session")),
		signup.WithSessionActivitySink(activity),
	)
	if err != nil {
		return nil, err
	}

	scenarios := signup.NewScenarioTracker(observed,
		signup.WithScenarioLogger(lgr.GetLogger("scenarios")),
		signup.WithScenarioActivitySink(activity),
	)

	validator := signup.NewAvailabilityValidator(api,
		signup.WithAvailabilityTTL(cfg.Client.AvailabilityTTL),
		signup.WithAvailabilityTimeout(cfg.Client.AvailabilityTimeout),
		signup.WithAvailabilityLogger(lgr.GetLogger("availability")),
		signup.WithAvailabilityActivitySink(activity),
	)

	router := signup.NewRouter(
		signup.WithRouterLogger(lgr.GetLogger("router")),
		signup.WithRouterActivitySink(activity),
	)

	app := &App{
		config:    cfg,
		logger:    lgr,
		db:        db,
		storage:   observed,
		api:       api,
		sessions:  sessions,
		scenarios: scenarios,
		validator: validator,
		settings:  signup.NewAppSettings(observed, prefersDark, lgr.GetLogger("settings")),
		router:    router,
		form:      signup.NewSignUpForm(sessions, validator, scenarios, router, lgr.GetLogger("form")),
		in:        bufio.NewReader(in),
		out:       out,
	}

	app.registerPages()
	return app, nil
}

// Close releases the device storage.
func (a *App) Close() error {
	a.sessions.Close()
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func openDeviceDB(path string) (*bun.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create storage directory")
		}
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+path+"?cache=shared")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open device storage").
			WithMetadata(map[string]any{"path": path})
	}
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// prefersDark reads the terminal background hint. COLORFGBG is "fg;bg" and
// low background indexes are dark colors.
func prefersDark() bool {
	v := os.Getenv("COLORFGBG")
	if v == "" {
		return false
	}
	parts := strings.Split(v, ";")
	switch parts[len(parts)-1] {
	case "0", "1", "2", "3", "4", "5", "6", "8":
		return true
	}
	return false
}
