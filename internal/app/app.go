// Package app is the composition root: it builds the keyring, session
// store, callback router, authorization engine, and flow manager from a
// single Config.
package app

import (
	"fmt"
	"log/slog"

	"github.com/corvidchat/authkit/pkg/authflow"
	"github.com/corvidchat/authkit/pkg/authz"
	"github.com/corvidchat/authkit/pkg/callback"
	"github.com/corvidchat/authkit/pkg/keyring"
	"github.com/corvidchat/authkit/pkg/keyring/drivers/sqlite"
	"github.com/corvidchat/authkit/pkg/session"
	"github.com/corvidchat/authkit/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application bundles the wired collaborators. The application owns the
// callback Router; whoever receives OS-delivered redirects routes them
// through Router.Route.
type Application struct {
	cfg    Config
	logger *slog.Logger

	ring keyring.Keyring

	Router  *callback.Router
	Store   *session.Store
	Engine  *authz.Engine
	Manager *authflow.Manager
}

// New wires an application from cfg. presenter may be nil when the caller
// only needs stored-session operations (status, features, logout).
func New(cfg Config, presenter authflow.Presenter) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authkit",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initKeyring(); err != nil {
		return nil, err
	}

	app.Router = callback.NewRouter()
	app.Store = session.NewStore(app.ring, app.logger)

	features, err := cfg.FeatureMap()
	if err != nil {
		return nil, err
	}
	app.Engine = authz.NewEngine(app.Store, features)

	app.Manager = authflow.NewManager(
		authflow.Config{
			AuthorizationEndpoint: cfg.AuthorizationEndpoint(),
			TokenEndpoint:         cfg.TokenEndpoint(),
			UserInfoEndpoint:      cfg.UserInfoEndpoint(),
			ClientID:              cfg.ClientID,
			ClientSecret:          cfg.ClientSecret,
			RedirectURL:           cfg.RedirectURL,
			Scopes:                cfg.Scopes,
			RequiredRoles:         cfg.RequiredRoles,
			RequiredGroups:        cfg.RequiredGroups,
		},
		presenter,
		app.Router,
		app.Store,
		nil, // paced default HTTP client
		app.logger,
	)

	return app, nil
}

// Logger exposes the application logger for command-level output.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Close releases backend resources. Safe to call once.
func (app *Application) Close() error {
	if ring, ok := app.ring.(*sqlite.Ring); ok {
		return ring.Close()
	}
	return nil
}

func (app *Application) initKeyring() error {
	switch app.cfg.StoreBackend {
	case "memory":
		app.ring = keyring.NewMemory()
	case "file":
		ring, err := keyring.NewFile(app.cfg.StoreFile, app.cfg.StorePassphrase)
		if err != nil {
			return err
		}
		app.ring = ring
	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", app.cfg.StoreDatabase)
		ring, err := sqlite.NewRing(dsn)
		if err != nil {
			return err
		}
		if err := ring.ApplyMigrations(); err != nil {
			_ = ring.Close()
			return fmt.Errorf("failed to apply keyring migrations: %w", err)
		}
		app.ring = ring
	default:
		return fmt.Errorf("unknown store backend %q", app.cfg.StoreBackend)
	}

	app.logger.Info("keyring initialized", "backend", app.cfg.StoreBackend)
	return nil
}
