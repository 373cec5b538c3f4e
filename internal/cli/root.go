// Package cli wires the configuration, token store, REST client, and
// coordinator into a scriptable command-line surface.
package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/pkg/auth"
	"github.com/taskdeck/taskdeck/pkg/client"
	"github.com/taskdeck/taskdeck/pkg/config"
	"github.com/taskdeck/taskdeck/pkg/coordinator"
	"github.com/taskdeck/taskdeck/pkg/observability"
	"github.com/taskdeck/taskdeck/pkg/resilience"
	"github.com/taskdeck/taskdeck/pkg/retry"
	"github.com/taskdeck/taskdeck/pkg/store"
)

// App carries flag values and the lazily built session shared by commands.
type App struct {
	ServerURL string
	LogLevel  string

	cfg     *config.Config
	logger  observability.Logger
	session *Session
}

// Session bundles the pieces a command needs to talk to the backend.
type Session struct {
	Client      *client.Client
	Coordinator *coordinator.Coordinator
	Store       *store.TaskStore
	Tokens      *auth.TokenStore
}

// NewRootCmd builds the taskdeck command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "taskdeck",
		Short:         "Todo list client with optimistic updates and retries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if app.ServerURL != "" {
			cfg.Server.BaseURL = app.ServerURL
		}
		if app.LogLevel != "" {
			cfg.Log.Level = app.LogLevel
		}
		app.cfg = cfg
		app.logger = observability.NewStandardLogger("taskdeck").(*observability.StandardLogger).
			WithLevel(observability.ParseLevel(cfg.Log.Level))
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ServerURL, "server", "", "Backend base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")

	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newDoneCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newRemoveCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newSearchCmd(app))
	cmd.AddCommand(newClearCmd(app))
	cmd.AddCommand(newStatusCmd(app))

	return cmd
}

// connect builds (once) the token store, REST client, and coordinator.
func (app *App) connect() (*Session, error) {
	if app.session != nil {
		return app.session, nil
	}

	tokenPath := app.cfg.Auth.TokenPath
	if tokenPath == "" {
		p, err := auth.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve token path: %w", err)
		}
		tokenPath = p
	}
	tokens := auth.NewTokenStore(tokenPath, app.logger.WithPrefix("auth"))
	if err := tokens.Load(); err != nil {
		return nil, err
	}

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "backend"},
		app.logger.WithPrefix("breaker"))

	c := client.NewClient(app.cfg.Server.BaseURL,
		client.WithHTTPClient(&http.Client{Timeout: app.cfg.Server.RequestTimeout}),
		client.WithTokenSource(tokens),
		client.WithBreaker(breaker),
		client.WithLogger(app.logger.WithPrefix("client")),
		client.WithSearchCache(app.cfg.Search.CacheSize, app.cfg.Search.CacheTTL),
	)

	st := store.NewTaskStore()
	coord := coordinator.New(c, st, coordinator.Config{
		Gate: resilience.GateConfig{
			IDCap:    app.cfg.Gate.IDCap,
			Timeouts: gateTimeouts(app.cfg.Gate.Timeouts),
		},
		Retry:       retryConfigs(app.cfg.Retry),
		SearchRate:  app.cfg.Search.Rate,
		SearchBurst: app.cfg.Search.Burst,
		Logger:      app.logger.WithPrefix("coordinator"),
	})

	app.session = &Session{Client: c, Coordinator: coord, Store: st, Tokens: tokens}
	return app.session, nil
}

func gateTimeouts(raw map[string]time.Duration) map[resilience.Operation]time.Duration {
	if len(raw) == 0 {
		return nil
	}
	timeouts := make(map[resilience.Operation]time.Duration, len(raw))
	for name, d := range raw {
		op := resilience.Operation(name)
		if op.IsValid() && d > 0 {
			timeouts[op] = d
		}
	}
	return timeouts
}

// retryConfigs applies the configured delays on top of the per-operation
// presets. Attempt counts stricter than the configured default are kept:
// create and reorder stay at two attempts no matter what.
func retryConfigs(rc config.RetryConfig) map[string]retry.Config {
	configs := make(map[string]retry.Config)
	for _, op := range []string{"create", "update", "delete", "toggle", "reorder", "search", "list"} {
		preset := retry.OperationConfig(op)
		if preset.MaxAttempts > rc.MaxAttempts {
			preset.MaxAttempts = rc.MaxAttempts
		}
		if preset.BaseDelay == retry.DefaultConfig().BaseDelay {
			preset.BaseDelay = rc.BaseDelay
		}
		preset.MaxDelay = rc.MaxDelay
		preset.Multiplier = rc.Multiplier
		configs[op] = preset
	}
	return configs
}
