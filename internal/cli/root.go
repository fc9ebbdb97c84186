// Package cli provides the command-line interface for the copy trader.
package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"copytrader/internal/config"
	"copytrader/internal/logging"
	"copytrader/internal/notify"
	"copytrader/internal/store"
	"copytrader/internal/trading"
	"copytrader/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. Fields are filled lazily so that
// commands such as version never touch the store.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	KV     store.KV

	inbox    *notify.InboxChannel
	notifier *notify.MultiNotifier
	service  *trading.Service
	// publisher is attached by serve before the service is built.
	publisher trading.Publisher
	closers   []io.Closer
}

// NewRootCmd creates the root command. Configuration and logging are set up
// from the persistent flags before any subcommand runs.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "copytrader",
		Short: "Paper portfolio with copy trading",
		Long: `copytrader simulates a stock portfolio and lets you follow expert traders.

Signals from followed experts are either copied into your portfolio right away
(auto-copy) or queued for you to approve. No real money or brokerage is involved.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/copytrader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringP("user", "u", "", "user id (default: app.default_user)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addAccountCommands(rootCmd, app)
	addCopyCommands(rootCmd, app)
	addPendingCommands(rootCmd, app)
	rootCmd.AddCommand(newServeCmd(app))

	return rootCmd
}

func (a *App) setup(cmd *cobra.Command) error {
	if a.Config == nil {
		dir, _ := cmd.Flags().GetString("config")
		if dir == "" {
			dir = config.DefaultConfigDir()
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		a.Config = cfg
		a.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
			Level:      cfg.Logging.Level,
			Console:    true,
			File:       cfg.Logging.File,
			FilePath:   cfg.Logging.FilePath,
			MaxSize:    cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAge,
		})
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	utils.SetCurrency(a.Config.App.Currency)
	return nil
}

// user resolves the --user flag against the configured default.
func (a *App) user(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		return u
	}
	return a.Config.App.DefaultUser
}

// Service opens the store on first use and returns the trading service.
func (a *App) Service() (*trading.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	if a.KV == nil {
		kv, err := store.Open(a.Config.Store)
		if err != nil {
			return nil, fmt.Errorf("opening %s store: %w", a.Config.Store.Backend, err)
		}
		a.KV = kv
		a.closers = append(a.closers, kv)
		a.Logger.Debug().Str("backend", a.Config.Store.Backend).Msg("Store opened")
	}

	a.inbox = notify.NewInboxChannel(a.KV, a.Config.Notifications.InboxLimit)
	a.notifier = notify.FromConfig(a.Config.Notifications, a.inbox)
	a.service = trading.NewService(a.KV, trading.Options{
		InitialCash: a.Config.App.InitialCashDecimal(),
		Notifier:    a.notifier,
		Inbox:       a.inbox,
		Publisher:   a.publisher,
		Logger:      a.Logger,
	})
	return a.service, nil
}

// Close releases resources opened by the app in reverse order.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			out.Printf("copytrader v%s\n", Version)
			out.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			cfg := *app.Config
			if cfg.Store.RedisPassword != "" {
				cfg.Store.RedisPassword = "********"
			}
			if out.IsJSON() {
				return out.JSON(cfg)
			}
			showConfig(out, &cfg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(map[string]string{"path": app.Config.Dir})
			}
			out.Println(app.Config.Dir)
			return nil
		},
	})

	return cmd
}

func showConfig(out *Output, cfg *config.Config) {
	out.Heading("Account")
	out.Printf("  Default user:    %s\n", cfg.App.DefaultUser)
	out.Printf("  Initial cash:    %s\n", out.Money(cfg.App.InitialCashDecimal()))
	out.Printf("  Currency:        %s\n", cfg.App.Currency)
	out.Println()

	out.Heading("Store")
	out.Printf("  Backend:         %s\n", cfg.Store.Backend)
	switch cfg.Store.Backend {
	case "sqlite":
		out.Printf("  Path:            %s\n", cfg.Store.SQLitePath)
	case "redis":
		out.Printf("  Address:         %s (db %d)\n", cfg.Store.RedisAddr, cfg.Store.RedisDB)
	}
	out.Println()

	out.Heading("Signals")
	out.Printf("  Mock:            %v (every %s)\n", cfg.Signals.MockEnabled, cfg.Signals.MockInterval)
	out.Printf("  Kafka:           %v %s\n", cfg.Signals.KafkaEnabled, cfg.Signals.KafkaTopic)
	out.Printf("  Publish:         %v %s\n", cfg.Publish.KafkaEnabled, cfg.Publish.KafkaTopic)
	out.Printf("  HTTP:            %s\n", cfg.HTTP.Addr)
	out.Println()

	out.Heading("Notifications")
	out.Printf("  Terminal:        %v\n", cfg.Notifications.Terminal)
	out.Printf("  Webhook:         %v\n", cfg.Notifications.WebhookURL != "")
	out.Printf("  Inbox limit:     %d\n", cfg.Notifications.InboxLimit)
}
