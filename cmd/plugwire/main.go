package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdelaire/plugwire/adapters/telegram"
	"github.com/jdelaire/plugwire/core"
	"github.com/jdelaire/plugwire/core/plugin"
	"github.com/jdelaire/plugwire/core/session"
	"github.com/jdelaire/plugwire/internal/config"
	"github.com/jdelaire/plugwire/internal/keychain"
	"github.com/jdelaire/plugwire/internal/logging"
	"github.com/jdelaire/plugwire/internal/telemetry"
	"github.com/jdelaire/plugwire/plugins/builtin"
)

var (
	version = "dev"
	commit  = "none"
)

func init() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
}

var osExit = os.Exit

// Replaced in tests.
var (
	newSession = func(cfg telegram.Config, logger *slog.Logger) (session.Session, error) {
		return telegram.New(cfg, logger)
	}
	pluginBuilders = func(logger *slog.Logger) []plugin.Builder {
		return []plugin.Builder{builtin.New(logger)}
	}
	signalContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	}
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "plugwire",
		Short:        "Plugin-based Telegram bot",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Telegram and dispatch events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Init(ctx, "plugwire", version, telemetry.Options{
		Enabled: cfg.Telemetry.Enabled,
		Stdout:  cfg.Telemetry.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	token, err := keychain.ResolveToken(cfg.Telegram.Token)
	if errors.Is(err, keychain.ErrNotFound) {
		return errors.New("no bot token: set telegram.token, PLUGWIRE_TELEGRAM_TOKEN or run 'plugwire token set'")
	}
	if err != nil {
		return err
	}

	sess, err := newSession(telegram.Config{
		Token:           token,
		APIEndpoint:     cfg.Telegram.APIEndpoint,
		PollTimeout:     cfg.Telegram.PollTimeout,
		RetryInterval:   cfg.Telegram.RetryInterval,
		RetryMaxElapsed: cfg.Telegram.RetryMaxElapsed,
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	return core.Run(ctx, sess, pluginBuilders(logger), cfg.Prefixes, logger, core.Options{
		MaxInFlight:  cfg.Dispatch.MaxInFlight,
		Drain:        cfg.Dispatch.Drain,
		DrainTimeout: cfg.Dispatch.DrainTimeout,
	})
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the bot token stored in the system keychain",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [token]",
		Short: "Store the bot token; reads stdin when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = line
			}
			if err := keychain.SetBotToken(strings.TrimSpace(token)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token stored")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored bot token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := keychain.DeleteBotToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token deleted")
			return nil
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "plugwire %s\n", version)
			if commit != "none" {
				fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
			}
		},
	}
}
