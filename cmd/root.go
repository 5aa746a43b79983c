package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/ssr3bridge/internal/app"
	"github.com/okian/ssr3bridge/internal/config"
	"github.com/okian/ssr3bridge/internal/domain/catalog"
	"github.com/okian/ssr3bridge/internal/printer"
	"github.com/okian/ssr3bridge/pkg/logger"
)

// rootCmd is the bridge binary. Configuration comes from SSR3_* env vars
// and the optional YAML file named by SSR3_CONFIG or --config.
var rootCmd = &cobra.Command{
	Use:   "ssr3bridge",
	Short: "Bridge a Star Force 3 memory producer to HTTP, websocket and terminal readers",
	Long: `ssr3bridge connects to the emulator-side memory producer over a local
socket or named pipe, reconciles the value stream into one state, and derives
the rezon bonuses, noise hand and level lock from it.

Run "serve" for the HTTP API and websocket feed, or "monitor" to watch the
values in the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (overrides SSR3_CONFIG)")
}

func execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func setVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// loadConfig initialises logging and loads configuration. The logger starts
// on stderr so the monitor table owns stdout.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if configFile != "" {
		if err := os.Setenv("SSR3_CONFIG", configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, printer.Error("invalid configuration", err.Error(),
			[]string{"Check the SSR3_* environment variables and the config file"})
	}

	if err := logger.InitWith(os.Stderr, cfg.LogFormat); err != nil {
		return nil, printer.Error("invalid log format", err.Error(), []string{"Use log_format text or json"})
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// serviceOptions maps configuration onto service options.
func serviceOptions(cfg *config.Config) ([]service.Option, error) {
	opts := []service.Option{
		service.WithLogger(logger.Get()),
		service.WithQueueSize(cfg.QueueSize),
		service.WithEndpoint(cfg.PipeNetwork, cfg.PipeAddress),
		service.WithReconnectInterval(cfg.ReconnectInterval()),
		service.WithDialTimeout(cfg.DialTimeout()),
		service.WithMaxFrameBytes(cfg.MaxFrameBytes),
	}
	if cfg.CatalogPath != "" {
		cat, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return nil, printer.Error("catalog could not be loaded", err.Error(),
				[]string{"Fix the YAML file or unset catalog_path"})
		}
		opts = append(opts, service.WithCatalog(cat))
	}
	return opts, nil
}
