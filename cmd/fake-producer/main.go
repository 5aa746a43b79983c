package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/ssr3bridge/internal/fakeproducer"
	"github.com/okian/ssr3bridge/internal/printer"
	"github.com/okian/ssr3bridge/internal/smoke"
	"github.com/okian/ssr3bridge/pkg/logger"
)

// Default configuration constants.
const (
	defaultNetwork = "unix"
	defaultAddress = "/tmp/ssr3_viewer.sock"
	defaultTimeout = 5 * time.Second
	defaultWait    = 10 * time.Second
)

var (
	network    string
	address    string
	version    string
	inactive   bool
	level      int
	rate       int
	pause      time.Duration
	smokeLevel int
	smokeRate  int
	smokePause time.Duration
	baseURL    string
	timeout    time.Duration
	wait       time.Duration
	zeny       int64
	verbose    bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "fake-producer",
	Short: "Emulator-side memory producer stand-in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.InitWith(os.Stderr, logFormat); err != nil {
			return err
		}
		if verbose {
			return logger.SetLevelString("debug")
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for the bridge and answer its commands",
	Long: `Serves the default register set. With --level the finalize screen script
runs once the first bridge connects.`,
	RunE: runServe,
}

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Check a running bridge end to end",
	Long: `Listens for the bridge, then drives a write and a level lock through it and
verifies the results over the bridge HTTP API. Start the bridge with the same
pipe_network and pipe_address.`,
	RunE: runSmoke,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&network, "network", defaultNetwork, "Listen network (unix or tcp)")
	pf.StringVar(&address, "address", defaultAddress, "Listen address")
	pf.StringVar(&version, "version", "1.0", "Producer version reported in hello")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (text or json)")

	serveCmd.Flags().BoolVar(&inactive, "inactive", false, "Report no instrumented target")
	serveCmd.Flags().IntVar(&level, "level", 0, "Play the finalize screen at this folder level")
	serveCmd.Flags().IntVar(&rate, "rate", 650, "Noise rate latched by the finalize script")
	serveCmd.Flags().DurationVar(&pause, "pause", 500*time.Millisecond, "Delay between scripted updates")

	smokeCmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:9470", "Base URL of the bridge")
	smokeCmd.Flags().DurationVar(&timeout, "timeout", defaultTimeout, "HTTP request timeout")
	smokeCmd.Flags().DurationVar(&wait, "wait", defaultWait, "How long to wait for each expected state")
	smokeCmd.Flags().IntVar(&smokeLevel, "level", 6, "Folder level for the lock check")
	smokeCmd.Flags().IntVar(&smokeRate, "rate", 650, "Noise rate for the lock check")
	smokeCmd.Flags().DurationVar(&smokePause, "pause", 50*time.Millisecond, "Delay between scripted updates")
	smokeCmd.Flags().Int64Var(&zeny, "zeny", 4242, "Value written through the API")

	rootCmd.AddCommand(serveCmd, smokeCmd)
}

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listen(ctx context.Context) (*fakeproducer.Server, error) {
	if network == "unix" {
		_ = os.Remove(address)
	}
	srv := fakeproducer.New(
		fakeproducer.WithVersion(version),
		fakeproducer.WithStatus(!inactive, "nds"),
	)
	if err := srv.Listen(ctx, network, address); err != nil {
		return nil, printer.Error("cannot listen", err.Error(),
			[]string{fmt.Sprintf("Check that nothing else is serving %s %s", network, address)})
	}
	return srv, nil
}

// waitPeer blocks until a bridge connects.
func waitPeer(ctx context.Context, srv *fakeproducer.Server) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for srv.Peers() == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := listen(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = srv.Close()
		srv.Wait()
	}()

	if level > 0 {
		steps, err := fakeproducer.LevelLockScript(level, rate, pause)
		if err != nil {
			return printer.Error("invalid script", err.Error(), []string{"Use --level 1..12 and a positive --rate"})
		}
		go func() {
			if err := waitPeer(ctx, srv); err != nil {
				return
			}
			if err := srv.Play(ctx, steps); err != nil {
				return
			}
			logger.Get().Info(ctx, "finalize script played", logger.Int("level", level), logger.Int("rate", rate))
		}()
	}

	<-ctx.Done()
	return nil
}

func runSmoke(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := listen(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = srv.Close()
		srv.Wait()
	}()

	cfg := &smoke.Config{
		BaseURL: baseURL,
		Timeout: timeout,
		Wait:    wait,
		Level:   smokeLevel,
		Rate:    smokeRate,
		Pause:   smokePause,
		Zeny:    zeny,
	}
	if _, err := smoke.Run(ctx, cfg, srv); err != nil {
		return printer.Error("smoke run failed", err.Error(),
			[]string{"Check that the bridge is running and dials " + network + " " + address})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "smoke run passed")
	return nil
}
