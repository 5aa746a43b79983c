package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/ssr3bridge/internal/app"
	"github.com/okian/ssr3bridge/internal/printer"
)

var (
	monitorKeys     []string
	monitorInterval time.Duration
	monitorNoColor  bool
	monitorOnce     bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print the producer values as they change",
	Long: `Connects to the producer and prints the reconciled values, marking the
keys changed by the latest message, followed by the derived view.

Examples:
  # Watch everything
  ssr3bridge monitor

  # Only the noise registers, at most twice a second
  ssr3bridge monitor --keys NOISE --interval 500ms`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringSliceVarP(&monitorKeys, "keys", "k", nil, "Only show keys with these prefixes")
	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", 250*time.Millisecond, "Minimum delay between redraws")
	monitorCmd.Flags().BoolVar(&monitorNoColor, "no-color", false, "Disable colour output")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "Print the first snapshot after connecting and exit")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	opts, err := serviceOptions(cfg)
	if err != nil {
		return err
	}
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	if monitorNoColor {
		printer.DisableColor()
	}
	p := printer.New(cmd.OutOrStdout(), monitorKeys...)
	return watch(ctx, svc, p, monitorInterval, monitorOnce)
}

// watch redraws on every published revision, at most once per interval.
// With once set it returns after the first frame showing a full snapshot.
func watch(ctx context.Context, svc *service.Service, p *printer.Printer, interval time.Duration, once bool) error {
	updates := svc.Subscribe(ctx)
	var last uint64
	draw := func() bool {
		snap := svc.Snapshot()
		if snap.Revision == last && last != 0 {
			return false
		}
		last = snap.Revision
		p.Frame(snap, svc.DerivedAt(snap))
		return snap.Len() > 0
	}

	if draw() && once {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			if draw() && once {
				return nil
			}
			if interval > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		}
	}
}
