// Package smoke drives a fake producer through a scripted session and checks
// what a running bridge reports over HTTP.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/ssr3bridge/internal/domain/levellock"
	"github.com/okian/ssr3bridge/internal/domain/noiselevel"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
	"github.com/okian/ssr3bridge/internal/fakeproducer"
	"github.com/okian/ssr3bridge/pkg/logger"
)

const pollInterval = 20 * time.Millisecond

// ErrTimeout is returned when the bridge never reaches an expected state.
var ErrTimeout = errors.New("timed out waiting for bridge state")

// Run executes the complete smoke session against the bridge at
// cfg.BaseURL, which must be connected (or connecting) to producer.
func Run(ctx context.Context, cfg *Config, producer *fakeproducer.Server) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	log := logger.Get().Named("smoke")

	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("level", cfg.Level),
		logger.Int("rate", cfg.Rate))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	stats.Checks++

	// Step 2: Wait for the bridge to hold the producer snapshot
	if err := waitConnected(ctx, cfg, client, stats); err != nil {
		return stats, fmt.Errorf("bridge never connected: %w", err)
	}
	stats.Checks++

	// Step 3: Write through the API and read it back
	if err := verifyWrite(ctx, cfg, client, producer, stats); err != nil {
		return stats, fmt.Errorf("write round trip failed: %w", err)
	}
	stats.Checks++

	// Step 4: Play the finalize screen and expect a lock
	steps, err := fakeproducer.LevelLockScript(cfg.Level, cfg.Rate, cfg.Pause)
	if err != nil {
		return stats, err
	}
	if err := producer.Play(ctx, steps); err != nil {
		return stats, err
	}
	if err := verifyLocked(ctx, cfg, client, stats); err != nil {
		return stats, fmt.Errorf("level lock failed: %w", err)
	}
	stats.Checks++

	// Step 5: Leave the screen and expect the latch to clear
	if err := producer.Play(ctx, fakeproducer.ReleaseScript(cfg.Pause)); err != nil {
		return stats, err
	}
	if err := verifyReleased(ctx, cfg, client, stats); err != nil {
		return stats, fmt.Errorf("level release failed: %w", err)
	}
	stats.Checks++

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "smoke run passed",
		logger.Int("checks", stats.Checks),
		logger.Int("polls", stats.Polls),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *httpClient) error {
	status, _, err := client.get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}

func waitConnected(ctx context.Context, cfg *Config, client *httpClient, stats *Stats) error {
	return poll(ctx, cfg.Wait, stats, func() (bool, error) {
		var st stateResponse
		if err := client.getJSON(ctx, "/state", &st); err != nil {
			return false, err
		}
		if !st.Connected {
			return false, nil
		}
		var v valueResponse
		err := client.getJSON(ctx, "/values/"+protocol.KeyZeny, &v)
		return err == nil, nil
	})
}

func verifyWrite(ctx context.Context, cfg *Config, client *httpClient, producer *fakeproducer.Server, stats *Stats) error {
	status, body, err := client.post(ctx, "/commands", map[string]any{
		"cmd":    protocol.CmdWrite,
		"target": protocol.KeyZeny,
		"value":  cfg.Zeny,
	})
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		return fmt.Errorf("POST /commands: status %d: %s", status, body)
	}
	return poll(ctx, cfg.Wait, stats, func() (bool, error) {
		if n, ok := producer.Value(protocol.KeyZeny); !ok || int64(n) != cfg.Zeny {
			return false, nil
		}
		var v valueResponse
		if err := client.getJSON(ctx, "/values/"+protocol.KeyZeny, &v); err != nil {
			return false, err
		}
		return int64(v.Number) == cfg.Zeny, nil
	})
}

func verifyLocked(ctx context.Context, cfg *Config, client *httpClient, stats *Stats) error {
	want := noiselevel.Lookup(cfg.Rate, 0)
	return poll(ctx, cfg.Wait, stats, func() (bool, error) {
		var d derivedResponse
		if err := client.getJSON(ctx, "/derived", &d); err != nil {
			return false, err
		}
		if d.Phase != levellock.Locked.String() {
			return false, nil
		}
		if d.Latch.CapturedRate != cfg.Rate {
			return false, fmt.Errorf("captured rate %d, want %d", d.Latch.CapturedRate, cfg.Rate)
		}
		if d.EffectiveLevel == nil || *d.EffectiveLevel < want {
			return false, fmt.Errorf("effective level %v below %d", d.EffectiveLevel, want)
		}
		return true, nil
	})
}

func verifyReleased(ctx context.Context, cfg *Config, client *httpClient, stats *Stats) error {
	return poll(ctx, cfg.Wait, stats, func() (bool, error) {
		var d derivedResponse
		if err := client.getJSON(ctx, "/derived", &d); err != nil {
			return false, err
		}
		return d.Phase == levellock.Free.String(), nil
	})
}

// poll calls check until it reports done, fails, or wait elapses.
func poll(ctx context.Context, wait time.Duration, stats *Stats, check func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		stats.Polls++
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ErrTimeout
		case <-ticker.C:
		}
	}
}
