// Package commands implements the torctl CLI commands.
package commands

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/onionops/torctl/pkg/config"
	"github.com/onionops/torctl/pkg/torproxy"
	"github.com/onionops/torctl/pkg/ui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewUpCommand creates the up command.
func NewUpCommand(log logrus.FieldLogger) *cobra.Command {
	var instances int

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start tor proxies and keep them running",
		Long:  `Start one or more tor proxies, print their SOCKS5 addresses, and keep them running until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if instances > 0 {
				cfg.Instances = instances

				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			return runUp(cmd.Context(), log, cfg)
		},
	}

	cmd.Flags().IntVarP(&instances, "instances", "n", 0, "Number of tor instances to run (overrides config)")

	return cmd
}

func runUp(ctx context.Context, log logrus.FieldLogger, cfg *config.Config) error {
	torPath, err := exec.LookPath(cfg.Tor.Path)
	if err != nil {
		return fmt.Errorf("tor executable %q not found: %w", cfg.Tor.Path, err)
	}

	proxies := make([]*torproxy.Proxy, 0, cfg.Instances)

	for i := 0; i < cfg.Instances; i++ {
		opts := torproxy.Options{
			TorOptions:   cfg.Tor.Options,
			ReadyTimeout: time.Duration(cfg.Tor.ReadyTimeoutSeconds) * time.Second,
		}

		// Fixed ports only make sense for a single instance; Validate
		// rejects the combination otherwise.
		if i == 0 {
			opts.SocksPort = cfg.Tor.SocksPort
			opts.ControlPort = cfg.Tor.ControlPort
		}

		proxy, err := torproxy.New(log, torPath, opts)
		if err != nil {
			return err
		}

		proxies = append(proxies, proxy)
	}

	// Every exit path below releases all proxies. Stop is idempotent, so
	// proxies that failed to start (and cleaned themselves up) are fine.
	defer func() {
		for _, proxy := range proxies {
			_ = proxy.Stop()
		}
	}()

	spinner := ui.NewSpinner(fmt.Sprintf("Starting %d tor proxy instance(s)", len(proxies)))

	g, gctx := errgroup.WithContext(ctx)

	for _, proxy := range proxies {
		proxy := proxy
		g.Go(func() error {
			return proxy.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		spinner.Fail("Tor failed to start")

		return err
	}

	spinner.Success("Tor is up")
	ui.Blank()

	for _, proxy := range proxies {
		ui.Success(fmt.Sprintf("SOCKS proxy ready at %s", proxy.SocksAddr()))
	}

	ui.Info("Press Ctrl+C to stop")

	<-ctx.Done()

	ui.Blank()
	ui.Info("Shutting down")

	return nil
}
