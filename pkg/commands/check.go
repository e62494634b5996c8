package commands

import (
	"fmt"
	"os/exec"

	"github.com/onionops/torctl/pkg/config"
	"github.com/onionops/torctl/pkg/portutil"
	"github.com/onionops/torctl/pkg/ui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(log logrus.FieldLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the tor executable and any fixed ports",
		Long:  `Verify that the configured tor executable exists and that fixed ports, if any, are not already in use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			torPath, err := exec.LookPath(cfg.Tor.Path)
			if err != nil {
				ui.Error(fmt.Sprintf("tor executable %q not found", cfg.Tor.Path))

				return err
			}

			ui.Success(fmt.Sprintf("tor executable found at %s", torPath))

			var ports []int
			if cfg.Tor.SocksPort != 0 {
				ports = append(ports, cfg.Tor.SocksPort)
			}

			if cfg.Tor.ControlPort != 0 {
				ports = append(ports, cfg.Tor.ControlPort)
			}

			if len(ports) == 0 {
				ui.Info("No fixed ports configured; ports will be allocated dynamically")

				return nil
			}

			conflicts := portutil.CheckPorts(ports)
			if len(conflicts) == 0 {
				ui.Success("All fixed ports are available")

				return nil
			}

			fmt.Print(portutil.FormatConflicts(conflicts))

			return fmt.Errorf("%d port conflict(s) found", len(conflicts))
		},
	}
}
