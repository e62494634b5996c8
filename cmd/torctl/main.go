package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/onionops/torctl/pkg/commands"
	"github.com/onionops/torctl/pkg/constants"
	"github.com/onionops/torctl/pkg/ui"
	"github.com/onionops/torctl/pkg/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

func init() {
	version.Version = buildVersion
	version.Commit = buildCommit
	version.Date = buildDate
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal cancels the context so running proxies stop cleanly;
	// a second signal falls through to the default handler.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
		signal.Stop(sigChan)
	}()

	// Logs are hidden by default and only shown when --verbose is enabled.
	logWriter := ui.NewConditionalWriter(os.Stdout, false)
	log := logrus.New()
	log.SetOutput(logWriter)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	rootCmd := &cobra.Command{
		Use:     "torctl",
		Short:   "Manage local tor SOCKS proxy processes",
		Long:    `torctl starts and supervises local tor daemon processes, exposing their SOCKS5 endpoints for callers to use.`,
		Version: version.GetFullVersion(),
	}

	var (
		configPath string
		logLevel   string
		verbose    bool
	)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", constants.DefaultConfigFile, "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (show all logs)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}

		log.SetLevel(level)
		logWriter.SetEnabled(verbose)

		return nil
	}

	rootCmd.AddCommand(commands.NewUpCommand(log))
	rootCmd.AddCommand(commands.NewCheckCommand(log))
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
