package commands

import (
	"fmt"

	"github.com/onionops/torctl/pkg/version"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("torctl %s\n", version.GetFullVersion())
		},
	}
}
