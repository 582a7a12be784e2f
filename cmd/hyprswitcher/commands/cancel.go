package commands

import (
	"github.com/spf13/cobra"

	"github.com/HyperAfnan/hypr-switcher/internal/instance"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Close the switcher and restore the original focus",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendToPrimary(instance.CmdCancel)
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
