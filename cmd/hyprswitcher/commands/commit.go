package commands

import (
	"github.com/spf13/cobra"

	"github.com/HyperAfnan/hypr-switcher/internal/instance"
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Focus the selected window and close the switcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendToPrimary(instance.CmdCommit)
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
}
