package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/HyperAfnan/hypr-switcher/internal/instance"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Step the open switcher's selection",
	Long: `Step the selection of an already open switcher. Unlike run, this never
opens a new switcher; it fails if no primary instance is running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backward, _ := cmd.Flags().GetBool("backward")
		step := instance.CmdCycle
		if backward {
			step = instance.CmdCycleBackward
		}
		return sendToPrimary(step)
	},
}

func init() {
	cycleCmd.Flags().Bool("backward", false, "cycle backward instead of forward")
	rootCmd.AddCommand(cycleCmd)
}

// sendToPrimary delivers one command to the running primary, failing when
// there is none.
func sendToPrimary(cmd instance.Command) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	coord, err := instance.NewCoordinator()
	if err != nil {
		return err
	}
	sent, err := forwardToPrimary(coord, cmd)
	if err != nil {
		return err
	}
	if !sent {
		return errors.New("no switcher is running")
	}
	return nil
}
