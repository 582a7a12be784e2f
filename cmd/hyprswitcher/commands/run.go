package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/HyperAfnan/hypr-switcher/internal/app"
	"github.com/HyperAfnan/hypr-switcher/internal/config"
	"github.com/HyperAfnan/hypr-switcher/internal/hypr"
	"github.com/HyperAfnan/hypr-switcher/internal/input"
	"github.com/HyperAfnan/hypr-switcher/internal/instance"
	"github.com/HyperAfnan/hypr-switcher/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the switcher, or step it if one is already open",
	Long: `Open the window switcher as the primary instance. If a primary is
already running, forward one cycle step to it instead and exit immediately.`,
	Example: `  # First press opens the switcher, repeated presses step forward
  hyprswitcher run

  # Step backward (bind to ALT SHIFT Tab)
  hyprswitcher run --backward`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("backward", false, "cycle backward instead of forward")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	mgr, err := loadConfig()
	if err != nil {
		return err
	}
	backward, _ := cmd.Flags().GetBool("backward")

	coord, err := instance.NewCoordinator()
	if err != nil {
		return fmt.Errorf("failed to set up instance coordination: %w", err)
	}

	step := instance.CmdCycle
	if backward {
		step = instance.CmdCycleBackward
	}

	// Helper fast path: a primary already owns the overlay.
	if sent, err := forwardToPrimary(coord, step); err != nil {
		return err
	} else if sent {
		return nil
	}

	if err := coord.Acquire(); err != nil {
		if errors.Is(err, instance.ErrPrimaryExists) {
			// Lost the election race; the winner takes the step instead.
			if sent, err := forwardToPrimary(coord, step); err != nil {
				return err
			} else if sent {
				return nil
			}
			return errors.New("primary instance exists but is not accepting commands")
		}
		return fmt.Errorf("failed to become primary instance: %w", err)
	}
	defer coord.Cleanup()

	return runPrimary(mgr, coord, backward)
}

// forwardToPrimary sends one command to a running primary. The false return
// with nil error means no primary is running.
func forwardToPrimary(coord *instance.Coordinator, cmd instance.Command) (bool, error) {
	conn, err := coord.TryConnectExisting()
	if errors.Is(err, instance.ErrNoPrimary) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to reach primary instance: %w", err)
	}
	defer conn.Close()
	if err := instance.Send(conn, cmd); err != nil {
		return false, fmt.Errorf("failed to send %s to primary instance: %w", cmd, err)
	}
	return true, nil
}

// runPrimary owns the overlay session: compositor connections, the command
// socket, and the event loop, until commit/cancel/signal.
func runPrimary(mgr *config.Manager, coord *instance.Coordinator, backward bool) error {
	log := logger.WithComponent("main")
	cfg := mgr.Get()

	client, err := hypr.NewClient()
	if err != nil {
		return fmt.Errorf("failed to set up compositor client: %w", err)
	}
	if err := client.Probe(); err != nil {
		return fmt.Errorf("compositor control socket unreachable: %w", err)
	}

	stream, err := hypr.ConnectEvents()
	if err != nil {
		return fmt.Errorf("failed to connect compositor event socket: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr.Watch()
	go coord.Run(ctx)
	go stream.Run(ctx)

	detector := input.NewDetector(time.Duration(cfg.ChordToleranceMs) * time.Millisecond)
	loop := app.New(
		cfg,
		client,
		stream.Events(),
		coord.Commands(),
		detector,
		app.NewHeadlessRenderer(),
		app.NewHeadlessDisplay(),
		stream.Disconnect,
		coord.Cleanup,
	)

	loop.Configure()
	if backward {
		// A backward first press lands on the least recently used window.
		loop.Session().SetSelection(-1, true)
	}

	log.Info().Int("windows", loop.Session().Len()).Msg("switcher open")
	loop.Run(ctx)
	return nil
}
