// Package app runs the primary instance: it multiplexes the compositor
// event stream, helper commands, and keyboard edges into session updates,
// and owns the orderly shutdown of all of them.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/HyperAfnan/hypr-switcher/internal/config"
	"github.com/HyperAfnan/hypr-switcher/internal/hypr"
	"github.com/HyperAfnan/hypr-switcher/internal/input"
	"github.com/HyperAfnan/hypr-switcher/internal/instance"
	"github.com/HyperAfnan/hypr-switcher/internal/logger"
	"github.com/HyperAfnan/hypr-switcher/internal/session"
)

// Compositor is the slice of the control-socket client the loop needs.
// *hypr.Client satisfies it; tests substitute fakes.
type Compositor interface {
	Clients() ([]hypr.ClientWindow, error)
	FocusClient(hypr.ClientWindow) error
}

// tickInterval bounds how long the loop blocks with no socket activity, so
// keyboard-callback edges are still observed promptly.
const tickInterval = 50 * time.Millisecond

// Loop is the primary instance's scheduler. Everything it touches runs on
// the one goroutine executing Run; the socket reader goroutines communicate
// only through their channels.
type Loop struct {
	cfg        config.Config
	compositor Compositor
	events     <-chan hypr.Event
	commands   <-chan instance.Command
	detector   *input.Detector
	sess       *session.Session
	renderer   Renderer
	display    Display

	// Teardown hooks, each called once: onDisconnect drops the compositor
	// event connection before loop-owned state is released, onCleanup
	// closes the instance socket after everything else.
	onDisconnect func()
	onCleanup    func()

	width  int
	height int

	dirty       bool
	needsRedraw bool
	running     bool

	log *zerolog.Logger
}

// New assembles a loop. The command and event channels come from the
// coordinator's and event stream's reader goroutines.
func New(
	cfg config.Config,
	compositor Compositor,
	events <-chan hypr.Event,
	commands <-chan instance.Command,
	detector *input.Detector,
	renderer Renderer,
	display Display,
	onDisconnect func(),
	onCleanup func(),
) *Loop {
	return &Loop{
		cfg:          cfg,
		compositor:   compositor,
		events:       events,
		commands:     commands,
		detector:     detector,
		sess:         session.New(),
		renderer:     renderer,
		display:      display,
		onDisconnect: onDisconnect,
		onCleanup:    onCleanup,
		width:        cfg.OverlayWidth,
		height:       overlayHeight(1, cfg.ItemHeight, cfg.Padding),
		log:          logger.WithComponent("loop"),
	}
}

// Session exposes the loop's session state, for the configure callback and
// tests.
func (l *Loop) Session() *session.Session {
	return l.sess
}

// Configure performs the initial window fetch once the overlay surface is
// configured, sizing the surface to the list.
func (l *Loop) Configure() {
	windows, err := l.compositor.Clients()
	if err != nil {
		l.log.Warn().Err(err).Msg("initial window list fetch failed")
		windows = nil
	}
	l.sess.Initialize(windows)
	l.resizeToFit()
	l.needsRedraw = true
}

// Run drives the loop until shutdown. It returns after all loop-owned
// resources are released.
func (l *Loop) Run(ctx context.Context) {
	l.running = true
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for l.running {
		// Ordered checks; see the blocking select at the bottom for the
		// wakeup sources.
		if err := l.display.DispatchPending(); err != nil {
			l.log.Error().Err(err).Msg("display connection lost")
			l.shutdown()
			break
		}

		l.drainEvents()
		if !l.running {
			break
		}

		if l.dirty {
			l.refresh()
		}

		l.drainCommands()
		if !l.running {
			break
		}

		l.checkInputEdges()
		if !l.running {
			break
		}

		if l.needsRedraw {
			l.redraw()
		}

		if err := l.display.Flush(); err != nil {
			l.log.Error().Err(err).Msg("display flush failed")
			l.shutdown()
			break
		}

		select {
		case <-ctx.Done():
			l.shutdown()
		case ev, ok := <-l.events:
			if !ok {
				l.log.Warn().Msg("event stream closed")
				l.shutdown()
				break
			}
			l.handleEvent(ev)
		case cmd, ok := <-l.commands:
			if !ok {
				l.log.Warn().Msg("command channel closed")
				l.shutdown()
				break
			}
			l.handleCommand(cmd)
		case <-ticker.C:
		}
	}
}

// drainEvents consumes every already-buffered compositor event without
// blocking.
func (l *Loop) drainEvents() {
	for {
		select {
		case ev, ok := <-l.events:
			if !ok {
				l.log.Warn().Msg("event stream closed")
				l.shutdown()
				return
			}
			l.handleEvent(ev)
		default:
			return
		}
	}
}

func (l *Loop) handleEvent(ev hypr.Event) {
	switch ev.Type {
	case hypr.EventOpenWindow:
		l.log.Debug().Str("address", ev.Address).Str("class", ev.Class).Msg("window opened")
		l.dirty = true
	case hypr.EventCloseWindow:
		l.log.Debug().Str("address", ev.Address).Msg("window closed")
		l.dirty = true
		if ev.Address != "" && ev.Address == l.sess.InitialAddress() {
			l.log.Debug().Msg("initial focus window closed")
			l.sess.ClearInitial()
		}
	case hypr.EventMoveWindow:
		l.log.Debug().Str("address", ev.Address).Int("workspace", ev.WorkspaceID).Msg("window moved")
		l.dirty = true
	case hypr.EventActiveWindow:
		// Focus changes under the open overlay do not alter the list.
		l.log.Debug().Str("class", ev.Class).Msg("active window changed")
	}
}

// refresh replaces the session's window list from a fresh query and
// resizes the surface when the visible item count changed its height
// requirement.
func (l *Loop) refresh() {
	l.dirty = false
	windows, err := l.compositor.Clients()
	if err != nil {
		l.log.Warn().Err(err).Msg("window list refresh failed, keeping stale list")
		return
	}
	l.sess.Refresh(windows)
	l.resizeToFit()
	l.needsRedraw = true
}

func (l *Loop) resizeToFit() {
	if l.sess.Len() == 0 {
		return
	}
	visible := visibleItems(l.sess.Len(), l.cfg.MaxVisibleItems)
	desired := overlayHeight(visible, l.cfg.ItemHeight, l.cfg.Padding)
	if desired != l.height {
		l.height = desired
		l.renderer.Resize(l.width, l.height)
		l.log.Debug().Int("width", l.width).Int("height", l.height).Msg("overlay resized")
	}
}

// drainCommands consumes every pending helper command without blocking.
func (l *Loop) drainCommands() {
	for {
		select {
		case cmd, ok := <-l.commands:
			if !ok {
				l.log.Warn().Msg("command channel closed")
				l.shutdown()
				return
			}
			l.handleCommand(cmd)
			if !l.running {
				return
			}
		default:
			return
		}
	}
}

func (l *Loop) handleCommand(cmd instance.Command) {
	switch cmd {
	case instance.CmdCycle:
		l.sess.CycleForward()
		l.needsRedraw = true
	case instance.CmdCycleBackward:
		l.sess.CycleBackward()
		l.needsRedraw = true
	case instance.CmdCommit:
		l.log.Info().Msg("commit requested")
		l.focusSelected()
		l.shutdown()
	case instance.CmdCancel:
		l.log.Info().Msg("cancel requested")
		l.restoreInitialFocus()
		l.shutdown()
	case instance.CmdUnknown:
		l.log.Warn().Msg("ignoring unknown helper command")
	}
}

// checkInputEdges handles keyboard-driven edges in fixed priority:
// focus loss, escape, chord, alt release.
func (l *Loop) checkInputEdges() {
	if l.detector.FocusLost() {
		l.log.Info().Msg("focus lost, committing current selection")
		l.focusSelected()
		l.shutdown()
		return
	}
	if l.detector.EscapePressed() {
		l.log.Info().Msg("escape pressed, restoring initial focus")
		l.restoreInitialFocus()
		l.shutdown()
		return
	}
	if l.detector.AltTabTriggered() {
		if l.detector.ShiftDown() {
			l.sess.CycleBackward()
		} else {
			l.sess.CycleForward()
		}
		l.needsRedraw = true
	}
	if l.detector.AltReleased() {
		l.log.Info().Msg("alt released, committing current selection")
		l.focusSelected()
		l.shutdown()
	}
}

func (l *Loop) focusSelected() {
	selected, ok := l.sess.Selected()
	if !ok {
		l.log.Warn().Msg("no selection to focus")
		return
	}
	if err := l.compositor.FocusClient(selected); err != nil {
		// The overlay still closes; the user just keeps their old focus.
		l.log.Warn().Err(err).Str("address", selected.Address).Msg("focus attempt failed")
	}
}

// restoreInitialFocus returns focus to the window that was focused at
// session start. When that window dropped out of the list between the
// event and the refresh, it falls back to a bare address dispatch, then to
// the entry at the initial position (front of the list, the most recently
// focused window).
func (l *Loop) restoreInitialFocus() {
	if initial, ok := l.sess.Initial(); ok {
		if err := l.compositor.FocusClient(initial); err != nil {
			l.log.Warn().Err(err).Msg("failed to restore initial focus")
		}
		return
	}
	if addr := l.sess.InitialAddress(); addr != "" {
		err := l.compositor.FocusClient(hypr.ClientWindow{Address: addr})
		if err == nil {
			return
		}
		if !errors.Is(err, hypr.ErrFocusFailed) {
			l.log.Warn().Err(err).Msg("failed to restore initial focus by address")
			return
		}
		if front, ok := l.sess.At(0); ok {
			l.log.Debug().Msg("initial window unreachable, focusing most recent instead")
			if err := l.compositor.FocusClient(front); err != nil {
				l.log.Warn().Err(err).Msg("fallback focus failed")
			}
			return
		}
	}
	l.log.Debug().Msg("no initial focus to restore")
}

func (l *Loop) redraw() {
	l.needsRedraw = false
	titles := l.sess.DisplayTitles()
	if err := l.renderer.Draw(titles, l.sess.SelectionIndex(), l.width, l.height); err != nil {
		l.log.Warn().Err(err).Msg("redraw failed")
	}
}

// shutdown releases loop-owned state in dependency order: consumers before
// the transports they depend on. Idempotent via the running flag; the
// coordinator's own cleanup is idempotent as well.
func (l *Loop) shutdown() {
	if !l.running {
		return
	}
	l.running = false
	l.log.Debug().Msg("shutting down")

	if l.onDisconnect != nil {
		l.onDisconnect()
	}
	l.renderer.Destroy()
	l.sess = session.New()
	l.detector.ClearAll()
	l.display.Close()
	if l.onCleanup != nil {
		l.onCleanup()
	}
	l.log.Info().Msg("shutdown complete")
}
