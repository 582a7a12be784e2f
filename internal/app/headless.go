package app

import (
	"github.com/rs/zerolog"

	"github.com/HyperAfnan/hypr-switcher/internal/logger"
)

// HeadlessRenderer logs the switcher list instead of drawing it. It backs
// the daemon when no overlay surface is wired in, and the loop tests.
type HeadlessRenderer struct {
	log *zerolog.Logger
}

func NewHeadlessRenderer() *HeadlessRenderer {
	return &HeadlessRenderer{log: logger.WithComponent("renderer")}
}

func (r *HeadlessRenderer) Draw(titles []string, selected, width, height int) error {
	r.log.Debug().
		Strs("titles", titles).
		Int("selected", selected).
		Int("width", width).
		Int("height", height).
		Msg("draw")
	return nil
}

func (r *HeadlessRenderer) Resize(width, height int) {}

func (r *HeadlessRenderer) Destroy() {}

// HeadlessDisplay is the Display stand-in for surface-less operation: no
// pending protocol work, nothing to flush.
type HeadlessDisplay struct{}

func NewHeadlessDisplay() *HeadlessDisplay {
	return &HeadlessDisplay{}
}

func (d *HeadlessDisplay) DispatchPending() error { return nil }

func (d *HeadlessDisplay) Flush() error { return nil }

func (d *HeadlessDisplay) Close() {}
