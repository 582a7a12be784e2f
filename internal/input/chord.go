// Package input interprets raw keyboard and focus signals from the display
// collaborator into the edge-triggered flags the event loop acts on. All
// state lives here; callbacks mutate it and the loop consumes it, both on
// the loop goroutine.
package input

import (
	"time"

	"github.com/HyperAfnan/hypr-switcher/internal/logger"
)

// Sym is the resolved keyboard symbol delivered by the keymap. SymNone
// means the keymap could not resolve the key and the raw hardware code is
// the only signal.
type Sym int

const (
	SymNone Sym = iota
	SymEscape
	SymTab
	SymAlt
	SymShift
	SymOther
)

// Raw evdev fallback codes, used when no keymap is loaded.
const (
	rawEscape     = 1
	rawTab        = 15
	rawAltLeft    = 56
	rawAltRight   = 100
	rawShiftLeft  = 42
	rawShiftRight = 54
)

// DefaultChordTolerance is the window after an Alt press within which a
// focus loss is interpreted as an Alt-driven chord completion rather than a
// real focus loss.
const DefaultChordTolerance = 500 * time.Millisecond

// Detector tracks modifier state and raises one-shot flags for the event
// loop. Every *Pressed/*Triggered/*Lost query consumes its flag; ShiftDown
// is a level, not an edge.
type Detector struct {
	tolerance time.Duration

	altDown   bool
	shiftDown bool
	hasFocus  bool

	lastAltPressMs uint32
	lastKeyMs      uint32

	escapeFlag    bool
	chordFlag     bool
	focusLostFlag bool

	// Set when a chord fires; AltReleased reports once when Alt comes back
	// up while armed.
	chordArmed bool
}

// NewDetector builds a detector. A non-positive tolerance selects the
// default.
func NewDetector(tolerance time.Duration) *Detector {
	if tolerance <= 0 {
		tolerance = DefaultChordTolerance
	}
	return &Detector{tolerance: tolerance}
}

// HandleFocusGained resets modifier tracking for the new focus.
func (d *Detector) HandleFocusGained() {
	d.altDown = false
	d.hasFocus = true
	logger.WithComponent("input").Debug().Msg("keyboard focus gained")
}

// HandleFocusLost classifies a focus loss. A loss arriving hard on the
// heels of an Alt press is the compositor taking focus as part of the chord
// and is reported as a chord, not a focus loss.
func (d *Detector) HandleFocusLost() {
	if d.isAltDrivenLeave() {
		d.chordFlag = true
		d.chordArmed = true
		logger.WithComponent("input").Debug().Msg("focus loss within chord tolerance, treating as chord")
	} else {
		d.focusLostFlag = true
		logger.WithComponent("input").Debug().Msg("keyboard focus lost")
	}
	d.altDown = false
	d.hasFocus = false
}

// isAltDrivenLeave is the chord-inference heuristic, kept as its own
// function so the tolerance behavior is testable in isolation.
func (d *Detector) isAltDrivenLeave() bool {
	// Strictly after: the Alt press itself updates lastKeyMs, so a leave
	// following a lone Alt press is a genuine focus loss, not a chord.
	if d.lastAltPressMs == 0 || d.lastKeyMs <= d.lastAltPressMs {
		return false
	}
	delta := time.Duration(d.lastKeyMs-d.lastAltPressMs) * time.Millisecond
	return delta < d.tolerance
}

// HandleKey processes one key press or release. The resolved symbol wins;
// the raw hardware code covers sessions with no keymap loaded.
func (d *Detector) HandleKey(sym Sym, rawCode uint32, pressed bool, timeMs uint32) {
	isEscape := sym == SymEscape || (sym == SymNone && rawCode == rawEscape)
	isTab := sym == SymTab || (sym == SymNone && rawCode == rawTab)
	isAlt := sym == SymAlt || (sym == SymNone && (rawCode == rawAltLeft || rawCode == rawAltRight))
	isShift := sym == SymShift || (sym == SymNone && (rawCode == rawShiftLeft || rawCode == rawShiftRight))

	if !pressed {
		if isAlt {
			d.altDown = false
		}
		if isShift {
			d.shiftDown = false
		}
		return
	}

	d.lastKeyMs = timeMs

	switch {
	case isEscape:
		d.escapeFlag = true
	case isTab:
		if d.altDown {
			d.chordFlag = true
			d.chordArmed = true
			logger.WithComponent("input").Debug().Msg("alt+tab chord")
		}
	case isAlt:
		d.altDown = true
		d.lastAltPressMs = timeMs
	case isShift:
		d.shiftDown = true
	}
}

// HandleModifiers mirrors the effective modifier mask from the keymap
// state; it keeps Alt and Shift levels honest when key events were missed.
func (d *Detector) HandleModifiers(altActive, shiftActive bool) {
	d.altDown = altActive
	d.shiftDown = shiftActive
}

// FocusLost reports a genuine focus loss once per occurrence.
func (d *Detector) FocusLost() bool {
	v := d.focusLostFlag
	d.focusLostFlag = false
	return v
}

// EscapePressed reports an Escape press once per occurrence.
func (d *Detector) EscapePressed() bool {
	v := d.escapeFlag
	d.escapeFlag = false
	return v
}

// AltTabTriggered reports a completed chord once per occurrence.
func (d *Detector) AltTabTriggered() bool {
	v := d.chordFlag
	d.chordFlag = false
	return v
}

// AltReleased reports once when Alt has come back up after a chord fired.
// The release itself only clears the level; the edge is observed here.
func (d *Detector) AltReleased() bool {
	if d.chordArmed && !d.altDown {
		d.chordArmed = false
		return true
	}
	return false
}

// ShiftDown reports the current Shift level.
func (d *Detector) ShiftDown() bool {
	return d.shiftDown
}

// HasFocus reports whether the overlay currently holds keyboard focus.
func (d *Detector) HasFocus() bool {
	return d.hasFocus
}

// ClearAll drops every pending flag and arms nothing.
func (d *Detector) ClearAll() {
	d.escapeFlag = false
	d.chordFlag = false
	d.focusLostFlag = false
	d.chordArmed = false
}
