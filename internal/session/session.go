// Package session owns the ordered window list and the selection cursor of
// one primary run. All methods are called from the event loop goroutine;
// the type is not safe for concurrent use.
package session

import (
	"github.com/HyperAfnan/hypr-switcher/internal/hypr"
	"github.com/HyperAfnan/hypr-switcher/internal/logger"
)

// Session tracks the window list in focus-history order together with the
// selection cursor. Selection identity is the window address, so the cursor
// survives list refreshes even when positions move.
type Session struct {
	windows []hypr.ClientWindow

	selectionIndex  int
	selectedAddress string

	// Captured once at session start; Cancel restores focus to it.
	initialFocusAddress string
}

// New returns an empty session with no selection.
func New() *Session {
	return &Session{selectionIndex: -1}
}

// Initialize installs the first window list. The list is sorted by focus
// recency; the currently focused entry becomes the initial-focus anchor and
// selection starts on the second most-recent entry so a single chord
// switches to the previous window.
func (s *Session) Initialize(windows []hypr.ClientWindow) {
	hypr.SortByFocusHistory(windows)
	s.windows = windows

	s.initialFocusAddress = ""
	if len(windows) > 0 {
		if windows[0].Focused() || len(windows) == 1 {
			s.initialFocusAddress = windows[0].Address
		}
	}

	switch {
	case len(windows) >= 2:
		s.SetSelection(1, false)
	case len(windows) == 1:
		s.SetSelection(0, false)
	default:
		s.SetSelection(-1, false)
	}

	logger.WithComponent("session").Debug().
		Int("windows", len(windows)).
		Int("selection", s.selectionIndex).
		Str("initial", s.initialFocusAddress).
		Msg("session initialized")
}

// Refresh replaces the window list wholesale and relocates the selection:
// by address when the previously selected window survived, otherwise by
// reclamping the previous numeric index into the new bounds.
func (s *Session) Refresh(windows []hypr.ClientWindow) {
	hypr.SortByFocusHistory(windows)
	prevAddress := s.selectedAddress
	prevIndex := s.selectionIndex
	s.windows = windows

	if prevAddress != "" {
		if idx := s.indexOf(prevAddress); idx >= 0 {
			s.SetSelection(idx, false)
			logger.WithComponent("session").Debug().
				Int("index", idx).
				Str("address", prevAddress).
				Msg("selection preserved across refresh")
			return
		}
	}
	s.SetSelection(prevIndex, false)
}

// SetSelection moves the cursor. With wrap the index is taken modulo the
// list length; without it the index clamps to the valid range. An empty
// list always forces -1. The selected address is recomputed on every call.
func (s *Session) SetSelection(index int, wrap bool) {
	if len(s.windows) == 0 {
		s.selectionIndex = -1
		s.selectedAddress = ""
		return
	}

	n := len(s.windows)
	if index < 0 {
		if wrap {
			index = n - 1
		} else {
			index = 0
		}
	} else if index >= n {
		if wrap {
			index = 0
		} else {
			index = n - 1
		}
	}

	s.selectionIndex = index
	s.selectedAddress = s.windows[index].Address
}

// CycleForward advances the selection, wrapping at the end.
func (s *Session) CycleForward() {
	if len(s.windows) > 0 {
		s.SetSelection(s.selectionIndex+1, true)
	}
}

// CycleBackward retreats the selection, wrapping at the start.
func (s *Session) CycleBackward() {
	if len(s.windows) > 0 {
		s.SetSelection(s.selectionIndex-1, true)
	}
}

// Selected returns the window under the cursor.
func (s *Session) Selected() (hypr.ClientWindow, bool) {
	if s.selectionIndex < 0 || s.selectionIndex >= len(s.windows) {
		return hypr.ClientWindow{}, false
	}
	return s.windows[s.selectionIndex], true
}

// At returns the window at the given position.
func (s *Session) At(index int) (hypr.ClientWindow, bool) {
	if index < 0 || index >= len(s.windows) {
		return hypr.ClientWindow{}, false
	}
	return s.windows[index], true
}

// SelectionIndex returns the cursor position, -1 when the list is empty.
func (s *Session) SelectionIndex() int {
	return s.selectionIndex
}

// Len returns the number of windows in the session.
func (s *Session) Len() int {
	return len(s.windows)
}

// Initial returns the window that was focused when the session started, if
// it still exists in the current list.
func (s *Session) Initial() (hypr.ClientWindow, bool) {
	if s.initialFocusAddress == "" {
		return hypr.ClientWindow{}, false
	}
	if idx := s.indexOf(s.initialFocusAddress); idx >= 0 {
		return s.windows[idx], true
	}
	return hypr.ClientWindow{}, false
}

// InitialAddress returns the initial-focus anchor address, "" when cleared.
func (s *Session) InitialAddress() string {
	return s.initialFocusAddress
}

// ClearInitial drops the initial-focus anchor. Called when the compositor
// reports that window closed.
func (s *Session) ClearInitial() {
	s.initialFocusAddress = ""
}

// DisplayTitles builds the renderer-facing strings: appClass preferred,
// title as fallback, placeholder otherwise. The strings are built fresh on
// every call so the renderer never aliases window-list memory that a later
// refresh replaces.
func (s *Session) DisplayTitles() []string {
	titles := make([]string, len(s.windows))
	for i, w := range s.windows {
		switch {
		case w.AppClass != "":
			titles[i] = cloneString(w.AppClass)
		case w.Title != "":
			titles[i] = cloneString(w.Title)
		default:
			titles[i] = hypr.UntitledPlaceholder
		}
	}
	return titles
}

func (s *Session) indexOf(address string) int {
	for i, w := range s.windows {
		if w.Address == address {
			return i
		}
	}
	return -1
}

func cloneString(v string) string {
	return string(append([]byte(nil), v...))
}
