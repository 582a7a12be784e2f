package hypr

import "sort"

// UntitledPlaceholder substitutes for windows the compositor reports with a
// blank title.
const UntitledPlaceholder = "(untitled)"

// ClientWindow is one managed window as reported by the compositor. The
// address is the stable identity; everything else may change between
// refreshes, so the whole value is replaced wholesale.
type ClientWindow struct {
	Address        string
	Title          string
	AppClass       string
	WorkspaceID    int
	PID            int
	FocusHistoryID int
}

// Focused reports whether the compositor considers this window currently
// focused (focus history rank 0).
func (w ClientWindow) Focused() bool {
	return w.FocusHistoryID == 0
}

// SortByFocusHistory orders windows most-recently-focused first. Windows
// with unknown history (rank < 0) sink to the end, preserving their
// relative order.
func SortByFocusHistory(windows []ClientWindow) {
	sort.SliceStable(windows, func(i, j int) bool {
		a, b := windows[i].FocusHistoryID, windows[j].FocusHistoryID
		if a < 0 {
			return false
		}
		if b < 0 {
			return true
		}
		return a < b
	})
}

// EventType tags a compositor push event.
type EventType int

const (
	EventNone EventType = iota
	EventOpenWindow
	EventCloseWindow
	EventActiveWindow
	EventMoveWindow
	EventUnknown
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventNone:
		return "none"
	case EventOpenWindow:
		return "openwindow"
	case EventCloseWindow:
		return "closewindow"
	case EventActiveWindow:
		return "activewindow"
	case EventMoveWindow:
		return "movewindow"
	case EventUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Event is one parsed line from the compositor event socket. Field usage
// depends on Type: OpenWindow fills everything, CloseWindow only Address,
// ActiveWindow Class+Title, MoveWindow Address+WorkspaceID.
type Event struct {
	Type        EventType
	Address     string
	Class       string
	Title       string
	WorkspaceID int
}
