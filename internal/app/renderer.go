package app

// Renderer composites the overlay surface. Implementations live outside
// this module (layer-shell drawing is a collaborator, not core); the loop
// only ever hands it freshly built display strings.
type Renderer interface {
	// Draw composites the item list with the given selection highlighted.
	Draw(titles []string, selected int, width, height int) error
	// Resize adjusts the surface to a new height requirement.
	Resize(width, height int)
	// Destroy releases surface resources. Called exactly once at shutdown.
	Destroy()
}

// Display is the display-protocol collaborator. DispatchPending drains
// already-buffered display events, which drives the keyboard and focus
// callbacks into the chord detector.
type Display interface {
	DispatchPending() error
	Flush() error
	Close()
}

// maxOverlayHeight caps the surface height regardless of window count.
const maxOverlayHeight = 4096

// overlayHeight computes the surface height for a visible item count,
// clamped between one item and the overall cap.
func overlayHeight(visibleCount, itemHeight, padding int) int {
	h := visibleCount*itemHeight + 2*padding
	if h > maxOverlayHeight {
		h = maxOverlayHeight
	}
	if min := itemHeight + 2*padding; h < min {
		h = min
	}
	return h
}

// visibleItems clamps the item count to the configured maximum; a
// non-positive maximum means unlimited.
func visibleItems(count, maxVisible int) int {
	if maxVisible > 0 && count > maxVisible {
		return maxVisible
	}
	return count
}
