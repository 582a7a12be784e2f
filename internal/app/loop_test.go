package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyperAfnan/hypr-switcher/internal/config"
	"github.com/HyperAfnan/hypr-switcher/internal/hypr"
	"github.com/HyperAfnan/hypr-switcher/internal/input"
	"github.com/HyperAfnan/hypr-switcher/internal/instance"
)

// fakeCompositor serves a canned window list and records focus requests.
// focusFn, when set, decides the outcome per call; focusErr applies to all.
type fakeCompositor struct {
	windows  []hypr.ClientWindow
	focusErr error
	focusFn  func(hypr.ClientWindow) error
	focused  []hypr.ClientWindow
}

func (f *fakeCompositor) Clients() ([]hypr.ClientWindow, error) {
	return append([]hypr.ClientWindow(nil), f.windows...), nil
}

func (f *fakeCompositor) FocusClient(w hypr.ClientWindow) error {
	f.focused = append(f.focused, w)
	if f.focusFn != nil {
		return f.focusFn(w)
	}
	return f.focusErr
}

// fakeRenderer records the last draw.
type fakeRenderer struct {
	draws     int
	titles    []string
	selected  int
	resizes   int
	destroyed bool
}

func (f *fakeRenderer) Draw(titles []string, selected, width, height int) error {
	f.draws++
	f.titles = titles
	f.selected = selected
	return nil
}

func (f *fakeRenderer) Resize(width, height int) { f.resizes++ }
func (f *fakeRenderer) Destroy()                 { f.destroyed = true }

func testConfig() config.Config {
	return config.Config{
		OverlayWidth:     600,
		ItemHeight:       40,
		Padding:          10,
		MaxVisibleItems:  10,
		ChordToleranceMs: 500,
	}
}

func testWindows() []hypr.ClientWindow {
	return []hypr.ClientWindow{
		{Address: "0xa", AppClass: "alpha", FocusHistoryID: 0},
		{Address: "0xb", AppClass: "beta", FocusHistoryID: 1},
		{Address: "0xc", AppClass: "gamma", FocusHistoryID: 2},
	}
}

// loopFixture wires a loop against fakes, with the channels owned by the
// test so events and commands can be injected.
type loopFixture struct {
	loop        *Loop
	compositor  *fakeCompositor
	renderer    *fakeRenderer
	detector    *input.Detector
	events      chan hypr.Event
	commands    chan instance.Command
	disconnects int
	shutdowns   int
}

func newLoopFixture(t *testing.T, windows []hypr.ClientWindow) *loopFixture {
	t.Helper()
	f := &loopFixture{
		compositor: &fakeCompositor{windows: windows},
		renderer:   &fakeRenderer{},
		detector:   input.NewDetector(0),
		events:     make(chan hypr.Event, 16),
		commands:   make(chan instance.Command, 16),
	}
	f.loop = New(
		testConfig(),
		f.compositor,
		f.events,
		f.commands,
		f.detector,
		f.renderer,
		NewHeadlessDisplay(),
		func() { f.disconnects++ },
		func() { f.shutdowns++ },
	)
	return f
}

// run drives the loop to completion within a test deadline.
func (f *loopFixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		f.loop.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("loop did not shut down")
	}
	require.NoError(t, ctx.Err(), "loop should shut down on its own, not via test timeout")
}

func TestConfigureSelectsSecondMostRecent(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	sel, ok := f.loop.Session().Selected()
	require.True(t, ok)
	assert.Equal(t, "0xb", sel.Address)
}

func TestCommitFocusesSelectionAndShutsDown(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()
	f.commands <- instance.CmdCycle  // selection moves to 0xc
	f.commands <- instance.CmdCommit
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xc", f.compositor.focused[0].Address)
	assert.True(t, f.renderer.destroyed)
	assert.Equal(t, 1, f.disconnects)
	assert.Equal(t, 1, f.shutdowns)
}

func TestCancelRestoresInitialFocus(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()
	f.commands <- instance.CmdCycle
	f.commands <- instance.CmdCancel
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xa", f.compositor.focused[0].Address, "cancel returns to the initially focused window")
}

// TestCancelAfterInitialWindowClosed removes the anchor window first; the
// cancel must not focus anything because there is nothing to restore.
func TestCancelAfterInitialWindowClosed(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	f.compositor.windows = testWindows()[1:]
	f.events <- hypr.Event{Type: hypr.EventCloseWindow, Address: "0xa"}
	f.commands <- instance.CmdCancel
	f.run(t)

	assert.Empty(t, f.compositor.focused, "closed anchor leaves nothing to restore")
	assert.Equal(t, 1, f.shutdowns)
}

func TestCycleCommandsMoveSelection(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()
	f.commands <- instance.CmdCycle
	f.commands <- instance.CmdCycleBackward
	f.commands <- instance.CmdCycleBackward // wraps: 1 -> 2 -> 1 -> 0
	f.commands <- instance.CmdCommit
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xa", f.compositor.focused[0].Address)
}

func TestEscapeRestoresInitialAndShutsDown(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	f.detector.HandleKey(input.SymEscape, 0, true, 1000)
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xa", f.compositor.focused[0].Address, "escape restores the initially focused window")
	assert.True(t, f.renderer.destroyed)
	assert.Equal(t, 1, f.shutdowns)
}

// TestAltReleaseCommitsSelection walks the accelerator gesture end to end:
// the chord steps the selection, releasing Alt focuses it and closes.
func TestAltReleaseCommitsSelection(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	f.detector.HandleKey(input.SymAlt, 0, true, 1000)
	f.detector.HandleKey(input.SymTab, 0, true, 1010) // selection 0xb -> 0xc
	f.detector.HandleKey(input.SymAlt, 0, false, 1200)
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xc", f.compositor.focused[0].Address)
	assert.Equal(t, 1, f.shutdowns)
}

// TestShiftChordCyclesBackward holds Shift through the chord; the step
// must go backward, landing on the initially focused window.
func TestShiftChordCyclesBackward(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	f.detector.HandleModifiers(true, true)
	f.detector.HandleKey(input.SymTab, 0, true, 1000) // selection 0xb -> 0xa
	f.detector.HandleModifiers(false, true)
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xa", f.compositor.focused[0].Address)
	assert.Equal(t, 1, f.shutdowns)
}

// TestFocusLossOutranksEscape raises both edges at once; the focus loss
// must win, committing the current selection instead of restoring the
// initial window.
func TestFocusLossOutranksEscape(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	f.detector.HandleKey(input.SymEscape, 0, true, 1000)
	f.detector.HandleFocusLost()
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xb", f.compositor.focused[0].Address, "focus loss commits the selection")
	assert.Equal(t, 1, f.shutdowns)
}

// TestEscapeOutranksChord raises a pending chord and an escape together;
// the escape must win, so the selection never steps and the initial window
// is restored.
func TestEscapeOutranksChord(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	f.detector.HandleModifiers(true, false)
	f.detector.HandleKey(input.SymTab, 0, true, 1000)
	f.detector.HandleKey(input.SymEscape, 0, true, 1010)
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xa", f.compositor.focused[0].Address, "escape restores the initial window")
	assert.Equal(t, 1, f.shutdowns)
}

// TestMoveWindowRefreshesList injects a move event while the selected
// window has left the compositor list; the refresh must run and reclamp
// the selection before the commit.
func TestMoveWindowRefreshesList(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	f.compositor.windows = []hypr.ClientWindow{
		{Address: "0xa", AppClass: "alpha", FocusHistoryID: 0},
		{Address: "0xc", AppClass: "gamma", FocusHistoryID: 1},
	}
	f.events <- hypr.Event{Type: hypr.EventMoveWindow, Address: "0xb", WorkspaceID: 2}
	f.commands <- instance.CmdCommit
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xc", f.compositor.focused[0].Address, "stale selection must be reclamped by the refresh")
}

// TestCancelFallsBackToMostRecentWindow keeps the anchor address recorded
// while its window has left the list and the bare-address dispatch fails;
// the cancel must land on the front of the list.
func TestCancelFallsBackToMostRecentWindow(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	f.compositor.windows = []hypr.ClientWindow{
		{Address: "0xb", AppClass: "beta", FocusHistoryID: 0},
		{Address: "0xc", AppClass: "gamma", FocusHistoryID: 1},
	}
	f.compositor.focusFn = func(w hypr.ClientWindow) error {
		if w.Address == "0xa" {
			return hypr.ErrFocusFailed
		}
		return nil
	}
	// A move, not a close, so the anchor address stays recorded.
	f.events <- hypr.Event{Type: hypr.EventMoveWindow, Address: "0xb", WorkspaceID: 2}
	f.commands <- instance.CmdCancel
	f.run(t)

	require.Len(t, f.compositor.focused, 2)
	assert.Equal(t, "0xa", f.compositor.focused[0].Address, "bare-address restore is attempted first")
	assert.Equal(t, "0xb", f.compositor.focused[1].Address, "then the most recently focused entry")
	assert.Equal(t, 1, f.shutdowns)
}

// TestOpenWindowRefreshesList injects an open event and a grown compositor
// list, then commits; the new window must be reachable by cycling.
func TestOpenWindowRefreshesList(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	f.compositor.windows = append(testWindows(), hypr.ClientWindow{
		Address: "0xd", AppClass: "delta", FocusHistoryID: 3,
	})
	f.events <- hypr.Event{Type: hypr.EventOpenWindow, Address: "0xd", Class: "delta"}
	f.commands <- instance.CmdCycle
	f.commands <- instance.CmdCycle // from 0xb past 0xc onto 0xd
	f.commands <- instance.CmdCommit
	f.run(t)

	require.Len(t, f.compositor.focused, 1)
	assert.Equal(t, "0xd", f.compositor.focused[0].Address)
}

func TestEventChannelCloseShutsDown(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()
	close(f.events)
	f.run(t)

	assert.True(t, f.renderer.destroyed)
	assert.Equal(t, 1, f.shutdowns)
}

func TestContextCancelShutsDown(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.loop.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not observe context cancellation")
	}
	assert.Equal(t, 1, f.shutdowns)
}

func TestFocusFailureStillShutsDown(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.compositor.focusErr = errors.New("dispatch rejected")
	f.loop.Configure()
	f.commands <- instance.CmdCommit
	f.run(t)

	assert.Equal(t, 1, f.shutdowns, "a failed focus must not block shutdown")
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	f := newLoopFixture(t, testWindows())
	f.loop.Configure()
	f.commands <- instance.CmdUnknown
	f.commands <- instance.CmdCommit
	f.run(t)

	assert.Equal(t, 1, f.shutdowns)
}

func TestOverlayHeight(t *testing.T) {
	tests := []struct {
		name                       string
		count, itemHeight, padding int
		want                       int
	}{
		{"three items", 3, 40, 10, 3*40 + 20},
		{"zero items floors to one row", 0, 40, 10, 40 + 20},
		{"capped", 200, 40, 10, maxOverlayHeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overlayHeight(tt.count, tt.itemHeight, tt.padding); got != tt.want {
				t.Errorf("overlayHeight(%d, %d, %d) = %d, want %d",
					tt.count, tt.itemHeight, tt.padding, got, tt.want)
			}
		})
	}
}

func TestVisibleItems(t *testing.T) {
	tests := []struct {
		count, max, want int
	}{
		{3, 10, 3},
		{15, 10, 10},
		{0, 10, 0},
	}
	for _, tt := range tests {
		if got := visibleItems(tt.count, tt.max); got != tt.want {
			t.Errorf("visibleItems(%d, %d) = %d, want %d", tt.count, tt.max, got, tt.want)
		}
	}
}
