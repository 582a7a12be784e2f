package hypr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HyperAfnan/hypr-switcher/internal/logger"
)

// Sentinel errors surfaced by the client. Callers branch with errors.Is.
var (
	ErrTimeout     = errors.New("compositor did not respond within bound")
	ErrFocusFailed = errors.New("all focus strategies exhausted")
)

const (
	// queryTimeout bounds a full request/response round-trip on the control
	// socket. dispatchTimeout bounds side-effecting commands whose only
	// observable result is the acknowledgement text.
	queryTimeout    = 3000 * time.Millisecond
	dispatchTimeout = 200 * time.Millisecond

	failureMarker = "No such window found"
)

// DialFunc opens one connection to the compositor control socket. The
// compositor expects one command per connection, so the client dials per
// call and never keeps a connection open.
type DialFunc func() (net.Conn, error)

// Client is the request/response client to the compositor control socket.
type Client struct {
	dial DialFunc
}

// NewClient builds a client from the environment. Both XDG_RUNTIME_DIR and
// HYPRLAND_INSTANCE_SIGNATURE must be set; their absence is a hard startup
// failure.
func NewClient() (*Client, error) {
	path, err := controlSocketPath()
	if err != nil {
		return nil, err
	}
	return &Client{
		dial: func() (net.Conn, error) {
			return net.DialTimeout("unix", path, queryTimeout)
		},
	}, nil
}

// newClientWithDialer is used by tests to substitute a fake transport.
func newClientWithDialer(dial DialFunc) *Client {
	return &Client{dial: dial}
}

// Probe verifies the control socket is reachable.
func (c *Client) Probe() error {
	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("compositor control socket unreachable: %w", err)
	}
	conn.Close()
	logger.WithComponent("hypr-ipc").Debug().Msg("control socket reachable")
	return nil
}

// Query sends a command and returns the first complete JSON value of the
// response. The read is bounded by queryTimeout; completion is detected by
// the streaming decoder, not by EOF, so a compositor that keeps the
// connection open does not stall the caller.
func (c *Client) Query(command string) (json.RawMessage, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", command, err)
	}
	defer conn.Close()

	if err := writeCommand(conn, command); err != nil {
		return nil, fmt.Errorf("query %q: %w", command, err)
	}

	conn.SetReadDeadline(time.Now().Add(queryTimeout))
	var raw json.RawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("query %q: %w", command, ErrTimeout)
		}
		return nil, fmt.Errorf("query %q: decode response: %w", command, err)
	}
	return raw, nil
}

// DispatchCapture sends a side-effecting command and returns whatever
// acknowledgement text arrives within the short dispatch bound. An empty
// response is normal for dispatch commands.
func (c *Client) DispatchCapture(command string) (string, error) {
	conn, err := c.dial()
	if err != nil {
		return "", fmt.Errorf("dispatch %q: %w", command, err)
	}
	defer conn.Close()

	if err := writeCommand(conn, command); err != nil {
		return "", fmt.Errorf("dispatch %q: %w", command, err)
	}

	conn.SetReadDeadline(time.Now().Add(dispatchTimeout))
	buf := make([]byte, 4096)
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			// Timeout or EOF just ends the capture; the command itself was
			// delivered on write.
			break
		}
	}
	return string(buf[:total]), nil
}

// Clients enumerates all managed windows. Elements that fail to parse are
// skipped, not fatal.
func (c *Client) Clients() ([]ClientWindow, error) {
	raw, err := c.Query("j/clients")
	if err != nil {
		return nil, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("clients: response is not an array: %w", err)
	}

	log := logger.WithComponent("hypr-ipc")
	windows := make([]ClientWindow, 0, len(elements))
	for _, el := range elements {
		w, err := parseClient(el)
		if err != nil {
			log.Debug().Err(err).Msg("skipping unparseable client entry")
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// clientJSON mirrors one element of the j/clients response. The workspace
// arrives as an object on current compositors but was a bare int in older
// releases; class falls back to initialClass when empty.
type clientJSON struct {
	Address        string          `json:"address"`
	Title          string          `json:"title"`
	Class          string          `json:"class"`
	InitialClass   string          `json:"initialClass"`
	Workspace      json.RawMessage `json:"workspace"`
	PID            int             `json:"pid"`
	FocusHistoryID int             `json:"focusHistoryID"`
}

func parseClient(el json.RawMessage) (ClientWindow, error) {
	var cj clientJSON
	cj.PID = -1
	cj.FocusHistoryID = -1
	if err := json.Unmarshal(el, &cj); err != nil {
		return ClientWindow{}, err
	}

	title := cj.Title
	if title == "" {
		title = UntitledPlaceholder
	}
	class := cj.Class
	if class == "" {
		class = cj.InitialClass
	}

	return ClientWindow{
		Address:        cj.Address,
		Title:          title,
		AppClass:       class,
		WorkspaceID:    parseWorkspaceID(cj.Workspace),
		PID:            cj.PID,
		FocusHistoryID: cj.FocusHistoryID,
	}, nil
}

func parseWorkspaceID(raw json.RawMessage) int {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return -1
	}
	if trimmed[0] == '{' {
		var obj struct {
			ID int `json:"id"`
		}
		if json.Unmarshal(trimmed, &obj) == nil {
			return obj.ID
		}
		return -1
	}
	var id int
	if json.Unmarshal(trimmed, &id) == nil {
		return id
	}
	return -1
}

// FocusClient brings a window to focus, trying progressively weaker
// identifiers until one works: address with explicit qualifier, raw
// address, anchored class regex, anchored title regex. The compositor does
// not report dispatch failures through an error channel; the only signal is
// the failure marker in the acknowledgement text.
func (c *Client) FocusClient(w ClientWindow) error {
	log := logger.WithComponent("hypr-ipc")

	if ValidAddress(w.Address) {
		for _, cmd := range []string{
			"dispatch focuswindow address:" + w.Address,
			"dispatch focuswindow " + w.Address,
		} {
			if c.tryFocus(cmd) {
				log.Info().Str("address", w.Address).Msg("focused by address")
				return nil
			}
		}
	} else if w.Address != "" {
		log.Debug().Str("address", w.Address).Msg("address not dispatchable, trying class/title")
	}

	if w.AppClass != "" {
		if c.tryFocus("dispatch focuswindow class:" + escapeRegex(w.AppClass)) {
			log.Info().Str("class", w.AppClass).Msg("focused by class")
			return nil
		}
	}

	if w.Title != "" {
		if c.tryFocus("dispatch focuswindow title:" + escapeRegex(w.Title)) {
			log.Info().Str("title", w.Title).Msg("focused by title")
			return nil
		}
	}

	log.Warn().
		Str("address", w.Address).
		Str("class", w.AppClass).
		Str("title", w.Title).
		Msg("all focus strategies failed")
	return fmt.Errorf("focus %s: %w", w.Address, ErrFocusFailed)
}

func (c *Client) tryFocus(command string) bool {
	resp, err := c.DispatchCapture(command)
	if err != nil {
		logger.WithComponent("hypr-ipc").Debug().Err(err).Str("command", command).Msg("focus dispatch failed")
		return false
	}
	return !strings.Contains(resp, failureMarker)
}

// ValidAddress reports whether s looks like a dispatchable window address:
// "0x" followed by at least one hex digit.
func ValidAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) == 2 {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// escapeRegex quotes regex metacharacters and anchors the result so the
// compositor matches the literal string exactly.
func escapeRegex(s string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range s {
		if strings.ContainsRune(`.^$*+?()[]{}|\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('$')
	return b.String()
}

func writeCommand(conn net.Conn, command string) error {
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	// The control protocol frames each command with a trailing NUL.
	if _, err := conn.Write(append([]byte(command), 0)); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func controlSocketPath() (string, error) {
	dir, sig, err := runtimeEnv()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hypr", sig, ".socket.sock"), nil
}

func eventSocketPath() (string, error) {
	dir, sig, err := runtimeEnv()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hypr", sig, ".socket2.sock"), nil
}

func runtimeEnv() (runtimeDir, signature string, err error) {
	runtimeDir = os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", "", errors.New("XDG_RUNTIME_DIR not set")
	}
	signature = os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if signature == "" {
		return "", "", errors.New("HYPRLAND_INSTANCE_SIGNATURE not set")
	}
	return runtimeDir, signature, nil
}
