package instance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/HyperAfnan/hypr-switcher/internal/logger"
)

// ErrNoPrimary means no primary instance is listening; the caller should
// become the primary itself.
var ErrNoPrimary = errors.New("no primary instance running")

// ErrPrimaryExists means another process won the election race while this
// one was claiming the pidfile; the caller should retry the helper path.
var ErrPrimaryExists = errors.New("another primary instance is running")

const (
	socketDirName  = "hyprswitcher"
	socketFileName = "socket"
	pidFileName    = "pid"
)

// Coordinator owns the single-instance socket: it elects one primary per
// session and routes fixed-size commands from helper processes to it.
type Coordinator struct {
	dir        string
	socketPath string
	pidPath    string

	listener net.Listener
	commands chan Command

	cleanupMu sync.Mutex
	cleaned   bool
}

// NewCoordinator resolves the socket paths from the environment. A missing
// runtime directory is a hard startup failure.
func NewCoordinator() (*Coordinator, error) {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return nil, errors.New("XDG_RUNTIME_DIR not set")
	}
	dir := filepath.Join(runtimeDir, socketDirName)
	return &Coordinator{
		dir:        dir,
		socketPath: filepath.Join(dir, socketFileName),
		pidPath:    filepath.Join(dir, pidFileName),
		commands:   make(chan Command, 8),
	}, nil
}

// SocketPath returns the instance socket path, for logging.
func (c *Coordinator) SocketPath() string {
	return c.socketPath
}

// TryConnectExisting connects to a running primary. When the socket file
// exists but nothing accepts, the file is assumed stale, removed, and
// ErrNoPrimary returned so the caller proceeds to become primary.
func (c *Coordinator) TryConnectExisting() (net.Conn, error) {
	log := logger.WithComponent("instance")

	if _, err := os.Stat(c.socketPath); err != nil {
		return nil, ErrNoPrimary
	}

	conn, err := net.DialTimeout("unix", c.socketPath, time.Second)
	if err != nil {
		log.Debug().Err(err).Str("path", c.socketPath).Msg("connect failed, removing stale socket")
		os.Remove(c.socketPath)
		return nil, ErrNoPrimary
	}
	log.Debug().Msg("connected to existing primary")
	return conn, nil
}

// Send writes one command in wire form. The connection is left open for the
// caller to close.
func Send(conn net.Conn, cmd Command) error {
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	n, err := conn.Write(Encode(cmd))
	if err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	if n != MessageSize {
		return fmt.Errorf("send %s: short write (%d of %d bytes)", cmd, n, MessageSize)
	}
	logger.WithComponent("instance").Info().Stringer("command", cmd).Msg("sent command to primary")
	return nil
}

// Acquire claims the primary role and binds the listening socket. The
// pidfile claim uses O_EXCL so the window between "no primary found" and
// "socket bound" is closed to the atomicity of the exclusive create: the
// loser of a race gets ErrPrimaryExists and falls back to the helper path.
func (c *Coordinator) Acquire() error {
	log := logger.WithComponent("instance")

	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	// Guard against a pre-existing directory with looser permissions.
	if err := os.Chmod(c.dir, 0o700); err != nil {
		return fmt.Errorf("restrict socket directory: %w", err)
	}

	if err := c.claimPidfile(); err != nil {
		return err
	}

	// Safe now that the pidfile is ours.
	os.Remove(c.socketPath)

	listener, err := net.Listen("unix", c.socketPath)
	if err != nil {
		os.Remove(c.pidPath)
		return fmt.Errorf("bind instance socket: %w", err)
	}
	if err := os.Chmod(c.socketPath, 0o600); err != nil {
		listener.Close()
		os.Remove(c.socketPath)
		os.Remove(c.pidPath)
		return fmt.Errorf("restrict instance socket: %w", err)
	}

	c.listener = listener
	log.Info().Str("path", c.socketPath).Msg("listening as primary")
	return nil
}

// claimPidfile creates the pidfile exclusively. On conflict the recorded
// pid is probed with signal 0: a live process means a primary exists, a
// dead one means stale state that is cleared before one retry.
func (c *Coordinator) claimPidfile() error {
	log := logger.WithComponent("instance")

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(c.pidPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			f.Close()
			if werr != nil {
				os.Remove(c.pidPath)
				return fmt.Errorf("write pidfile: %w", werr)
			}
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("claim pidfile: %w", err)
		}

		data, rerr := os.ReadFile(c.pidPath)
		if rerr == nil {
			if pid, perr := strconv.Atoi(strings.TrimSpace(string(data))); perr == nil && pid > 0 {
				if proc, ferr := os.FindProcess(pid); ferr == nil {
					if proc.Signal(syscall.Signal(0)) == nil {
						log.Debug().Int("pid", pid).Msg("primary already running")
						return ErrPrimaryExists
					}
				}
			}
		}
		// Stale claim from a dead primary.
		log.Warn().Str("path", c.pidPath).Msg("removing stale pidfile")
		os.Remove(c.pidPath)
		os.Remove(c.socketPath)
	}
	return ErrPrimaryExists
}

// Commands delivers decoded helper commands. The channel closes when the
// accept loop exits.
func (c *Coordinator) Commands() <-chan Command {
	return c.commands
}

// Run accepts helper connections until the listener closes or the context
// is cancelled. Each helper sends exactly one command and is disconnected.
// Call in its own goroutine after Acquire.
func (c *Coordinator) Run(ctx context.Context) {
	log := logger.WithComponent("instance")
	defer close(c.commands)

	go func() {
		<-ctx.Done()
		c.listener.Close()
	}()

	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Msg("accept failed")
			}
			return
		}

		cmd := readCommand(conn)
		conn.Close()
		if cmd == CmdNone {
			continue
		}

		select {
		case c.commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// readCommand reads and decodes one fixed-size message. Helpers that
// connect and vanish without sending decode to None.
func readCommand(conn net.Conn) Command {
	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, MessageSize)
	n, err := io.ReadFull(conn, buf)
	if n == 0 {
		if err != nil && err != io.EOF {
			logger.WithComponent("instance").Debug().Err(err).Msg("helper read failed")
		}
		return CmdNone
	}
	cmd := Decode(buf[:n])
	logger.WithComponent("instance").Debug().Stringer("command", cmd).Int("bytes", n).Msg("received command")
	return cmd
}

// Cleanup closes the listener and removes the socket, pidfile, and their
// directory if empty. Idempotent: repeat calls are no-ops.
func (c *Coordinator) Cleanup() {
	c.cleanupMu.Lock()
	defer c.cleanupMu.Unlock()
	if c.cleaned {
		return
	}
	c.cleaned = true

	if c.listener != nil {
		c.listener.Close()
	}
	os.Remove(c.socketPath)
	os.Remove(c.pidPath)
	// Only succeeds when nothing else lives in the directory.
	os.Remove(c.dir)
	logger.WithComponent("instance").Debug().Msg("instance socket cleaned up")
}
