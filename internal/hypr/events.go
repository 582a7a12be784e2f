package hypr

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/HyperAfnan/hypr-switcher/internal/logger"
)

// maxEventBuffer caps the accumulation buffer for the event socket. A line
// that fails to terminate before the cap is dropped and parsing
// resynchronizes at the next newline.
const maxEventBuffer = 64 * 1024

// EventStream is a persistent reader of the compositor push-event socket.
// A single reader goroutine owns the connection and delivers parsed events
// over Events; the channel closes when the socket errors or the context is
// cancelled.
type EventStream struct {
	conn   net.Conn
	parser lineParser
	events chan Event
}

// ConnectEvents opens the event socket from the environment.
func ConnectEvents() (*EventStream, error) {
	path, err := eventSocketPath()
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect event socket: %w", err)
	}
	logger.WithComponent("hypr-events").Info().Str("path", path).Msg("connected to event socket")
	return &EventStream{
		conn:   conn,
		events: make(chan Event, 64),
	}, nil
}

// Events delivers parsed compositor events. Unknown event names are dropped
// before reaching the channel.
func (s *EventStream) Events() <-chan Event {
	return s.events
}

// Run reads the socket until error or cancellation, then closes Events.
// Call in its own goroutine.
func (s *EventStream) Run(ctx context.Context) {
	log := logger.WithComponent("hypr-events")
	defer close(s.events)

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			for _, ev := range s.parser.feed(buf[:n]) {
				if ev.Type == EventUnknown {
					continue
				}
				select {
				case s.events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("event socket closed")
			}
			return
		}
	}
}

// Disconnect closes the underlying socket. Safe to call more than once.
func (s *EventStream) Disconnect() {
	s.conn.Close()
}

// lineParser assembles newline-terminated event lines from arbitrary byte
// chunks. It is deliberately socket-free so parsing policy is testable in
// isolation.
type lineParser struct {
	buf        []byte
	discarding bool
}

// feed appends newly read bytes and returns every event completed by them,
// in arrival order. Lines that fail to parse come back as EventUnknown.
func (p *lineParser) feed(data []byte) []Event {
	var out []Event
	p.buf = append(p.buf, data...)

	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(p.buf[:idx])
		p.buf = p.buf[idx+1:]
		if p.discarding {
			// This newline terminates the oversized line whose prefix was
			// already dropped; resynchronize on the next one.
			p.discarding = false
			continue
		}
		out = append(out, parseEventLine(line))
	}

	if len(p.buf) > maxEventBuffer {
		logger.WithComponent("hypr-events").Warn().
			Int("dropped", len(p.buf)).
			Msg("event line exceeded buffer, dropping partial line")
		p.buf = p.buf[:0]
		p.discarding = true
	}
	return out
}

// parseEventLine parses one "EVENT>>field1,field2,..." line.
func parseEventLine(line string) Event {
	name, data, found := strings.Cut(line, ">>")
	if !found {
		logger.WithComponent("hypr-events").Debug().Str("line", line).Msg("event line without separator")
		return Event{Type: EventUnknown}
	}

	switch name {
	case "openwindow":
		// ADDRESS,WORKSPACE_ID,CLASS,TITLE — the title may itself contain
		// commas, so everything after the third field belongs to it.
		fields := strings.SplitN(data, ",", 4)
		ev := Event{Type: EventOpenWindow, WorkspaceID: -1}
		if len(fields) > 0 {
			ev.Address = normalizeAddress(fields[0])
		}
		if len(fields) > 1 {
			if id, err := strconv.Atoi(fields[1]); err == nil {
				ev.WorkspaceID = id
			}
		}
		if len(fields) > 2 {
			ev.Class = fields[2]
		}
		if len(fields) > 3 {
			ev.Title = fields[3]
		}
		return ev

	case "closewindow":
		return Event{Type: EventCloseWindow, Address: normalizeAddress(data), WorkspaceID: -1}

	case "activewindow":
		class, title, _ := strings.Cut(data, ",")
		return Event{Type: EventActiveWindow, Class: class, Title: title, WorkspaceID: -1}

	case "movewindow":
		addr, ws, _ := strings.Cut(data, ",")
		ev := Event{Type: EventMoveWindow, Address: normalizeAddress(addr), WorkspaceID: -1}
		if id, err := strconv.Atoi(ws); err == nil {
			ev.WorkspaceID = id
		}
		return ev

	default:
		logger.WithComponent("hypr-events").Debug().Str("event", name).Msg("unrecognized event")
		return Event{Type: EventUnknown}
	}
}

// normalizeAddress prefixes the bare hex addresses the event socket emits
// so they compare equal to the 0x-prefixed addresses in j/clients output.
func normalizeAddress(addr string) string {
	if addr == "" || strings.HasPrefix(addr, "0x") {
		return addr
	}
	return "0x" + addr
}
