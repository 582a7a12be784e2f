package instance

// Command is one instruction a helper instance sends the primary.
type Command int

const (
	CmdNone Command = iota
	CmdCycle
	CmdCycleBackward
	CmdCommit
	CmdCancel
	CmdUnknown
)

// MessageSize is the fixed wire size of one command. This is a
// compatibility contract with existing helper binaries and must stay exact.
const MessageSize = 16

const (
	wireCycle         = "CYCLE"
	wireCycleBackward = "CYCLE_BACKWARD"
	wireCommit        = "COMMIT"
	wireCancel        = "CANCEL"
)

// String returns the wire name of the command, or a diagnostic placeholder
// for the non-wire values.
func (c Command) String() string {
	switch c {
	case CmdCycle:
		return wireCycle
	case CmdCycleBackward:
		return wireCycleBackward
	case CmdCommit:
		return wireCommit
	case CmdCancel:
		return wireCancel
	case CmdNone:
		return "(none)"
	default:
		return "(unknown)"
	}
}

// Encode renders a command as its fixed-size NUL-padded wire form. Non-wire
// commands encode to an all-NUL message, which decodes to Unknown.
func Encode(c Command) []byte {
	msg := make([]byte, MessageSize)
	switch c {
	case CmdCycle, CmdCycleBackward, CmdCommit, CmdCancel:
		copy(msg, c.String())
	}
	return msg
}

// Decode classifies a received message. Matching is by prefix, longest
// command first, so CYCLE_BACKWARD is never misread as CYCLE. A zero-length
// read means the peer disconnected without sending and decodes to None.
func Decode(msg []byte) Command {
	if len(msg) == 0 {
		return CmdNone
	}
	s := string(msg)
	switch {
	case hasCommand(s, wireCycleBackward):
		return CmdCycleBackward
	case hasCommand(s, wireCycle):
		return CmdCycle
	case hasCommand(s, wireCommit):
		return CmdCommit
	case hasCommand(s, wireCancel):
		return CmdCancel
	default:
		return CmdUnknown
	}
}

func hasCommand(msg, wire string) bool {
	return len(msg) >= len(wire) && msg[:len(wire)] == wire
}
