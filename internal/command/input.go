package command

import (
	"strconv"

	"whiteout.ai/internal/protocol"
)

// Apply turns a parsed command into the next INPUT message. held is the
// movement state currently reported to the server. ok is false for verbs
// that produce no input (help, status, quit) or for unclear commands.
func Apply(cmd Command, held protocol.MovementIn) (protocol.InputMsg, bool) {
	msg := protocol.InputMsg{
		Type:            protocol.TypeInput,
		ProtocolVersion: protocol.Version,
		Movement:        held,
	}
	if cmd.Clarify != "" {
		return msg, false
	}
	switch cmd.Verb {
	case "move":
		m := protocol.MovementIn{}
		switch cmd.Args[0] {
		case "up":
			m.Up = true
		case "down":
			m.Down = true
		case "left":
			m.Left = true
		case "right":
			m.Right = true
		}
		msg.Movement = m
	case "stop":
		msg.Movement = protocol.MovementIn{}
	case "attack":
		msg.Attack = true
	case "interact":
		msg.Interact = cmd.Args[0]
	case "build":
		b := &protocol.BuildIn{Type: cmd.Args[0]}
		if len(cmd.Args) >= 3 {
			b.X, _ = strconv.ParseFloat(cmd.Args[1], 64)
			b.Z, _ = strconv.ParseFloat(cmd.Args[2], 64)
		}
		msg.Build = b
	case "assign":
		msg.Assign = &protocol.AssignIn{WorkerID: cmd.Args[0], BuildingID: cmd.Args[1]}
	case "gather":
		msg.Gather = cmd.Args[0]
	default:
		return msg, false
	}
	return msg, true
}
