// Package interact decodes client commands, applies them to a session's
// surface and arms the follow-up frames each command type calls for.
package interact

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CommandType names a client command.
type CommandType string

const (
	CommandClick    CommandType = "click"
	CommandScroll   CommandType = "scroll"
	CommandKey      CommandType = "key"
	CommandReload   CommandType = "reload"
	CommandBack     CommandType = "back"
	CommandForward  CommandType = "forward"
	CommandNavigate CommandType = "navigate"
)

// Command is one inbound client message.
type Command struct {
	Type   CommandType `json:"type"`
	X      *float64    `json:"x,omitempty"`
	Y      *float64    `json:"y,omitempty"`
	Button string      `json:"button,omitempty"`
	DeltaX float64     `json:"deltaX,omitempty"`
	DeltaY float64     `json:"deltaY,omitempty"`
	Key    string      `json:"key,omitempty"`
	Text   string      `json:"text,omitempty"`
	URL    string      `json:"url,omitempty"`
}

// ErrMalformed marks a command that cannot be applied.
var ErrMalformed = errors.New("malformed command")

// Decode parses and validates raw into a Command.
func Decode(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	cmd.Type = CommandType(strings.ToLower(strings.TrimSpace(string(cmd.Type))))
	if err := cmd.Validate(); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// Validate checks that the payload fields the command type needs are present.
func (c Command) Validate() error {
	switch c.Type {
	case CommandClick:
		if c.X == nil || c.Y == nil {
			return fmt.Errorf("%w: click requires x and y", ErrMalformed)
		}
	case CommandScroll:
		if c.DeltaX == 0 && c.DeltaY == 0 {
			return fmt.Errorf("%w: scroll requires deltaX or deltaY", ErrMalformed)
		}
	case CommandKey:
		if c.Key == "" && c.Text == "" {
			return fmt.Errorf("%w: key requires key or text", ErrMalformed)
		}
	case CommandNavigate:
		if strings.TrimSpace(c.URL) == "" {
			return fmt.Errorf("%w: navigate requires url", ErrMalformed)
		}
	case CommandReload, CommandBack, CommandForward:
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, c.Type)
	}
	return nil
}
