package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Radarr command names used by the hook.
const (
	CommandRescanMovie = "RescanMovie"
	CommandRenameMovie = "RenameMovie"
)

// CommandHandle identifies a queued Radarr command and its last observed state.
type CommandHandle struct {
	ID    int64
	State string
}

// IsTerminal reports whether the command has finished.
func (h *CommandHandle) IsTerminal() bool {
	return h != nil && IsTerminalState(h.State)
}

// IsTerminalState matches "complete" and "completed" case-insensitively.
// Any other state, including "failed", counts as still in progress.
func IsTerminalState(state string) bool {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "complete", "completed":
		return true
	default:
		return false
	}
}

type commandBody struct {
	ID    *json.Number `json:"id"`
	State *string      `json:"state"`
}

// ParseCommandHandle accepts either a command object or a one-element array
// holding one, and returns the same handle for both shapes.
func ParseCommandHandle(raw []byte) (*CommandHandle, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty command body", ErrMalformedResponse)
	}

	var body commandBody
	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: empty command list", ErrMalformedResponse)
		}
		trimmed = list[0]
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if body.ID == nil {
		return nil, fmt.Errorf("%w: command has no id", ErrMalformedResponse)
	}
	if body.State == nil {
		return nil, fmt.Errorf("%w: command has no state", ErrMalformedResponse)
	}
	id, err := body.ID.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: command id %q is not an integer", ErrMalformedResponse, body.ID.String())
	}

	return &CommandHandle{ID: id, State: *body.State}, nil
}
