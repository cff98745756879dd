package session

import (
	"strings"
)

// CommandPrefix starts a control command line
const CommandPrefix = "%"

// Submission is one parsed line of input: either a ControlCommand or Work
type Submission interface {
	isSubmission()
}

// ControlCommand is handled by the session itself and never reaches a lane
type ControlCommand struct {
	Name string
	Args []string
	Raw  string // everything after the name
}

// Work is ordinary input destined for the executor
type Work struct {
	Source string
}

func (ControlCommand) isSubmission() {}
func (Work) isSubmission()           {}

// Parse classifies a line. Blank lines yield nil.
func Parse(line string) Submission {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	if !strings.HasPrefix(trimmed, CommandPrefix) {
		return Work{Source: line}
	}

	body := strings.TrimPrefix(trimmed, CommandPrefix)
	name, raw, _ := strings.Cut(body, " ")
	raw = strings.TrimSpace(raw)

	cmd := ControlCommand{Name: name, Raw: raw}
	if raw != "" {
		cmd.Args = strings.Fields(raw)
	}
	return cmd
}
