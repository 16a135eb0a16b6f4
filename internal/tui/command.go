package tui

import "strings"

// Command represents a parsed ":" command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':'). A bare
// filter string such as "scoreMin=30&sort=score_desc" is read as
// "filter <string>".
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	if len(parts) == 1 && strings.Contains(parts[0], "=") {
		return Command{Name: "filter", Args: parts[0]}
	}
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}
