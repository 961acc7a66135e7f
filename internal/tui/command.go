package tui

import "strings"

// Command is a parsed ":" prompt entry.
type Command struct {
	Name string
	Args []string
}

// Arg returns the arguments joined back into one string.
func (c Command) Arg() string {
	return strings.Join(c.Args, " ")
}

// commandAliases maps short forms to command names.
var commandAliases = map[string]string{
	"q":  "quit",
	"h":  "help",
	"o":  "open",
	"n":  "notifications",
	"s":  "search",
	"im": "images",
}

// commandNames lists the commands offered for completion.
var commandNames = []string{"open", "search", "notifications", "images", "invite", "refresh", "accept", "decline", "help", "quit"}

// ParseCommand parses a command line (without the leading ':').
func ParseCommand(input string) Command {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{}
	}
	name := strings.ToLower(fields[0])
	if full, ok := commandAliases[name]; ok {
		name = full
	}
	return Command{Name: name, Args: fields[1:]}
}
