package tui

import "strings"

// Command represents a parsed prompt command.
type Command struct {
	Name string
	Args string
}

// Prompt commands.
const (
	CmdFriends = "friends"
	CmdChats   = "chats"
	CmdLogin   = "login"
	CmdLogout  = "logout"
	CmdPublish = "publish"
	CmdRefresh = "refresh"
	CmdQuit    = "quit"
)

var aliases = map[string]string{
	"f":             CmdFriends,
	"c":             CmdChats,
	"conversations": CmdChats,
	"q":             CmdQuit,
	"r":             CmdRefresh,
}

// ParseCommand parses a command string (without the leading ':').
// Aliases resolve to their full names.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if full, ok := aliases[cmd.Name]; ok {
		cmd.Name = full
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}
