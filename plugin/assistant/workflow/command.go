package workflow

import "strings"

// CommandKind discriminates the decoded user command.
type CommandKind string

const (
	// CommandText is free text forwarded to the active step or to chat.
	CommandText CommandKind = "text"
	// CommandOption is an explicit option pick (button press, menu digit).
	CommandOption CommandKind = "option"
	// CommandCancel aborts the active workflow.
	CommandCancel CommandKind = "cancel"
	// CommandSkip skips an optional step.
	CommandSkip CommandKind = "skip"
	// CommandHandoff redeems a cross-channel handoff code.
	CommandHandoff CommandKind = "handoff"
)

// Command is a user action decoded once at the channel boundary. Business
// logic switches on Kind instead of pattern-matching raw text.
type Command struct {
	Kind     CommandKind
	Text     string
	OptionID string
	Token    string
}

// Input returns the command's usable text content.
func (c Command) Input() string {
	if c.Kind == CommandOption {
		return c.OptionID
	}
	return c.Text
}

var cancelWords = []string{
	"cancel", "cancelar", "anular", "kansele", "nevermind", "never mind",
}

var skipWords = []string{
	"skip", "omitir", "saltar", "sote", "none",
}

const resumePrefix = "resume "

// ParseCommand decodes raw channel text into a Command. Sentinel matching
// is whole-message and case-insensitive so ordinary sentences containing
// the words pass through as text.
func ParseCommand(raw string) Command {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	for _, w := range cancelWords {
		if lower == w {
			return Command{Kind: CommandCancel, Text: trimmed}
		}
	}
	for _, w := range skipWords {
		if lower == w {
			return Command{Kind: CommandSkip, Text: trimmed}
		}
	}
	if strings.HasPrefix(lower, resumePrefix) {
		token := strings.TrimSpace(trimmed[len(resumePrefix):])
		if token != "" {
			return Command{Kind: CommandHandoff, Token: token}
		}
	}
	return Command{Kind: CommandText, Text: trimmed}
}

// OptionCommand builds an explicit option pick, e.g. from a postback button.
func OptionCommand(id string) Command {
	return Command{Kind: CommandOption, OptionID: id}
}
