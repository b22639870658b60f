package tui

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/iboybrian/atitlan-vibes/internal/chat"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

var errUsage = errors.New("usage")

// target returns the message numbered n (1-based) in msgs.
func target(msgs []chat.Message, arg string) (chat.Message, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: message number expected, got %q", errUsage, arg)
	}
	if n < 1 || n > len(msgs) {
		return chat.Message{}, fmt.Errorf("no message %d", n)
	}
	return msgs[n-1], nil
}

// parseReact splits ":react N EMOJI". An emoji may also be given as its
// 1-based position in the palette. An empty emoji means "show the palette".
func parseReact(msgs []chat.Message, args string) (chat.Message, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		return chat.Message{}, "", fmt.Errorf("%w: :react N [EMOJI]", errUsage)
	}
	m, err := target(msgs, fields[0])
	if err != nil {
		return chat.Message{}, "", err
	}
	if len(fields) == 1 {
		return m, "", nil
	}
	emoji := fields[1]
	if i, err := strconv.Atoi(emoji); err == nil {
		if i < 1 || i > len(chat.EmojiOptions) {
			return chat.Message{}, "", fmt.Errorf("palette has %d emoji", len(chat.EmojiOptions))
		}
		emoji = chat.EmojiOptions[i-1]
	}
	return m, emoji, nil
}

// palette renders the reaction choices as "1:👍 2:❤️ ...".
func palette() string {
	parts := make([]string, len(chat.EmojiOptions))
	for i, e := range chat.EmojiOptions {
		parts[i] = strconv.Itoa(i+1) + ":" + e
	}
	return strings.Join(parts, " ")
}

// isPaletteEmoji reports whether e is one of the offered reactions.
func isPaletteEmoji(e string) bool {
	return slices.Contains(chat.EmojiOptions, e)
}
