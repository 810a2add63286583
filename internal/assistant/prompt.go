package assistant

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// BuildMessages lays out the system prompt, prior turns and the new user text
// in the order chat-completion APIs expect
func BuildMessages(systemPrompt string, history []Turn, text string) []Turn {
	messages := make([]Turn, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, Turn{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, history...)
	return append(messages, Turn{Role: RoleUser, Content: text})
}

// ExtractReply strips reasoning blocks emitted by thinking models and trims the result
func ExtractReply(content string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(content, ""))
}
