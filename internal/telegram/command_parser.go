package telegram

import (
	"strings"
)

// ParseQuestion: обычный текст и /ask (в т.ч. /ask@botname) - это вопрос.
// Остальные команды вопросом не считаются.
func ParseQuestion(text string) (question string, isQuery bool) {
	text = strings.TrimSpace(text)

	if text == "" {
		return "", false
	}

	if !strings.HasPrefix(text, "/") {
		return text, true
	}

	command, rest, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(strings.ToLower(command), "@")

	if command != "/ask" {
		return "", false
	}
	return normalizeSpaces(rest), true
}

func normalizeSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
