package telegram

import (
	"strings"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
)

const imagineCommand = "/imagine"

// /imagine текст -> текст
// обычный текст -> текст
// ok=false для остальных команд
func ParsePromptCommand(text string) (prompt string, ok bool) {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "/") {
		return cleanPrompt(text), true
	}

	parts := strings.SplitN(text, " ", 2)
	command := strings.ToLower(parts[0])
	// /imagine@my_bot в группах
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}

	if command != imagineCommand {
		return "", false
	}

	if len(parts) < 2 {
		return "", true
	}
	return cleanPrompt(parts[1]), true
}

func cleanPrompt(s string) string {
	return domain.NormalizePrompt(domain.FilterPrompt(s))
}
