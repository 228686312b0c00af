package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
)

// telegram rejects longer text messages
const maxMessageLen = 4096

const (
	historyHeader   = "<b>Your recent images:</b>"
	entrySeparator  = "\n\n"
	maxShownURLRune = 50
)

// FormatHistory renders one entry per generation, newest first. Entries are
// separated by a blank line, which SplitMessage relies on.
func FormatHistory(gens []domain.Generation, total int) string {
	entries := make([]string, 0, len(gens)+2)
	entries = append(entries, historyHeader)

	for i, g := range gens {
		entries = append(entries, formatEntry(i+1, g))
	}

	if total > len(gens) {
		entries = append(entries, fmt.Sprintf("Showing %d of %d", len(gens), total))
	} else {
		entries = append(entries, fmt.Sprintf("Total: %d", total))
	}
	return strings.Join(entries, entrySeparator)
}

func formatEntry(n int, g domain.Generation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d. %s %s\n", n, getStatusIcon(g.Status), html.EscapeString(g.Prompt))

	if g.Succeeded() {
		fmt.Fprintf(&sb, "   <a href=\"%s\">%s</a> %dx%d\n",
			html.EscapeString(g.ImageURL),
			html.EscapeString(truncate(g.ImageURL, maxShownURLRune)),
			g.Width,
			g.Height,
		)
	} else {
		reason := g.ErrorMessage
		if reason == "" {
			reason = g.ErrorKind
		}
		fmt.Fprintf(&sb, "   <i>%s</i>\n", html.EscapeString(reason))
	}

	fmt.Fprintf(&sb, "   %s, %s",
		g.CreatedAt.UTC().Format("2006-01-02 15:04"),
		g.Duration.Round(10*time.Millisecond),
	)
	return sb.String()
}

// SplitMessage packs blank-line separated entries into messages of at most
// maxLen bytes. Entries are never cut unless a single one is longer than
// maxLen; such an entry is cut on a rune boundary.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var (
		messages []string
		current  strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			messages = append(messages, current.String())
			current.Reset()
		}
	}

	for _, entry := range strings.Split(text, entrySeparator) {
		for len(entry) > maxLen {
			flush()
			cut := runeCut(entry, maxLen)
			messages = append(messages, entry[:cut])
			entry = entry[cut:]
		}

		if current.Len() > 0 && current.Len()+len(entrySeparator)+len(entry) > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(entrySeparator)
		}
		current.WriteString(entry)
	}
	flush()

	return messages
}

// runeCut returns the largest index <= n that does not split a rune.
func runeCut(s string, n int) int {
	for i := n; i > 0; i-- {
		if utf8.RuneStart(s[i]) {
			return i
		}
	}
	return n
}

func getStatusIcon(status domain.GenerationStatus) string {
	switch status {
	case domain.GenerationSucceeded:
		return "●"
	case domain.GenerationFailed:
		return "○"
	default:
		return "○"
	}
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes-1]) + "…"
}
