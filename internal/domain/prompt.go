package domain

import (
	"strings"
	"unicode/utf8"
)

const MaxPromptLength = 200

// PromptAllowedChars is the keystroke allowlist of the input field.
// The photo client itself accepts any string.
const PromptAllowedChars = " abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789.,!?-"

// NormalizePrompt trims surrounding whitespace. Inner spacing is sent as typed.
func NormalizePrompt(s string) string {
	return strings.TrimSpace(s)
}

func ValidatePrompt(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyPrompt
	}
	if utf8.RuneCountInString(s) > MaxPromptLength {
		return ErrPromptTooLong
	}
	return nil
}

// FilterPrompt drops every rune outside PromptAllowedChars.
func FilterPrompt(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(PromptAllowedChars, r) {
			return r
		}
		return -1
	}, s)
}
