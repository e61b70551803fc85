package types

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Compiled once at package initialization; name checks run on every send.
var streamNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// IsValidStreamName checks the claimable-name format: 3-30 characters,
// ASCII letters, digits and underscore.
func IsValidStreamName(name string) bool {
	return streamNameRegex.MatchString(name)
}

// IsValidLineType checks that the line type is one of the allowed kinds.
func IsValidLineType(lineType string) bool {
	switch lineType {
	case LineTypeLog, LineTypeTool, LineTypeThought:
		return true
	default:
		return false
	}
}

// SanitizeText strips control characters and trims surrounding whitespace.
// Feed and chat text pass through here before any length check.
func SanitizeText(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(cleaned)
}

// TruncateRunes cuts text to at most max runes. Rune-aware so multi-byte
// characters are never split.
func TruncateRunes(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

// ValidateLineText sanitizes feed text and rejects it when empty or over
// the line limit. Returns the sanitized text on success.
func ValidateLineText(text string) (string, error) {
	cleaned := SanitizeText(text)
	if cleaned == "" || utf8.RuneCountInString(cleaned) > MaxLineRunes {
		return "", ErrInvalidText
	}
	return cleaned, nil
}

// ValidateChatText sanitizes chat text and truncates it to the chat limit.
// Only empty input is rejected; oversized input is cut, not refused.
func ValidateChatText(text string) (string, error) {
	cleaned := SanitizeText(text)
	if cleaned == "" {
		return "", ErrInvalidText
	}
	return TruncateRunes(cleaned, MaxChatRunes), nil
}
