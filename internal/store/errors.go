package store

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrJobNotFound is returned by GetJob for an unknown id.
var ErrJobNotFound = errors.New("job not found")

// SanitizeError truncates and cleans an error message before it is persisted
// onto a domain entity. Control characters are stripped so the message is
// safe to render verbatim.
func SanitizeError(msg string) string {
	const maxLen = 512
	msg = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, msg)
	msg = strings.TrimSpace(msg)
	if len(msg) > maxLen {
		// Back off to a rune boundary so the cut never leaves invalid UTF-8.
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
