package gate

import (
	"regexp"
	"strings"
)

// RedactionToken replaces any detected sensitive span
const RedactionToken = "<REDACTED>"

var (
	emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
	urlPattern   = regexp.MustCompile(`\bhttps?://\S+`)
	// cardPattern finds 13-19 digit runs allowing space/dash separators;
	// candidates are confirmed with a Luhn check to avoid eating ordinary
	// numbers.
	cardPattern  = regexp.MustCompile(`(?:\d[ -]?){13,19}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)
)

// RedactPII replaces emails, URLs, card numbers, and phone numbers in text
// with the redaction token. Card candidates must pass Luhn; phone
// candidates must carry 8-15 digits.
func RedactPII(text string) string {
	if text == "" {
		return text
	}

	text = emailPattern.ReplaceAllString(text, RedactionToken)

	text = urlPattern.ReplaceAllStringFunc(text, func(match string) string {
		trailing := ""
		for len(match) > 0 && strings.ContainsRune(`.,;:!?)]}"'`, rune(match[len(match)-1])) {
			trailing = string(match[len(match)-1]) + trailing
			match = match[:len(match)-1]
		}
		if match == "" {
			return trailing
		}
		return RedactionToken + trailing
	})

	text = cardPattern.ReplaceAllStringFunc(text, func(match string) string {
		if luhnValid(digitsOf(match)) {
			return RedactionToken
		}
		return match
	})

	text = phonePattern.ReplaceAllStringFunc(text, func(match string) string {
		if n := len(digitsOf(match)); n >= 8 && n <= 15 {
			return RedactionToken
		}
		return match
	})

	return text
}

// ContainsPII reports whether redaction would alter the text
func ContainsPII(text string) bool {
	return RedactPII(text) != text
}

func digitsOf(s string) string {
	var sb strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			sb.WriteByte(byte(c))
		}
	}
	return sb.String()
}

func luhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	parity := len(digits) % 2
	for i, c := range digits {
		d := int(c - '0')
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}
