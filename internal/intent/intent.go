// Package intent classifies a free-text message as a read or a write
// request. Keyword matching is deliberately conservative: a missed write
// routes to the read pipeline which cannot mutate anything, and a false
// write still has to pass the confirmation gate and the role check.
package intent

import "strings"

// Kind is the classified intent of a message.
type Kind int

const (
	Read Kind = iota
	Write
)

func (k Kind) String() string {
	if k == Write {
		return "write"
	}
	return "read"
}

var statusWords = []string{"present", "absent", "late"}

// Classify maps a message to Read or Write using case-insensitive
// substring rules, first match wins.
func Classify(message string) Kind {
	text := strings.ToLower(message)

	if strings.Contains(text, "mark") {
		if strings.Contains(text, "attendance") {
			return Write
		}
		for _, w := range statusWords {
			if strings.Contains(text, w) {
				return Write
			}
		}
	}
	if strings.Contains(text, "set") && strings.Contains(text, "attendance") {
		return Write
	}
	return Read
}
