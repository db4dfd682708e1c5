// Package sanitize screens untrusted chat text for prompt injection before it
// is forwarded to the model provider. It is a pure function over its input:
// no I/O, no clock, no process state, so the same check can run as a
// best-effort client pre-flight and as the authoritative server gate.
package sanitize

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxChars is the hard cap on user text length. Applied before any
	// pattern matching so oversized inputs cannot blow up the regex scan.
	MaxChars = 4000

	// MaxLines bounds the newline count so pathological inputs cannot turn
	// the line-anchored patterns into a DoS vector.
	MaxLines = 50
)

// Result is the outcome of sanitizing one piece of user text.
type Result struct {
	SanitizedText string
	Blocked       bool
	Truncated     bool
	ReasonLabel   string
}

// Sanitizer scans text against an ordered injection signature table.
type Sanitizer struct {
	rules []Rule
}

// New returns a Sanitizer with the built-in signature table.
func New() *Sanitizer {
	return &Sanitizer{rules: DefaultRules()}
}

// Sanitize caps, normalizes, and scans the input. Blocked results carry the
// label of the first matching signature and an empty SanitizedText; allowed
// results carry the trimmed, capped original (the normalization below is a
// detection-only transform and never reaches the provider).
func (s *Sanitizer) Sanitize(input string) Result {
	text := input
	truncated := false

	if utf8.RuneCountInString(text) > MaxChars {
		text = string([]rune(text)[:MaxChars])
		truncated = true
	}

	if strings.Count(text, "\n") > MaxLines {
		lines := strings.Split(text, "\n")
		text = strings.Join(lines[:MaxLines], "\n")
	}

	normalized := normalizeForMatching(text)

	for _, r := range s.rules {
		if r.Regex.MatchString(normalized) {
			return Result{
				Blocked:     true,
				ReasonLabel: r.Label,
			}
		}
	}

	return Result{
		SanitizedText: strings.TrimSpace(text),
		Truncated:     truncated,
	}
}

// ScanHistory scans user-role turns of a prior conversation with the same
// signature table. History is never rewritten; a match only reports which
// signature fired so the caller can reject the request. Model-role turns are
// skipped: that text originated upstream, not from the caller.
func (s *Sanitizer) ScanHistory(turns []HistoryTurn) (string, bool) {
	for _, turn := range turns {
		if turn.Role != "user" {
			continue
		}
		normalized := normalizeForMatching(turn.Text)
		for _, r := range s.rules {
			if r.Regex.MatchString(normalized) {
				return r.Label, true
			}
		}
	}
	return "", false
}

// HistoryTurn is one prior conversation turn as seen by ScanHistory.
type HistoryTurn struct {
	Role string
	Text string
}

// normalizeForMatching defeats trivial signature evasion: percent-encoded
// payloads are decoded (invalid sequences keep the original), then the text is
// canonically decomposed and stripped of combining diacritics so accent
// insertion cannot split a signature.
func normalizeForMatching(text string) string {
	if decoded, err := url.PathUnescape(text); err == nil {
		text = decoded
	}

	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
