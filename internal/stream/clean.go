package stream

import (
	"regexp"
	"strings"
)

// Upstream agents embed routing metadata inline as [TAG: value] sentinels.
// The tag set is closed; sentinels must never reach a human-visible surface.
var sentinelPattern = regexp.MustCompile(`\[(?:ROUTE|COMPANY|ROLE):[^\]]*\]`)

// Fenced thinking/actions blocks are working notes from the agents, stripped
// only at finalization so partial fences mid-stream don't eat visible text.
var fencedBlockPattern = regexp.MustCompile("(?s)```(?:thinking|actions)\\n.*?```")

// CleanText strips inline control sentinels from display text.
func CleanText(text string) string {
	return sentinelPattern.ReplaceAllString(text, "")
}

// CleanFinal produces the finalized display text: sentinels and fenced
// thinking/actions blocks removed, surrounding whitespace trimmed.
func CleanFinal(text string) string {
	text = fencedBlockPattern.ReplaceAllString(text, "")
	text = sentinelPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
