// Package readingtime estimates how long a post takes to read.
package readingtime

import (
	"strconv"
	"strings"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/richtext"
)

// WordsPerMinute is the assumed reading speed.
const WordsPerMinute = 200

// Words counts the whitespace-separated words of heading plus the plain-text
// rendering of body.
func Words(block cms.ContentBlock) int {
	return len(strings.Fields(block.Heading)) + len(strings.Fields(richtext.AsText(block.Body)))
}

// BlockMinutes returns ceil(words / WordsPerMinute) for one block.
func BlockMinutes(block cms.ContentBlock) int {
	return (Words(block) + WordsPerMinute - 1) / WordsPerMinute
}

// Estimate sums the per-block minutes. Rounding happens per block, so
// Estimate(a ++ b) == Estimate(a) + Estimate(b).
func Estimate(blocks []cms.ContentBlock) int {
	total := 0
	for _, b := range blocks {
		total += BlockMinutes(b)
	}
	return total
}

// Format renders minutes as "N min".
func Format(minutes int) string {
	return strconv.Itoa(minutes) + " min"
}
