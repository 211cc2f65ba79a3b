package transcribe

import "strings"

const (
	// maxPhraseTokens bounds how long a repeating phrase can be and still
	// be considered degeneration rather than content.
	maxPhraseTokens = 4
	// repeatThreshold is how many consecutive repetitions a phrase must
	// exceed before the run collapses to a single occurrence.
	repeatThreshold = 10
)

// collapseRepeats removes pathological repetition runs from a segment
// transcript. Speech models degenerate on near-silent audio into the same
// short token or phrase repeated dozens of times; a run longer than the
// threshold collapses to one occurrence. Ordinary repetition below the
// threshold is left alone.
func collapseRepeats(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) <= repeatThreshold {
		return strings.Join(tokens, " ")
	}

	out := make([]string, 0, len(tokens))
	i := 0
	for i < len(tokens) {
		collapsed := false
		for size := 1; size <= maxPhraseTokens && i+size <= len(tokens); size++ {
			count := countRepeats(tokens, i, size)
			if count > repeatThreshold {
				out = append(out, tokens[i:i+size]...)
				i += count * size
				collapsed = true
				break
			}
		}
		if !collapsed {
			out = append(out, tokens[i])
			i++
		}
	}
	return strings.Join(out, " ")
}

// countRepeats returns how many times the phrase of the given size at
// start repeats back to back, including the first occurrence.
func countRepeats(tokens []string, start, size int) int {
	count := 1
	for next := start + size; next+size <= len(tokens); next += size {
		match := true
		for k := 0; k < size; k++ {
			if tokens[next+k] != tokens[start+k] {
				match = false
				break
			}
		}
		if !match {
			break
		}
		count++
	}
	return count
}
