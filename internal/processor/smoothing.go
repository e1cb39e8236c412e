package processor

import "strings"

// SmoothingFilter suppresses single-frame jitter on fixed-format strings such
// as clocks or scoreboards. Each character slot keeps a sliding window of its
// last readings and reports the most frequent one.
//
// Ties go to the value that appears first in the window (oldest reading first).
type SmoothingFilter struct {
	wordLength int
	windowSize int
	readings   [][]rune
}

// NewSmoothingFilter creates a filter for words of wordLength characters
func NewSmoothingFilter(wordLength, windowSize int) *SmoothingFilter {
	if wordLength < 1 {
		wordLength = 1
	}
	if windowSize < 1 {
		windowSize = 1
	}
	readings := make([][]rune, wordLength)
	for i := range readings {
		readings[i] = make([]rune, 0, windowSize+1)
	}
	return &SmoothingFilter{
		wordLength: wordLength,
		windowSize: windowSize,
		readings:   readings,
	}
}

// WordLength returns the fixed output length
func (f *SmoothingFilter) WordLength() int { return f.wordLength }

// WindowSize returns the per-slot window length
func (f *SmoothingFilter) WindowSize() int { return f.windowSize }

// AddReading records word and returns the smoothed word. The input is
// truncated or right-padded with spaces to exactly WordLength characters.
func (f *SmoothingFilter) AddReading(word string) string {
	chars := normalizeWord(word, f.wordLength)

	var smoothed strings.Builder
	for i, c := range chars {
		window := append(f.readings[i], c)
		if len(window) > f.windowSize {
			window = window[1:]
		}
		f.readings[i] = window
		smoothed.WriteRune(mostCommon(window))
	}
	return smoothed.String()
}

// Reset clears every window
func (f *SmoothingFilter) Reset() {
	for i := range f.readings {
		f.readings[i] = f.readings[i][:0]
	}
}

func normalizeWord(word string, length int) []rune {
	chars := []rune(word)
	if len(chars) > length {
		return chars[:length]
	}
	for len(chars) < length {
		chars = append(chars, ' ')
	}
	return chars
}

func mostCommon(window []rune) rune {
	counts := make(map[rune]int, len(window))
	for _, c := range window {
		counts[c]++
	}

	best, bestCount := rune(' '), 0
	for _, c := range window {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}
