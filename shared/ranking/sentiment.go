package ranking

import (
	"regexp"
	"strings"
	"sync"

	"github.com/jonreiter/govader"
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// NormalizeText lower-cases text and collapses every run of non-word characters
// into a single space.
func NormalizeText(text string) string {
	return nonWord.ReplaceAllString(strings.ToLower(text), " ")
}

// analyzer loads the VADER lexicon once; scoring only reads it.
var analyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// Sentiment scores free text on [-1, 1] using the VADER compound score.
// 0 means neutral or no opinion words.
func Sentiment(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return analyzer().PolarityScores(text).Compound
}
