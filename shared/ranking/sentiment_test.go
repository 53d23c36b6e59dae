package ranking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentimentRange(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"the video covers slices and maps",
		"absolutely perfect perfect perfect",
		"extremely awful, the worst, truly horrible",
		"not bad, not terrible, never boring",
		"!!!???",
	}
	for _, in := range inputs {
		s := Sentiment(in)
		require.GreaterOrEqual(t, s, -1.0, in)
		require.LessOrEqual(t, s, 1.0, in)
	}
}

func TestSentimentPolarity(t *testing.T) {
	tests := []struct {
		name string
		text string
		sign int
	}{
		{"Neutral", "This video explains goroutines and channels", 0},
		{"Empty", "", 0},
		{"Positive", "Great tutorial, very helpful", 1},
		{"Negative", "Terrible audio and a boring pace", -1},
		{"Negated positive", "This was not good", -1},
		{"Negated negative", "Honestly not bad", 1},
		{"Contraction negation", "It isn't helpful and I don't recommend it", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sentiment(tt.text)
			switch tt.sign {
			case 0:
				require.Equal(t, 0.0, s)
			case 1:
				require.Greater(t, s, 0.0)
			case -1:
				require.Less(t, s, 0.0)
			}
		})
	}
}

func TestSentimentMonotonic(t *testing.T) {
	negative := Sentiment("a terrible and useless course")
	neutral := Sentiment("a course about databases")
	mildlyPositive := Sentiment("a useful course about databases")
	positive := Sentiment("an excellent course about databases")

	require.Less(t, negative, neutral)
	require.Less(t, neutral, mildlyPositive)
	require.Less(t, mildlyPositive, positive)
}

func TestSentimentIntensifier(t *testing.T) {
	require.Greater(t, Sentiment("really good"), Sentiment("good"))
	require.Greater(t, Sentiment("extremely excellent"), Sentiment("excellent"))
	require.Less(t, Sentiment("extremely excellent"), 1.0)
}
