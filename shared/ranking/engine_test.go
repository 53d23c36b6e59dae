package ranking

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tutorial-ranker/internal/models"
)

// scorePredictor scores rows with a function of the first configured column.
type scorePredictor struct {
	columns []string
	score   func(v float64) float64
	err     error
}

func (p *scorePredictor) FeatureNames() []string { return p.columns }

func (p *scorePredictor) Predict(rows [][]float64) ([]float64, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = p.score(r[0])
	}
	return out, nil
}

func byDuration() *scorePredictor {
	return &scorePredictor{
		columns: []string{models.ColDurationSec},
		score:   func(v float64) float64 { return v / 10000 },
	}
}

func tableWithDurations(durations ...int) models.FeatureTable {
	table := make(models.FeatureTable, len(durations))
	for i, d := range durations {
		table[i] = models.FeatureVector{
			VideoID:     fmt.Sprintf("vid%d", i),
			Title:       fmt.Sprintf("Video %d", i),
			DurationSec: d,
		}
	}
	return table
}

func newTestEngine() *Engine {
	return NewEngine(zerolog.Nop(), EngineOptions{})
}

func resultIDs(results []*models.RankedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.VideoID
	}
	return ids
}

func TestRankEmpty(t *testing.T) {
	out := newTestEngine().Rank(byDuration(), nil)
	require.Equal(t, StatusEmpty, out.Status)
	require.Empty(t, out.Results)
	require.Equal(t, 0, out.Candidates)
}

func TestRankFiltersByDuration(t *testing.T) {
	table := tableWithDurations(100, 7200, 7199, 20000, 9000)
	out := newTestEngine().Rank(byDuration(), table)

	require.Equal(t, StatusRanked, out.Status)
	require.Equal(t, 5, out.Candidates)
	require.Equal(t, 3, out.Admitted)
	require.Equal(t, []string{"vid3", "vid4", "vid1"}, resultIDs(out.Results))

	for i, r := range out.Results {
		require.Equal(t, i+1, r.Rank)
		require.GreaterOrEqual(t, r.DurationMinutes, 120.0)
		if i > 0 {
			require.GreaterOrEqual(t, out.Results[i-1].PredictedScore, r.PredictedScore)
		}
	}
}

func TestRankFallbackToLongest(t *testing.T) {
	tests := []struct {
		name      string
		durations []int
		expected  []string
	}{
		{"More than three candidates", []int{45, 5400, 300, 7000, 600}, []string{"vid3", "vid1", "vid4"}},
		{"Exactly three", []int{10, 20, 30}, []string{"vid2", "vid1", "vid0"}},
		{"Fewer than three", []int{60, 120}, []string{"vid1", "vid0"}},
		{"Single", []int{0}, []string{"vid0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newTestEngine().Rank(byDuration(), tableWithDurations(tt.durations...))
			require.Equal(t, StatusFallback, out.Status)
			require.Equal(t, len(tt.expected), out.Admitted)
			require.Equal(t, tt.expected, resultIDs(out.Results))
		})
	}
}

func TestRankFallbackTiesKeepInputOrder(t *testing.T) {
	flat := &scorePredictor{columns: []string{models.ColDurationSec}, score: func(float64) float64 { return 0.5 }}
	out := newTestEngine().Rank(flat, tableWithDurations(600, 600, 600, 600, 300))

	require.Equal(t, StatusFallback, out.Status)
	require.Equal(t, []string{"vid0", "vid1", "vid2"}, resultIDs(out.Results))
}

func TestRankFallbackScoreTiesFollowInputOrder(t *testing.T) {
	flat := &scorePredictor{columns: []string{models.ColDurationSec}, score: func(float64) float64 { return 0.5 }}
	out := newTestEngine().Rank(flat, tableWithDurations(100, 300, 200))

	require.Equal(t, StatusFallback, out.Status)
	require.Equal(t, []string{"vid0", "vid1", "vid2"}, resultIDs(out.Results))
}

func TestRankFallbackUnscoredKeepsInputOrder(t *testing.T) {
	out := newTestEngine().Rank(nil, tableWithDurations(100, 50, 300, 200))

	require.Equal(t, StatusNoFeatures, out.Status)
	require.Equal(t, []string{"vid0", "vid2", "vid3"}, resultIDs(out.Results))
}

func TestRankScoreTiesKeepInputOrder(t *testing.T) {
	flat := &scorePredictor{columns: []string{models.ColDurationSec}, score: func(float64) float64 { return 1 }}
	out := newTestEngine().Rank(flat, tableWithDurations(8000, 9000, 7200, 10000))

	require.Equal(t, []string{"vid0", "vid1", "vid2", "vid3"}, resultIDs(out.Results))
}

func TestRankSortsByPredictedScore(t *testing.T) {
	// Shorter is better for this predictor, so the order is reversed from duration.
	inverse := &scorePredictor{columns: []string{models.ColDurationSec}, score: func(v float64) float64 { return -v }}
	out := newTestEngine().Rank(inverse, tableWithDurations(9000, 7300, 15000))

	require.Equal(t, []string{"vid1", "vid0", "vid2"}, resultIDs(out.Results))
	require.Equal(t, -7300.0, out.Results[0].PredictedScore)
}

func TestRankResultFields(t *testing.T) {
	table := models.FeatureTable{{VideoID: "dQw4w9WgXcQ", Title: "Long course", DurationSec: 9015}}
	out := newTestEngine().Rank(byDuration(), table)

	require.Len(t, out.Results, 1)
	r := out.Results[0]
	require.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", r.Link)
	require.Equal(t, "Long course", r.Title)
	require.InDelta(t, 150.25, r.DurationMinutes, 1e-9)
	require.InDelta(t, 0.9015, r.PredictedScore, 1e-12)
}

func TestRankNoFeatures(t *testing.T) {
	table := tableWithDurations(9000, 100, 8000)

	tests := []struct {
		name  string
		model Predictor
	}{
		{"Nil model", nil},
		{"No columns", &scorePredictor{}},
		{"Unknown column", &scorePredictor{columns: []string{"thumbnail_brightness"}, score: func(float64) float64 { return 1 }}},
		{"Prediction error", &scorePredictor{columns: []string{models.ColDurationSec}, err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newTestEngine().Rank(tt.model, table)
			require.Equal(t, StatusNoFeatures, out.Status)
			require.Equal(t, 2, out.Admitted)
			require.Equal(t, []string{"vid0", "vid2"}, resultIDs(out.Results))
			for _, r := range out.Results {
				require.NotEmpty(t, r.Link)
				require.NotEmpty(t, r.Title)
				require.Zero(t, r.PredictedScore)
			}
		})
	}
}

func TestRankNilModelDistinctFromEmpty(t *testing.T) {
	empty := newTestEngine().Rank(nil, nil)
	noFeatures := newTestEngine().Rank(nil, tableWithDurations(9000))
	require.NotEqual(t, empty.Status, noFeatures.Status)
}

func TestRankCustomOptions(t *testing.T) {
	e := NewEngine(zerolog.Nop(), EngineOptions{
		MinDurationSeconds: 600,
		FallbackSize:       1,
		WatchURLPrefix:     "https://example.test/v/",
	})

	out := e.Rank(byDuration(), tableWithDurations(100, 700, 650))
	require.Equal(t, StatusRanked, out.Status)
	require.Equal(t, []string{"vid1", "vid2"}, resultIDs(out.Results))
	require.Equal(t, "https://example.test/v/vid1", out.Results[0].Link)

	out = e.Rank(byDuration(), tableWithDurations(100, 200))
	require.Equal(t, StatusFallback, out.Status)
	require.Equal(t, []string{"vid1"}, resultIDs(out.Results))
}

func TestRankDoesNotMutateInput(t *testing.T) {
	table := tableWithDurations(300, 100, 200, 50)
	original := append(models.FeatureTable(nil), table...)

	newTestEngine().Rank(byDuration(), table)
	require.Equal(t, original, table)
}

// End to end: raw records through extraction, target synthesis, training, a
// persisted model and ranking.
func TestPipelineEndToEnd(t *testing.T) {
	durations := []string{"PT45S", "PT1H30M", "PT2H30M", "PT3H45M", "PT2H13M20S"}
	records := make([]models.RawVideo, len(durations))
	comments := map[string][]string{}
	for i, d := range durations {
		id := fmt.Sprintf("video%02d", i)
		records[i] = models.RawVideo{
			ID:           id,
			Title:        fmt.Sprintf("Tutorial %d", i),
			Description:  "A complete and helpful course",
			PublishedAt:  "2024-01-15T10:00:00Z",
			Duration:     d,
			ViewCount:    int64(1000 * (i + 1)),
			LikeCount:    int64(40 * (i + 2)),
			CommentCount: int64(5 * (i + 1)),
		}
		if i%2 == 0 {
			comments[id] = []string{"Excellent explanation, thank you!", "Very clear and useful examples"}
		}
	}

	extractor := newTestExtractor()
	table := extractor.Extract(records, comments)
	require.Equal(t, []int{45, 5400, 9000, 13500, 8000}, []int{
		table[0].DurationSec, table[1].DurationSec, table[2].DurationSec, table[3].DurationSec, table[4].DurationSec,
	})

	opts := quickOptions()
	model, err := Train(SynthesizeTargets(table, DefaultTargetWeights()), opts)
	require.NoError(t, err)

	path := t.TempDir() + "/model.json"
	require.NoError(t, model.Save(path))
	loaded, err := LoadModel(path)
	require.NoError(t, err)

	fresh := extractor.Extract(records, comments)
	out := newTestEngine().Rank(loaded, fresh)

	require.Equal(t, StatusRanked, out.Status)
	require.Equal(t, 3, out.Admitted)
	require.Len(t, out.Results, 3)
	require.ElementsMatch(t, []string{"video02", "video03", "video04"}, resultIDs(out.Results))

	for i, r := range out.Results {
		require.True(t, strings.HasPrefix(r.Link, "https://www.youtube.com/watch?v="))
		require.Equal(t, r.VideoID, strings.TrimPrefix(r.Link, "https://www.youtube.com/watch?v="))
		require.GreaterOrEqual(t, r.DurationMinutes, 120.0)
		if i > 0 {
			require.GreaterOrEqual(t, out.Results[i-1].PredictedScore, r.PredictedScore)
		}
	}
}
