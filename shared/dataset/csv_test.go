package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tutorial-ranker/internal/models"
)

func TestRawVideosRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", RawVideosFile)
	records := []models.RawVideo{
		{
			ID:           "dQw4w9WgXcQ",
			Title:        `Go, "the" complete course`,
			Description:  "line one\nline two",
			PublishedAt:  "2023-01-01T00:00:00Z",
			Duration:     "PT2H30M15S",
			ViewCount:    1500000,
			LikeCount:    25000,
			CommentCount: 3500,
		},
		{ID: "jNQXAC9IVRw", Duration: "PT15M30S"},
	}

	require.NoError(t, WriteRawVideos(path, records))
	got, err := ReadRawVideos(path)
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestReadRawVideosTolerance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	content := "video_id,title,view_count\nabc,First,12\ndef,Second,n/a\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := ReadRawVideos(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(12), got[0].ViewCount)
	require.Equal(t, int64(0), got[1].ViewCount)
	require.Equal(t, "", got[1].Duration)
}

func TestReadRawVideosErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadRawVideos(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = ReadRawVideos(empty)
	require.Error(t, err)

	noID := filepath.Join(dir, "noid.csv")
	require.NoError(t, os.WriteFile(noID, []byte("title\nx\n"), 0644))
	_, err = ReadRawVideos(noID)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func sampleTable() models.FeatureTable {
	return models.FeatureTable{
		{
			VideoID:          "a",
			Title:            "Course A",
			Duration:         "PT2H",
			ViewCount:        1000,
			LikeCount:        50,
			CommentCount:     7,
			LikeRatio:        50.0 / 1001.0,
			CommentRatio:     7.0 / 1001.0,
			TitleLen:         8,
			DescLen:          120,
			DescSentiment:    0.35,
			CommentSentiment: -0.125,
			DurationSec:      7200,
			AgeDays:          40,
		},
		{VideoID: "b", Title: "Course B", CommentSentiment: 0.1},
	}
}

func TestFeaturesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FeaturesFile)
	table := sampleTable()

	require.NoError(t, WriteFeatures(path, table))
	got, err := ReadFeatures(path)
	require.NoError(t, err)
	require.Equal(t, table, got)

	_, err = ReadLabeled(path)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestLabeledRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FeaturesFile)
	table := sampleTable()
	labeled := []models.LabeledVector{
		{FeatureVector: table[0], Target: 0.0123},
		{FeatureVector: table[1], Target: 0.04},
	}

	require.NoError(t, WriteLabeled(path, labeled))
	got, err := ReadLabeled(path)
	require.NoError(t, err)
	require.Equal(t, labeled, got)

	// The target column is ignored when only features are needed.
	features, err := ReadFeatures(path)
	require.NoError(t, err)
	require.Equal(t, table, features)
}

func TestReadFeaturesInvalidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), FeaturesFile)
	require.NoError(t, WriteFeatures(path, sampleTable()[:1]))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	broken := []byte(string(content) + "c,Course C,PT1H,x,0,0,0,0,0,0,0,0,0,0\n")
	require.NoError(t, os.WriteFile(path, broken, 0644))

	_, err = ReadFeatures(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}

func TestReadFeaturesMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), FeaturesFile)
	require.NoError(t, os.WriteFile(path, []byte("video_id,title,view_count\na,A,1\n"), 0644))

	_, err := ReadFeatures(path)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestWriteRankedResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), RankedFile)
	results := []*models.RankedResult{
		{Rank: 1, VideoID: "a", Title: "A", Link: "https://www.youtube.com/watch?v=a", PredictedScore: 0.5, DurationMinutes: 150.5},
		{Rank: 2, VideoID: "b", Title: "B", Link: "https://www.youtube.com/watch?v=b", PredictedScore: 0.25, DurationMinutes: 120},
	}

	require.NoError(t, WriteRankedResults(path, results))

	header, rows, err := readTable(path)
	require.NoError(t, err)
	require.Equal(t, rankedHeader, header)
	require.Equal(t, [][]string{
		{"1", "a", "A", "https://www.youtube.com/watch?v=a", "0.5", "150.5"},
		{"2", "b", "B", "https://www.youtube.com/watch?v=b", "0.25", "120.0"},
	}, rows)
}

func TestWriteEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), RankedFile)
	require.NoError(t, WriteRankedResults(path, nil))

	header, rows, err := readTable(path)
	require.NoError(t, err)
	require.Equal(t, rankedHeader, header)
	require.Empty(t, rows)
}

func TestWriteTableErrors(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, WriteFeatures(dir, sampleTable()))

	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	require.Error(t, WriteFeatures(filepath.Join(blocker, FeaturesFile), sampleTable()))
}

func TestWriteTableOverwritesCompletely(t *testing.T) {
	path := filepath.Join(t.TempDir(), FeaturesFile)
	require.NoError(t, WriteFeatures(path, sampleTable()))
	require.NoError(t, WriteFeatures(path, sampleTable()[:1]))

	got, err := ReadFeatures(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, sampleTable()[0].VideoID, got[0].VideoID)
}
