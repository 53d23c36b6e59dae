package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"tutorial-ranker/internal/models"
)

const (
	RawVideosFile = "raw_videos.csv"
	FeaturesFile  = "features.csv"
	TrainingFile  = "training.csv"
	RankedFile    = "ranked.csv"
	ModelFile     = "model.json"

	// TargetColumn holds the synthesized training target in a features table.
	TargetColumn = "target_score"
)

// ErrMissingColumn is returned when a CSV table lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var rawVideoHeader = []string{
	"video_id", "title", "description", "publishedAt", "duration",
	"view_count", "like_count", "comment_count",
}

var rankedHeader = []string{
	"rank", "video_id", "title", "video_link", "predicted_score", "duration_min",
}

// WriteRawVideos writes records to path, replacing any existing file.
func WriteRawVideos(path string, records []models.RawVideo) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.Title,
			r.Description,
			r.PublishedAt,
			r.Duration,
			strconv.FormatInt(r.ViewCount, 10),
			strconv.FormatInt(r.LikeCount, 10),
			strconv.FormatInt(r.CommentCount, 10),
		})
	}
	return writeTable(path, rawVideoHeader, rows)
}

// ReadRawVideos loads a table written by WriteRawVideos. Blank or unparseable
// counts read as zero.
func ReadRawVideos(path string) ([]models.RawVideo, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idx, err := columnIndex(header, "video_id")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	records := make([]models.RawVideo, 0, len(rows))
	for _, row := range rows {
		get := func(name string) string { return cell(row, idx, name) }
		records = append(records, models.RawVideo{
			ID:           get("video_id"),
			Title:        get("title"),
			Description:  get("description"),
			PublishedAt:  get("publishedAt"),
			Duration:     get("duration"),
			ViewCount:    parseCount(get("view_count")),
			LikeCount:    parseCount(get("like_count")),
			CommentCount: parseCount(get("comment_count")),
		})
	}
	return records, nil
}

// WriteFeatures writes the feature table without targets.
func WriteFeatures(path string, table models.FeatureTable) error {
	rows := make([][]string, 0, len(table))
	for _, fv := range table {
		rows = append(rows, featureRow(fv))
	}
	return writeTable(path, featureHeader(false), rows)
}

// WriteLabeled writes feature vectors together with their target column.
func WriteLabeled(path string, labeled []models.LabeledVector) error {
	rows := make([][]string, 0, len(labeled))
	for _, lv := range labeled {
		rows = append(rows, append(featureRow(lv.FeatureVector), formatFloat(lv.Target)))
	}
	return writeTable(path, featureHeader(true), rows)
}

// ReadFeatures loads a features table. A target column, if present, is ignored.
func ReadFeatures(path string) (models.FeatureTable, error) {
	labeled, _, err := readFeatures(path)
	if err != nil {
		return nil, err
	}
	table := make(models.FeatureTable, len(labeled))
	for i, lv := range labeled {
		table[i] = lv.FeatureVector
	}
	return table, nil
}

// ReadLabeled loads a features table that must carry the target column.
func ReadLabeled(path string) ([]models.LabeledVector, error) {
	labeled, hasTarget, err := readFeatures(path)
	if err != nil {
		return nil, err
	}
	if !hasTarget {
		return nil, fmt.Errorf("%s: %w: %s", path, ErrMissingColumn, TargetColumn)
	}
	return labeled, nil
}

// WriteRankedResults writes the final ranking in rank order.
func WriteRankedResults(path string, results []*models.RankedResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(r.Rank),
			r.VideoID,
			r.Title,
			r.Link,
			formatFloat(r.PredictedScore),
			strconv.FormatFloat(r.DurationMinutes, 'f', 1, 64),
		})
	}
	return writeTable(path, rankedHeader, rows)
}

func featureHeader(withTarget bool) []string {
	header := append([]string{"video_id", "title", "duration"}, models.FeatureColumns...)
	if withTarget {
		header = append(header, TargetColumn)
	}
	return header
}

func featureRow(fv models.FeatureVector) []string {
	row := []string{fv.VideoID, fv.Title, fv.Duration}
	for _, col := range models.FeatureColumns {
		v, _ := fv.Value(col)
		row = append(row, formatFloat(v))
	}
	return row
}

func readFeatures(path string) ([]models.LabeledVector, bool, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, false, err
	}
	idx, err := columnIndex(header, append([]string{"video_id"}, models.FeatureColumns...)...)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	_, hasTarget := idx[TargetColumn]

	labeled := make([]models.LabeledVector, 0, len(rows))
	for line, row := range rows {
		lv := models.LabeledVector{
			FeatureVector: models.FeatureVector{
				VideoID:  cell(row, idx, "video_id"),
				Title:    cell(row, idx, "title"),
				Duration: cell(row, idx, "duration"),
			},
		}
		for _, col := range models.FeatureColumns {
			v, err := strconv.ParseFloat(cell(row, idx, col), 64)
			if err != nil {
				return nil, false, fmt.Errorf("%s line %d: invalid %s: %w", path, line+2, col, err)
			}
			setFeature(&lv.FeatureVector, col, v)
		}
		if hasTarget {
			lv.Target, err = strconv.ParseFloat(cell(row, idx, TargetColumn), 64)
			if err != nil {
				return nil, false, fmt.Errorf("%s line %d: invalid %s: %w", path, line+2, TargetColumn, err)
			}
		}
		labeled = append(labeled, lv)
	}
	return labeled, hasTarget, nil
}

func setFeature(fv *models.FeatureVector, column string, v float64) {
	switch column {
	case models.ColViewCount:
		fv.ViewCount = int64(v)
	case models.ColLikeCount:
		fv.LikeCount = int64(v)
	case models.ColCommentCount:
		fv.CommentCount = int64(v)
	case models.ColLikeRatio:
		fv.LikeRatio = v
	case models.ColCommentRatio:
		fv.CommentRatio = v
	case models.ColTitleLen:
		fv.TitleLen = int(v)
	case models.ColDescLen:
		fv.DescLen = int(v)
	case models.ColDescSentiment:
		fv.DescSentiment = v
	case models.ColCommentSentiment:
		fv.CommentSentiment = v
	case models.ColDurationSec:
		fv.DurationSec = int(v)
	case models.ColAgeDays:
		fv.AgeDays = int(v)
	}
}

func writeTable(path string, header []string, rows [][]string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close CSV file %s: %w", path, cerr)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV rows to %s: %w", path, err)
	}
	return nil
}

func readTable(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%s: empty CSV file", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV rows from %s: %w", path, err)
	}
	return header, rows, nil
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return idx, nil
}

func cell(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
