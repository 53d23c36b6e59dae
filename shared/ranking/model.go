package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"tutorial-ranker/internal/models"
)

const (
	// MinRowsForValidation is the smallest training set that gets a hold-out split.
	MinRowsForValidation = 5
	// ValidationPercent of the rows (rounded up) is held out when the set is large enough.
	ValidationPercent = 20

	DefaultTrees = 300
	DefaultSeed  = 42

	modelArtifactVersion = 1
)

var (
	// ErrNoTrainingData is returned by Train when there is nothing to fit.
	ErrNoTrainingData = errors.New("no training data available")
	// ErrFeatureMismatch is returned when prediction input does not match the model.
	ErrFeatureMismatch = errors.New("feature columns do not match model")
)

// Predictor is what the ranking engine needs from a fitted model.
type Predictor interface {
	FeatureNames() []string
	Predict(rows [][]float64) ([]float64, error)
}

type TrainOptions struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
	// Features defaults to models.FeatureColumns.
	Features []string
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Trees:          DefaultTrees,
		MinSamplesLeaf: 1,
		Seed:           DefaultSeed,
	}
}

// Validation summarises model error on the held-out rows.
type Validation struct {
	Rows int     `json:"rows"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// Model is a fitted regression forest over named feature columns.
type Model struct {
	features     []string
	trees        []regressionTree
	trainedAt    time.Time
	trainingRows int
	validation   *Validation
}

// Train fits a model on rows. Sets smaller than MinRowsForValidation are used in full;
// larger sets hold out ValidationPercent of the rows, chosen with opts.Seed.
func Train(rows []models.LabeledVector, opts TrainOptions) (*Model, error) {
	if len(rows) == 0 {
		return nil, ErrNoTrainingData
	}
	if opts.Trees <= 0 {
		opts.Trees = DefaultTrees
	}
	if opts.MinSamplesLeaf <= 0 {
		opts.MinSamplesLeaf = 1
	}
	if len(opts.Features) == 0 {
		opts.Features = models.FeatureColumns
	}

	table := make(models.FeatureTable, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		table[i] = r.FeatureVector
		y[i] = r.Target
	}
	x, missing := FeatureMatrix(table, opts.Features)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown columns %v", ErrFeatureMismatch, missing)
	}

	trainIdx, testIdx := splitRows(len(rows), opts.Seed)

	trainX := make([][]float64, len(trainIdx))
	trainY := make([]float64, len(trainIdx))
	for i, idx := range trainIdx {
		trainX[i] = x[idx]
		trainY[i] = y[idx]
	}

	m := &Model{
		features: append([]string(nil), opts.Features...),
		trees: fitForest(trainX, trainY, forestParams{
			trees:          opts.Trees,
			maxDepth:       opts.MaxDepth,
			minSamplesLeaf: opts.MinSamplesLeaf,
			seed:           opts.Seed,
		}),
		trainedAt:    time.Now().UTC(),
		trainingRows: len(trainIdx),
	}

	if len(testIdx) > 0 {
		m.validation = m.validate(x, y, testIdx)
	}
	return m, nil
}

// splitRows returns train and hold-out row indices.
func splitRows(n int, seed int64) (train, test []int) {
	if n < MinRowsForValidation {
		train = make([]int, n)
		for i := range train {
			train[i] = i
		}
		return train, nil
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	testCount := (n*ValidationPercent + 99) / 100
	return perm[testCount:], perm[:testCount]
}

func (m *Model) validate(x [][]float64, y []float64, testIdx []int) *Validation {
	var mean float64
	for _, i := range testIdx {
		mean += y[i]
	}
	mean /= float64(len(testIdx))

	var absErr, ssRes, ssTot float64
	for _, i := range testIdx {
		pred := predictForest(m.trees, x[i])
		absErr += math.Abs(pred - y[i])
		ssRes += (pred - y[i]) * (pred - y[i])
		ssTot += (y[i] - mean) * (y[i] - mean)
	}

	v := &Validation{Rows: len(testIdx), MAE: absErr / float64(len(testIdx))}
	if ssTot > 0 {
		v.R2 = 1 - ssRes/ssTot
	}
	return v
}

func (m *Model) FeatureNames() []string {
	return append([]string(nil), m.features...)
}

// Predict returns one score per row, in row order.
func (m *Model) Predict(rows [][]float64) ([]float64, error) {
	preds := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(m.features) {
			return nil, fmt.Errorf("%w: row %d has %d values, model expects %d", ErrFeatureMismatch, i, len(row), len(m.features))
		}
		preds[i] = predictForest(m.trees, row)
	}
	return preds, nil
}

func (m *Model) TrainingRows() int { return m.trainingRows }

func (m *Model) TrainedAt() time.Time { return m.trainedAt }

// Validation is nil when the model was fit without a hold-out split.
func (m *Model) Validation() *Validation { return m.validation }

// FeatureMatrix projects table onto columns. Columns a FeatureVector cannot resolve
// are returned in missing and the matrix is nil.
func FeatureMatrix(table models.FeatureTable, columns []string) (matrix [][]float64, missing []string) {
	probe := models.FeatureVector{}
	for _, c := range columns {
		if _, ok := probe.Value(c); !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, missing
	}

	matrix = make([][]float64, len(table))
	for i, fv := range table {
		row := make([]float64, len(columns))
		for j, c := range columns {
			row[j], _ = fv.Value(c)
		}
		matrix[i] = row
	}
	return matrix, nil
}

type modelArtifact struct {
	Version      int              `json:"version"`
	Features     []string         `json:"features"`
	TrainedAt    time.Time        `json:"trained_at"`
	TrainingRows int              `json:"training_rows"`
	Validation   *Validation      `json:"validation,omitempty"`
	Trees        []regressionTree `json:"trees"`
}

// Save writes the model to path, replacing any previous artifact.
func (m *Model) Save(path string) (err error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close model file: %w", cerr)
		}
	}()

	artifact := modelArtifact{
		Version:      modelArtifactVersion,
		Features:     m.features,
		TrainedAt:    m.trainedAt,
		TrainingRows: m.trainingRows,
		Validation:   m.validation,
		Trees:        m.trees,
	}
	if err := json.NewEncoder(f).Encode(artifact); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadModel reads a model previously written by Save.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()

	var artifact modelArtifact
	if err := json.NewDecoder(f).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if artifact.Version != modelArtifactVersion {
		return nil, fmt.Errorf("unsupported model version %d", artifact.Version)
	}
	if len(artifact.Trees) == 0 {
		return nil, fmt.Errorf("model %s has no trees", path)
	}

	return &Model{
		features:     artifact.Features,
		trees:        artifact.Trees,
		trainedAt:    artifact.TrainedAt,
		trainingRows: artifact.TrainingRows,
		validation:   artifact.Validation,
	}, nil
}
