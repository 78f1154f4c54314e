// Package model loads pretrained per-item regression artifacts. Training
// happens elsewhere; artifacts are consumed read-only, one per volatility
// class, loaded once and shared across all forecasting workers in a run.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/lorwen/vegepredict/internal/contracts"
	"github.com/lorwen/vegepredict/internal/features"
)

// Model is an opaque pretrained regression: a feature vector in, a
// scalar price out. Implementations must be safe for concurrent use.
type Model interface {
	// Predict evaluates the regression on the vector. Features absent
	// from the vector are treated as 0.
	Predict(fv contracts.FeatureVector) float64
	// Features returns the feature names the model was trained on, in
	// training order.
	Features() []string
}

// artifact is the on-disk format: one file per volatility class holding
// one trained model per item, exported by the training pipeline.
type artifact struct {
	Class     string                  `json:"class"`
	TrainedAt string                  `json:"trained_at"`
	Items     map[string]itemArtifact `json:"items"`
}

type itemArtifact struct {
	FeatureNames []string           `json:"feature_names"`
	Intercept    float64            `json:"intercept"`
	Weights      map[string]float64 `json:"weights"`
}

// linearModel is the current artifact implementation.
type linearModel struct {
	featureNames []string
	intercept    float64
	weights      []float64
}

func (m *linearModel) Predict(fv contracts.FeatureVector) float64 {
	x := features.Select(fv, m.featureNames)
	y := m.intercept
	for i, w := range m.weights {
		y += w * x[i]
	}
	return y
}

func (m *linearModel) Features() []string {
	return m.featureNames
}

// Registry holds the loaded models of one volatility class, keyed by
// item ID. It is immutable after load.
type Registry struct {
	class  contracts.VolatilityClass
	models map[int]Model
}

// LoadRegistry reads a class artifact from disk.
func LoadRegistry(path string, class contracts.VolatilityClass) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact %s: %w", path, err)
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode model artifact %s: %w", path, err)
	}
	if art.Class != "" && art.Class != string(class) {
		return nil, fmt.Errorf("model artifact %s is for class %q, want %q", path, art.Class, class)
	}

	models := make(map[int]Model, len(art.Items))
	for key, item := range art.Items {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("model artifact %s: bad item key %q", path, key)
		}
		if len(item.FeatureNames) == 0 {
			return nil, fmt.Errorf("model artifact %s: item %d has no features", path, id)
		}
		weights := make([]float64, len(item.FeatureNames))
		for i, name := range item.FeatureNames {
			weights[i] = item.Weights[name]
		}
		models[id] = &linearModel{
			featureNames: item.FeatureNames,
			intercept:    item.Intercept,
			weights:      weights,
		}
	}

	return &Registry{class: class, models: models}, nil
}

// Class returns the volatility class the registry serves.
func (r *Registry) Class() contracts.VolatilityClass {
	return r.class
}

// Model returns the trained model for an item, if one exists.
func (r *Registry) Model(itemID int) (Model, bool) {
	m, ok := r.models[itemID]
	return m, ok
}

// ItemIDs returns the IDs that have a trained model, sorted.
func (r *Registry) ItemIDs() []int {
	ids := make([]int, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of loaded models.
func (r *Registry) Len() int {
	return len(r.models)
}
