package blowup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Weights maps component name to its share of the blowup score. The active
// set always sums to ~1.0; the calibrator renormalizes before saving.
type Weights map[string]float64

// DefaultWeights returns the hand-tuned starting weights. The calibrator
// replaces them once enough trade feedback accumulates.
func DefaultWeights() Weights {
	return Weights{
		compVIXInversion:   0.20,
		compFlowImbalance:  0.20,
		compCryptoCascade:  0.10,
		compPremarketGap:   0.10,
		compEventProximity: 0.15,
		compCrossAsset:     0.10,
		compVolumeSurge:    0.10,
		compBreadth:        0.05,
	}
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// LoadWeights reads the weights file at path, merging the stored values
// over the defaults so newly added components keep a weight even when the
// file predates them. A missing or unreadable file returns the defaults.
func LoadWeights(path string) (Weights, error) {
	weights := DefaultWeights()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return weights, nil
		}
		return weights, fmt.Errorf("read weights file: %w", err)
	}

	var stored map[string]float64
	if err := json.Unmarshal(data, &stored); err != nil {
		return weights, fmt.Errorf("parse weights file: %w", err)
	}
	for k, v := range stored {
		weights[k] = v
	}
	return weights, nil
}

// SaveWeights writes the weights to path. The write goes through a temp
// file and rename so a crash mid-write never leaves a truncated file for
// the next hot reload to choke on.
func SaveWeights(path string, w Weights) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create weights directory: %w", err)
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write weights file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace weights file: %w", err)
	}
	return nil
}
