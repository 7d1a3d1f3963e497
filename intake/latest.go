// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package intake

import (
	"maps"
	"sync"

	"github.com/z5labs/nutrition/nutrient"
)

// LatestValues keeps the most recently received value of each nutrient.
// Every nutrient has a window of one, so an update replaces the previous value.
type LatestValues struct {
	mu     sync.RWMutex
	values map[nutrient.Nutrient]float64
}

// NewLatestValues returns an empty [LatestValues].
func NewLatestValues() *LatestValues {
	return &LatestValues{
		values: make(map[nutrient.Nutrient]float64),
	}
}

// Update replaces the window of every nutrient present in values.
func (l *LatestValues) Update(values map[nutrient.Nutrient]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	maps.Copy(l.values, values)
}

// Get returns the latest value of n.
func (l *LatestValues) Get(n nutrient.Nutrient) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, ok := l.values[n]
	return v, ok
}

// Snapshot returns a copy of the latest values.
func (l *LatestValues) Snapshot() map[nutrient.Nutrient]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return maps.Clone(l.values)
}
