// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package nutrient defines the daily nutrient record exchanged between the
// producer and consumer along with its text wire format.
package nutrient

import (
	"math"
	"strings"
)

// Nutrient names a tracked nutrient. Names outside the known set are
// carried verbatim so they survive a decode and encode.
type Nutrient string

const (
	Protein       Nutrient = "Protein"
	Carbohydrates Nutrient = "Carbohydrates"
	Fat           Nutrient = "Fat"
	Sodium        Nutrient = "Sodium"
	Fiber         Nutrient = "Fiber"
)

// All returns the known nutrients in the order they are encoded.
func All() []Nutrient {
	return []Nutrient{Protein, Carbohydrates, Fat, Sodium, Fiber}
}

var aliases = map[string]Nutrient{
	"protein":       Protein,
	"carbohydrates": Carbohydrates,
	"carbohydrate":  Carbohydrates,
	"carbs":         Carbohydrates,
	"fat":           Fat,
	"fats":          Fat,
	"sodium":        Sodium,
	"fiber":         Fiber,
	"fibre":         Fiber,
}

// Parse maps a nutrient name, including food log column spellings such as
// "Protein (g)" or "Sodium (mg)", onto a known [Nutrient]. The match is case
// insensitive. Unknown names are returned trimmed along with false.
func Parse(name string) (Nutrient, bool) {
	name = strings.TrimSpace(name)

	key := strings.ToLower(name)
	if i := strings.Index(key, "("); i > 0 {
		key = strings.TrimSpace(key[:i])
	}

	n, ok := aliases[key]
	if !ok {
		return Nutrient(name), false
	}
	return n, true
}

// Known reports whether n is one of [All].
func (n Nutrient) Known() bool {
	switch n {
	case Protein, Carbohydrates, Fat, Sodium, Fiber:
		return true
	default:
		return false
	}
}

// Record holds the nutrient totals for a single day.
type Record struct {
	Date   string
	Values map[Nutrient]float64
}

// Value returns the value of n and whether it is present.
func (r Record) Value(n Nutrient) (float64, bool) {
	v, ok := r.Values[n]
	return v, ok
}

// Atwater factors in kcal per gram.
const (
	ProteinKcalPerGram      = 4
	CarbohydrateKcalPerGram = 4
	FatKcalPerGram          = 9
)

// Calories returns the Atwater total of the given values rounded with [Round].
// It reports false unless protein, carbohydrates and fat are all present.
func Calories(values map[Nutrient]float64) (float64, bool) {
	p, ok := values[Protein]
	if !ok {
		return 0, false
	}
	c, ok := values[Carbohydrates]
	if !ok {
		return 0, false
	}
	f, ok := values[Fat]
	if !ok {
		return 0, false
	}
	return Round(ProteinKcalPerGram*p + CarbohydrateKcalPerGram*c + FatKcalPerGram*f), true
}

// Precision is the number of decimal places values are rounded to.
const Precision = 1

// Round rounds v half away from zero to [Precision] decimal places.
func Round(v float64) float64 {
	scale := math.Pow10(Precision)
	return math.Round(v*scale) / scale
}
