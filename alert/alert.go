// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package alert evaluates daily nutrient totals against fixed thresholds.
package alert

import (
	"fmt"
	"strconv"

	"github.com/z5labs/nutrition/nutrient"
)

// Comparator is the direction in which a threshold is breached.
type Comparator string

const (
	Below Comparator = "<"
	Above Comparator = ">"
)

// TotalCalories names the derived calorie total in alerts.
const TotalCalories = "Total Calories"

// Thresholds are the limits checked by [Evaluate]. They do not change while
// a consumer is running.
type Thresholds struct {
	ProteinMin       float64
	FatMax           float64
	CarbohydratesMax float64
	CaloriesMax      float64
}

// DefaultThresholds returns 120g protein minimum, 75g fat maximum,
// 500g carbohydrate maximum and 3000 kcal maximum.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ProteinMin:       120,
		FatMax:           75,
		CarbohydratesMax: 500,
		CaloriesMax:      3000,
	}
}

// Alert is a breached threshold.
type Alert struct {
	Name       string
	Value      float64
	Limit      float64
	Comparator Comparator
	Message    string
}

type rule struct {
	name       string
	comparator Comparator
	limit      func(Thresholds) float64
	value      func(map[nutrient.Nutrient]float64) (float64, bool)
	unit       string
	verb       string
}

func valueOf(n nutrient.Nutrient) func(map[nutrient.Nutrient]float64) (float64, bool) {
	return func(values map[nutrient.Nutrient]float64) (float64, bool) {
		v, ok := values[n]
		return v, ok
	}
}

var rules = []rule{
	{
		name:       string(nutrient.Protein),
		comparator: Below,
		limit:      func(t Thresholds) float64 { return t.ProteinMin },
		value:      valueOf(nutrient.Protein),
		unit:       "g",
		verb:       "below",
	},
	{
		name:       string(nutrient.Fat),
		comparator: Above,
		limit:      func(t Thresholds) float64 { return t.FatMax },
		value:      valueOf(nutrient.Fat),
		unit:       "g",
		verb:       "above",
	},
	{
		name:       string(nutrient.Carbohydrates),
		comparator: Above,
		limit:      func(t Thresholds) float64 { return t.CarbohydratesMax },
		value:      valueOf(nutrient.Carbohydrates),
		unit:       "g",
		verb:       "above",
	},
	{
		name:       TotalCalories,
		comparator: Above,
		limit:      func(t Thresholds) float64 { return t.CaloriesMax },
		value:      nutrient.Calories,
		verb:       "over",
	},
}

// Evaluate returns the alerts fired by values in a fixed order: protein,
// fat, carbohydrates, then total calories.
//
// It depends only on its arguments. A rule whose input is absent does not
// fire and the calorie rule requires protein, carbohydrates and fat.
func Evaluate(t Thresholds, values map[nutrient.Nutrient]float64) []Alert {
	var alerts []Alert
	for _, r := range rules {
		v, ok := r.value(values)
		if !ok {
			continue
		}

		limit := r.limit(t)
		if !r.comparator.breached(v, limit) {
			continue
		}

		alerts = append(alerts, Alert{
			Name:       r.name,
			Value:      v,
			Limit:      limit,
			Comparator: r.comparator,
			Message:    fmt.Sprintf("%s %s%s", r.verb, strconv.FormatFloat(limit, 'f', -1, 64), r.unit),
		})
	}
	return alerts
}

func (c Comparator) breached(v, limit float64) bool {
	switch c {
	case Below:
		return v < limit
	case Above:
		return v > limit
	default:
		return false
	}
}
