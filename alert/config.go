// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/z5labs/nutrition/config"
)

// ErrInvalidThreshold is returned when a configured threshold is negative.
var ErrInvalidThreshold = errors.New("alert: threshold must not be negative")

// Validate checks that every threshold is non-negative.
func (t Thresholds) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{name: "protein minimum", value: t.ProteinMin},
		{name: "fat maximum", value: t.FatMax},
		{name: "carbohydrates maximum", value: t.CarbohydratesMax},
		{name: "calories maximum", value: t.CaloriesMax},
	}
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("%w: %s: %v", ErrInvalidThreshold, f.name, f.value)
		}
	}
	return nil
}

type thresholdsFile struct {
	ProteinMin       *float64 `config:"protein_min"`
	FatMax           *float64 `config:"fat_max"`
	CarbohydratesMax *float64 `config:"carbohydrates_max"`
	CaloriesMax      *float64 `config:"calories_max"`
}

// ThresholdsConfig layers threshold sources. Fields set in File override
// Base and the individual readers override both.
type ThresholdsConfig struct {
	Base             Thresholds
	File             config.Reader[string]
	ProteinMin       config.Reader[float64]
	FatMax           config.Reader[float64]
	CarbohydratesMax config.Reader[float64]
	CaloriesMax      config.Reader[float64]
}

// ThresholdsFromEnv reads the optional YAML file named by
// NUTRITION_THRESHOLDS_FILE followed by NUTRITION_PROTEIN_MIN,
// NUTRITION_FAT_MAX, NUTRITION_CARBOHYDRATES_MAX and NUTRITION_CALORIES_MAX.
func ThresholdsFromEnv() ThresholdsConfig {
	return ThresholdsConfig{
		Base:             DefaultThresholds(),
		File:             config.Env("NUTRITION_THRESHOLDS_FILE"),
		ProteinMin:       config.Float64FromString(config.Env("NUTRITION_PROTEIN_MIN")),
		FatMax:           config.Float64FromString(config.Env("NUTRITION_FAT_MAX")),
		CarbohydratesMax: config.Float64FromString(config.Env("NUTRITION_CARBOHYDRATES_MAX")),
		CaloriesMax:      config.Float64FromString(config.Env("NUTRITION_CALORIES_MAX")),
	}
}

// Read implements the [config.Reader] interface.
func (cfg ThresholdsConfig) Read(ctx context.Context) (config.Value[Thresholds], error) {
	t := cfg.Base

	fv, err := config.YAMLFile[thresholdsFile](cfg.File).Read(ctx)
	if err != nil {
		return config.Value[Thresholds]{}, fmt.Errorf("alert: read thresholds file: %w", err)
	}
	if f, ok := fv.Value(); ok {
		setIf(&t.ProteinMin, f.ProteinMin)
		setIf(&t.FatMax, f.FatMax)
		setIf(&t.CarbohydratesMax, f.CarbohydratesMax)
		setIf(&t.CaloriesMax, f.CaloriesMax)
	}

	overrides := []struct {
		dst *float64
		r   config.Reader[float64]
	}{
		{dst: &t.ProteinMin, r: cfg.ProteinMin},
		{dst: &t.FatMax, r: cfg.FatMax},
		{dst: &t.CarbohydratesMax, r: cfg.CarbohydratesMax},
		{dst: &t.CaloriesMax, r: cfg.CaloriesMax},
	}
	for _, o := range overrides {
		v, err := config.Read(ctx, o.r)
		if errors.Is(err, config.ErrValueNotSet) {
			continue
		}
		if err != nil {
			return config.Value[Thresholds]{}, fmt.Errorf("alert: read threshold: %w", err)
		}
		*o.dst = v
	}

	err = t.Validate()
	if err != nil {
		return config.Value[Thresholds]{}, err
	}
	return config.ValueOf(t), nil
}

func setIf(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
