// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"fmt"
	"io"
	"strings"
)

func Example() {
	queueName, _ := Read(
		context.Background(),
		Default("nutrition", Env("EXAMPLE_QUEUE_NAME_NOT_SET")),
	)

	proteinMin, _ := Read(
		context.Background(),
		Default(120, Float64FromString(Env("EXAMPLE_PROTEIN_MIN_NOT_SET"))),
	)

	fmt.Println(queueName)
	fmt.Println(proteinMin)
	// Output:
	// nutrition
	// 120
}

func ExampleUnmarshalYAML() {
	type Thresholds struct {
		ProteinMin float64 `config:"protein_min"`
		FatMax     float64 `config:"fat_max"`
	}

	r := UnmarshalYAML[Thresholds](ReaderOf[io.Reader](strings.NewReader(`protein_min: 150
fat_max: 60
`)))

	thresholds, _ := Read(context.Background(), r)

	fmt.Println("protein_min:", thresholds.ProteinMin)
	fmt.Println("fat_max:", thresholds.FatMax)
	// Output:
	// protein_min: 150
	// fat_max: 60
}
