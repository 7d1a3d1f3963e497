// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package aggregate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/z5labs/nutrition/nutrient"
)

// ErrNoDateColumn is returned by [ReadEntries] when the header has no Date column.
var ErrNoDateColumn = errors.New("aggregate: food log has no Date column")

// ReadEntries parses a CSV food log whose first row is a header.
//
// The header must contain a Date column. Columns whose names [nutrient.Parse]
// recognises become entry values and all other columns are ignored. When
// two columns name the same nutrient the first one is used. Rows without a
// date are skipped.
func ReadEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoDateColumn
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate: read header: %w", err)
	}

	dateCol := -1
	cols := make(map[int]nutrient.Nutrient)
	seen := make(map[nutrient.Nutrient]bool)
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if strings.EqualFold(name, "Date") {
			if dateCol < 0 {
				dateCol = i
			}
			continue
		}

		n, known := nutrient.Parse(name)
		if !known || seen[n] {
			continue
		}
		seen[n] = true
		cols[i] = n
	}
	if dateCol < 0 {
		return nil, ErrNoDateColumn
	}

	var entries []Entry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("aggregate: read row: %w", err)
		}
		if dateCol >= len(row) || strings.TrimSpace(row[dateCol]) == "" {
			continue
		}

		e := Entry{
			Date:   strings.TrimSpace(row[dateCol]),
			Values: make(map[nutrient.Nutrient]string, len(cols)),
		}
		for i, n := range cols {
			if i < len(row) {
				e.Values[n] = row[i]
				continue
			}
			e.Values[n] = ""
		}
		entries = append(entries, e)
	}
}
