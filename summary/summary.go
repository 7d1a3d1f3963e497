// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package summary appends processed daily records to a row oriented log.
package summary

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/z5labs/nutrition/nutrient"
)

// Columns of the summary log in order. Columns without a value are left blank.
var Columns = []string{
	"Date",
	"Weight",
	"Protein",
	"Carbohydrates",
	"Fats",
	"Total Calories",
	"Water",
	"Caffeine",
	"Sodium",
	"Fiber",
}

// Header is the first line of every summary log.
var Header = strings.Join(Columns, sep)

const sep = ", "

// Row is one processed record.
type Row struct {
	Date     string
	Values   map[nutrient.Nutrient]float64
	Calories float64

	// HasCalories is false when the record lacked a macronutrient.
	HasCalories bool
}

// NewRow rounds the values of r and derives its total calories.
func NewRow(r nutrient.Record) Row {
	values := make(map[nutrient.Nutrient]float64, len(r.Values))
	for n, v := range r.Values {
		values[n] = nutrient.Round(v)
	}

	kcal, ok := nutrient.Calories(r.Values)
	return Row{
		Date:        r.Date,
		Values:      values,
		Calories:    kcal,
		HasCalories: ok,
	}
}

// Fields returns the cells of the row aligned with [Columns].
func (r Row) Fields() []string {
	value := func(n nutrient.Nutrient) string {
		v, ok := r.Values[n]
		if !ok {
			return ""
		}
		return formatValue(v)
	}

	calories := ""
	if r.HasCalories {
		calories = formatValue(r.Calories)
	}

	return []string{
		r.Date,
		value("Weight"),
		value(nutrient.Protein),
		value(nutrient.Carbohydrates),
		value(nutrient.Fat),
		calories,
		value("Water"),
		value("Caffeine"),
		value(nutrient.Sodium),
		value(nutrient.Fiber),
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', nutrient.Precision, 64)
}

// String formats the row as a summary log line without a trailing newline.
func (r Row) String() string {
	fields := r.Fields()
	for i, f := range fields {
		fields[i] = quote(f)
	}
	return strings.Join(fields, sep)
}

func quote(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CSVSink appends rows to a writer in arrival order.
type CSVSink struct {
	mu            sync.Mutex
	w             io.Writer
	headerWritten bool
}

// NewCSVSink returns a sink writing to w. The header is written before the
// first row unless the target already has content.
func NewCSVSink(w io.Writer, hasContent bool) *CSVSink {
	return &CSVSink{
		w:             w,
		headerWritten: hasContent,
	}
}

// Append writes row to the sink.
func (s *CSVSink) Append(ctx context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	if !s.headerWritten {
		sb.WriteString(Header)
		sb.WriteByte('\n')
	}
	sb.WriteString(row.String())
	sb.WriteByte('\n')

	_, err := io.WriteString(s.w, sb.String())
	if err != nil {
		return fmt.Errorf("summary: append row: %w", err)
	}
	s.headerWritten = true
	return nil
}

// FileSink is a [CSVSink] backed by a file opened in append mode.
type FileSink struct {
	*CSVSink

	f *os.File
}

// OpenFile opens or creates the summary log at path for appending.
func OpenFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("summary: open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("summary: stat file: %w", err)
	}

	return &FileSink{
		CSVSink: NewCSVSink(f, info.Size() > 0),
		f:       f,
	}, nil
}

// Close syncs and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.f.Sync()
	if err != nil {
		s.f.Close()
		return fmt.Errorf("summary: sync file: %w", err)
	}
	return s.f.Close()
}
