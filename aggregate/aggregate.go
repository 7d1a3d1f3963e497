// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package aggregate sums per-meal food log entries into daily nutrient records.
package aggregate

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/nutrition/nutrient"
)

// Entry is a single food log row. Values holds the raw text of every
// nutrient column present in the log, even if the cell is empty.
type Entry struct {
	Date   string
	Values map[nutrient.Nutrient]string
}

// Aggregate returns one record per distinct date with each nutrient summed
// across that date's entries.
//
// A value which is empty or not a finite number is skipped for that field
// only. A nutrient appears in a record whenever any entry for the date has
// a column for it, so a column with no valid values sums to zero.
// Records are ordered by date. Dates written with a comma, such as
// "June 10, 2024", are rewritten so they survive the message encoding.
func Aggregate(entries []Entry) []nutrient.Record {
	byDate := make(map[string]map[nutrient.Nutrient]float64)
	for _, e := range entries {
		date := normalizeDate(e.Date)
		if date == "" {
			continue
		}

		totals, ok := byDate[date]
		if !ok {
			totals = make(map[nutrient.Nutrient]float64, len(e.Values))
			byDate[date] = totals
		}

		for n, raw := range e.Values {
			totals[n] += parseValue(raw)
		}
	}

	records := make([]nutrient.Record, 0, len(byDate))
	for date, totals := range byDate {
		records = append(records, nutrient.Record{
			Date:   date,
			Values: totals,
		})
	}
	sortByDate(records)
	return records
}

var commaDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
}

// normalizeDate trims date and removes any ", " since that is the field
// separator of an encoded message. Recognised long form dates become
// YYYY-MM-DD.
func normalizeDate(date string) string {
	date = strings.TrimSpace(date)
	if !strings.Contains(date, ", ") {
		return date
	}
	for _, layout := range commaDateLayouts {
		t, err := time.Parse(layout, date)
		if err == nil {
			return t.Format(time.DateOnly)
		}
	}
	for strings.Contains(date, ", ") {
		date = strings.ReplaceAll(date, ", ", " ")
	}
	return date
}

func parseValue(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

var dateLayouts = []string{
	time.DateOnly,
	"1/2/2006",
	"01/02/2006",
	"2006/01/02",
}

// sortByDate orders records chronologically when every date parses with
// the same layout and lexically otherwise.
func sortByDate(records []nutrient.Record) {
	for _, layout := range dateLayouts {
		times := make(map[string]time.Time, len(records))
		for _, r := range records {
			t, err := time.Parse(layout, r.Date)
			if err != nil {
				break
			}
			times[r.Date] = t
		}
		if len(times) != len(records) {
			continue
		}

		slices.SortFunc(records, func(a, b nutrient.Record) int {
			return times[a.Date].Compare(times[b.Date])
		})
		return
	}

	slices.SortFunc(records, func(a, b nutrient.Record) int {
		return cmp.Compare(a.Date, b.Date)
	})
}
