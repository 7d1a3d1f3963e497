// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package nutrient

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrMalformedMessage is wrapped by every error returned from [Decode].
var ErrMalformedMessage = errors.New("nutrient: malformed message")

const (
	fieldSep = ", "
	kvSep    = ": "
	dateKey  = "Date"
)

// Encode formats r as "Date: <date>, <Nutrient>: <value>, ...".
//
// Known nutrients come first in the order of [All] followed by any other
// names sorted alphabetically. Values are written with one decimal place.
func Encode(r Record) []byte {
	var sb strings.Builder
	sb.WriteString(dateKey)
	sb.WriteString(kvSep)
	sb.WriteString(r.Date)

	for _, n := range order(r.Values) {
		sb.WriteString(fieldSep)
		sb.WriteString(string(n))
		sb.WriteString(kvSep)
		sb.WriteString(strconv.FormatFloat(Round(r.Values[n]), 'f', Precision, 64))
	}
	return []byte(sb.String())
}

func order(values map[Nutrient]float64) []Nutrient {
	ns := make([]Nutrient, 0, len(values))
	for _, n := range All() {
		if _, ok := values[n]; ok {
			ns = append(ns, n)
		}
	}

	var unknown []Nutrient
	for n := range values {
		if !n.Known() {
			unknown = append(unknown, n)
		}
	}
	slices.Sort(unknown)

	return append(ns, unknown...)
}

// Decode parses a message produced by [Encode].
//
// Nutrient names are normalised with [Parse]. When a name repeats the last
// value wins. Any structural or numeric problem fails the whole message with
// an error wrapping [ErrMalformedMessage], as does a body that is not UTF-8.
func Decode(b []byte) (Record, error) {
	if !utf8.Valid(b) {
		return Record{}, fmt.Errorf("%w: not valid UTF-8", ErrMalformedMessage)
	}

	s := strings.TrimSpace(string(b))
	if s == "" {
		return Record{}, fmt.Errorf("%w: empty message", ErrMalformedMessage)
	}

	fields := strings.Split(s, fieldSep)

	key, date, ok := strings.Cut(fields[0], kvSep)
	if !ok {
		return Record{}, fmt.Errorf("%w: field %q is missing %q", ErrMalformedMessage, fields[0], kvSep)
	}
	if strings.TrimSpace(key) != dateKey {
		return Record{}, fmt.Errorf("%w: first field must be %s but got %q", ErrMalformedMessage, dateKey, key)
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return Record{}, fmt.Errorf("%w: empty date", ErrMalformedMessage)
	}

	r := Record{
		Date:   date,
		Values: make(map[Nutrient]float64, len(fields)-1),
	}
	for _, field := range fields[1:] {
		name, raw, ok := strings.Cut(field, kvSep)
		if !ok {
			return Record{}, fmt.Errorf("%w: field %q is missing %q", ErrMalformedMessage, field, kvSep)
		}

		n, _ := Parse(name)
		if n == "" {
			return Record{}, fmt.Errorf("%w: field %q has an empty name", ErrMalformedMessage, field)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %s: %w", ErrMalformedMessage, n, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, fmt.Errorf("%w: %s: value is not finite", ErrMalformedMessage, n)
		}

		r.Values[n] = v
	}
	return r, nil
}
