// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package aggregate

import (
	"strings"
	"testing"

	"github.com/z5labs/nutrition/nutrient"

	"github.com/stretchr/testify/require"
)

func TestReadEntries(t *testing.T) {
	t.Run("will map food log columns to nutrients", func(t *testing.T) {
		t.Run("if the header uses unit suffixes", func(t *testing.T) {
			log := "\ufeffDate,Meal,Calories,Protein (g),Fat (g),Carbohydrates (g),Sodium (mg),Fiber\n" +
				"2024-06-10,Breakfast,500,30,10,60,400,5\n" +
				"2024-06-10,Lunch,700,40,20,,800,\n"

			entries, err := ReadEntries(strings.NewReader(log))
			require.NoError(t, err)
			require.Len(t, entries, 2)
			require.Equal(t, Entry{
				Date: "2024-06-10",
				Values: map[nutrient.Nutrient]string{
					nutrient.Protein:       "40",
					nutrient.Fat:           "20",
					nutrient.Carbohydrates: "",
					nutrient.Sodium:        "800",
					nutrient.Fiber:         "",
				},
			}, entries[1])
		})
	})

	t.Run("will skip rows", func(t *testing.T) {
		t.Run("if the date is empty", func(t *testing.T) {
			log := "Date,Protein (g)\n,30\n2024-06-10,40\n"

			entries, err := ReadEntries(strings.NewReader(log))
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, "40", entries[0].Values[nutrient.Protein])
		})
	})

	t.Run("will treat short rows as missing values", func(t *testing.T) {
		log := "Date,Protein (g),Fat (g)\n2024-06-10,40\n"

		entries, err := ReadEntries(strings.NewReader(log))
		require.NoError(t, err)
		require.Equal(t, "", entries[0].Values[nutrient.Fat])
	})

	t.Run("will return ErrNoDateColumn", func(t *testing.T) {
		t.Run("if the header has no Date column", func(t *testing.T) {
			_, err := ReadEntries(strings.NewReader("Day,Protein (g)\nmonday,40\n"))
			require.ErrorIs(t, err, ErrNoDateColumn)
		})

		t.Run("if the log is empty", func(t *testing.T) {
			_, err := ReadEntries(strings.NewReader(""))
			require.ErrorIs(t, err, ErrNoDateColumn)
		})
	})

	t.Run("will aggregate a food log", func(t *testing.T) {
		log := "Date,Protein (g),Fat (g)\n" +
			"2024-06-11,50,30\n" +
			"2024-06-10,60,20\n" +
			"2024-06-10,70,oops\n"

		entries, err := ReadEntries(strings.NewReader(log))
		require.NoError(t, err)

		records := Aggregate(entries)
		require.Len(t, records, 2)
		require.Equal(t, "Date: 2024-06-10, Protein: 130.0, Fat: 20.0", string(nutrient.Encode(records[0])))
		require.Equal(t, "Date: 2024-06-11, Protein: 50.0, Fat: 30.0", string(nutrient.Encode(records[1])))
	})
}
