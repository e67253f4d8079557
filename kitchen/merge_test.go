package kitchen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Merge(t *testing.T) {
	tests := []struct {
		name            string
		initial         []Extraction
		apply           Extraction
		wantPantry      []PantryItem
		wantConstraints []string
		wantParty       string
	}{
		{
			name: "new items are appended with original casing",
			apply: Extraction{Items: []ItemUpdate{
				{Name: "Uova", Quantity: "2"},
				{Name: " Farina ", Quantity: "500g", Expiry: "lontana"},
			}},
			wantPantry: []PantryItem{
				{Name: "Uova", Quantity: "2"},
				{Name: "Farina", Quantity: "500g", Expiry: "lontana"},
			},
		},
		{
			name:    "re-mentioned item with expiry only keeps quantity",
			initial: []Extraction{{Items: []ItemUpdate{{Name: "Milk", Quantity: "1L", Expiry: "far"}}}},
			apply:   Extraction{Items: []ItemUpdate{{Name: "milk", Expiry: "tomorrow"}}},
			wantPantry: []PantryItem{
				{Name: "Milk", Quantity: "1L", Expiry: "tomorrow"},
			},
		},
		{
			name:    "placeholder values do not overwrite",
			initial: []Extraction{{Items: []ItemUpdate{{Name: "rice", Quantity: "1kg", Expiry: "far"}}}},
			apply:   Extraction{Items: []ItemUpdate{{Name: "RICE", Quantity: "null", Expiry: "Unknown"}}},
			wantPantry: []PantryItem{
				{Name: "rice", Quantity: "1kg", Expiry: "far"},
			},
		},
		{
			name:  "placeholders are dropped on new items",
			apply: Extraction{Items: []ItemUpdate{{Name: "salt", Quantity: "n/a", Expiry: "null"}}},
			wantPantry: []PantryItem{
				{Name: "salt"},
			},
		},
		{
			name:  "blank names are ignored",
			apply: Extraction{Items: []ItemUpdate{{Name: "  ", Quantity: "3"}}},
		},
		{
			name:            "constraints dedupe case-insensitively and keep first casing",
			initial:         []Extraction{{Constraints: []string{"No Sugar"}}},
			apply:           Extraction{Constraints: []string{"no sugar", "Vegetarian", " ", "vegetarian"}},
			wantConstraints: []string{"No Sugar", "Vegetarian"},
		},
		{
			name:      "party size is overwritten when present",
			initial:   []Extraction{{People: "2"}},
			apply:     Extraction{People: "4"},
			wantParty: "4",
		},
		{
			name:      "party size is untouched when absent",
			initial:   []Extraction{{People: "2"}},
			apply:     Extraction{People: "null"},
			wantParty: "2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession()
			for _, rec := range tt.initial {
				s.Merge(rec)
			}

			s.Merge(tt.apply)

			assert.Equal(t, tt.wantPantry, s.Pantry())
			assert.Equal(t, tt.wantConstraints, s.Constraints())
			assert.Equal(t, tt.wantParty, s.PartySize())
		})
	}
}

func TestSession_MergeIsIdempotent(t *testing.T) {
	rec := Extraction{
		Items: []ItemUpdate{
			{Name: "Eggs", Quantity: "6", Expiry: "soon"},
			{Name: "flour", Quantity: "1kg"},
			{Name: "EGGS", Expiry: "today"},
		},
		Constraints: []string{"gluten free", "Gluten Free"},
		People:      "3",
	}

	once := NewSession()
	once.Merge(rec)

	twice := NewSession()
	twice.Merge(rec)
	twice.Merge(rec)

	assert.Equal(t, once.Pantry(), twice.Pantry())
	assert.Equal(t, once.Constraints(), twice.Constraints())
	assert.Equal(t, once.PartySize(), twice.PartySize())
}

func TestSession_MergeKeepsNamesUnique(t *testing.T) {
	s := NewSession()
	for _, name := range []string{"Tomato", "tomato", " TOMATO ", "basil", "Basil", "tomato"} {
		s.Merge(Extraction{Items: []ItemUpdate{{Name: name, Quantity: "1"}}})
	}

	seen := map[string]bool{}
	for _, it := range s.Pantry() {
		key := NormalizeName(it.Name)
		require.False(t, seen[key], "duplicate pantry entry %q", key)
		seen[key] = true
	}
	assert.Len(t, s.Pantry(), 2)
}

func TestExtraction_IsEmpty(t *testing.T) {
	assert.True(t, Extraction{}.IsEmpty())
	assert.True(t, Extraction{People: "null"}.IsEmpty())
	assert.False(t, Extraction{People: "2"}.IsEmpty())
	assert.False(t, Extraction{Constraints: []string{"vegan"}}.IsEmpty())
}
