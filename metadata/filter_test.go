package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatches(t *testing.T) {
	doc := Document{
		"category": String("tech"),
		"year":     Int(2024),
		"score":    Float(0.75),
		"active":   Bool(true),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"eq string match", Filter{"category", OpEqual, String("tech")}, true},
		{"eq string mismatch", Filter{"category", OpEqual, String("news")}, false},
		{"ne string", Filter{"category", OpNotEqual, String("news")}, true},
		{"eq int", Filter{"year", OpEqual, Int(2024)}, true},
		{"eq int cross-kind float", Filter{"year", OpEqual, Float(2024)}, true},
		{"gt int", Filter{"year", OpGreater, Int(2023)}, true},
		{"gt int boundary", Filter{"year", OpGreater, Int(2024)}, false},
		{"gte int boundary", Filter{"year", OpGreaterEqual, Int(2024)}, true},
		{"lt float", Filter{"score", OpLess, Float(1)}, true},
		{"lte float boundary", Filter{"score", OpLessEqual, Float(0.75)}, true},
		{"contains substring", Filter{"category", OpContains, String("ec")}, true},
		{"contains miss", Filter{"category", OpContains, String("xyz")}, false},
		{"bool eq", Filter{"active", OpEqual, Bool(true)}, true},
		{"missing key never matches eq", Filter{"missing", OpEqual, String("x")}, false},
		{"missing key matches ne", Filter{"missing", OpNotEqual, String("x")}, true},
		{"incomparable kinds", Filter{"category", OpGreater, Int(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(doc))
		})
	}
}

func TestFilterSetMatches(t *testing.T) {
	doc := Document{"kind": String("a"), "n": Int(5)}

	t.Run("nil set matches all", func(t *testing.T) {
		var fs *FilterSet
		assert.True(t, fs.Matches(1, doc))
		assert.True(t, fs.Matches(1, nil))
	})

	t.Run("conjunction", func(t *testing.T) {
		fs := NewFilterSet(
			Filter{"kind", OpEqual, String("a")},
			Filter{"n", OpGreater, Int(3)},
		)
		assert.True(t, fs.Matches(1, doc))

		fs = NewFilterSet(
			Filter{"kind", OpEqual, String("a")},
			Filter{"n", OpGreater, Int(10)},
		)
		assert.False(t, fs.Matches(1, doc))
	})

	t.Run("id restriction", func(t *testing.T) {
		fs := HasIDSet(1, 3)
		assert.True(t, fs.Matches(1, nil))
		assert.True(t, fs.Matches(3, doc))
		assert.False(t, fs.Matches(2, doc))
	})

	t.Run("id restriction combined with payload", func(t *testing.T) {
		fs := HasIDSet(1, 2)
		fs.Must = []Filter{{"kind", OpEqual, String("a")}}
		assert.True(t, fs.Matches(1, doc))
		assert.False(t, fs.Matches(1, Document{"kind": String("b")}))
		assert.False(t, fs.Matches(3, doc))
	})
}
