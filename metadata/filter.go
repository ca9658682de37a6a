package metadata

// Operator defines a comparison operator for a filter condition.
type Operator string

const (
	// OpEqual represents the equality operator.
	OpEqual Operator = "eq"
	// OpNotEqual represents the inequality operator.
	OpNotEqual Operator = "ne"
	// OpGreater represents the greater than operator.
	OpGreater Operator = "gt"
	// OpGreaterEqual represents the greater than or equal operator.
	OpGreaterEqual Operator = "gte"
	// OpLess represents the less than operator.
	OpLess Operator = "lt"
	// OpLessEqual represents the less than or equal operator.
	OpLessEqual Operator = "lte"
	// OpContains represents the contains substring operator.
	OpContains Operator = "contains"
)

// Filter represents a single payload filter condition.
type Filter struct {
	Key      string
	Operator Operator
	Value    Value
}

// Matches checks if a document satisfies the condition.
// A missing key matches nothing except OpNotEqual.
func (f *Filter) Matches(doc Document) bool {
	v, ok := doc[f.Key]
	if !ok {
		return f.Operator == OpNotEqual
	}

	switch f.Operator {
	case OpEqual:
		return v.Equal(f.Value)
	case OpNotEqual:
		return !v.Equal(f.Value)
	case OpGreater:
		c, ok := v.Compare(f.Value)
		return ok && c > 0
	case OpGreaterEqual:
		c, ok := v.Compare(f.Value)
		return ok && c >= 0
	case OpLess:
		c, ok := v.Compare(f.Value)
		return ok && c < 0
	case OpLessEqual:
		c, ok := v.Compare(f.Value)
		return ok && c <= 0
	case OpContains:
		return containsSubstring(v, f.Value)
	default:
		return false
	}
}

// FilterSet is a conjunction of conditions: every payload condition must
// match, and when HasID is non-empty the point id must be listed in it.
type FilterSet struct {
	// Must holds payload conditions combined with AND logic.
	Must []Filter

	// HasID restricts matching to the listed point ids. Empty means no
	// id restriction. Ids are raw uint64 to keep this package free of
	// collection-level types.
	HasID []uint64
}

// NewFilterSet creates a filter set from payload conditions.
func NewFilterSet(filters ...Filter) *FilterSet {
	return &FilterSet{Must: filters}
}

// HasIDSet creates a filter set matching exactly the listed point ids.
func HasIDSet(ids ...uint64) *FilterSet {
	return &FilterSet{HasID: ids}
}

// Matches checks if a point with the given id and payload satisfies the set.
// A nil set matches everything.
func (fs *FilterSet) Matches(id uint64, doc Document) bool {
	if fs == nil {
		return true
	}
	if len(fs.HasID) > 0 {
		found := false
		for _, want := range fs.HasID {
			if want == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i := range fs.Must {
		if !fs.Must[i].Matches(doc) {
			return false
		}
	}
	return true
}
