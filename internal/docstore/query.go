package docstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Query narrows a collection listing. Filtering is equality on one top-level field.
type Query struct {
	WhereField string
	WhereValue any
	OrderBy    string
	Descending bool
	Limit      int
}

func (q Query) matches(doc Document) bool {
	if q.WhereField == "" {
		return true
	}
	value, ok := doc.Data[q.WhereField]
	if !ok {
		return false
	}
	return fmt.Sprint(value) == fmt.Sprint(q.WhereValue)
}

func (q Query) apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if q.matches(doc) {
			out = append(out, doc)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy == "" {
			return out[i].ID < out[j].ID
		}
		cmp := compareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
		if cmp == 0 {
			return out[i].ID < out[j].ID
		}
		if q.Descending {
			return cmp > 0
		}
		return cmp < 0
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// compareValues orders timestamps chronologically, numbers numerically and
// everything else by its string form. Missing values sort first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}

	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if at, err := time.Parse(time.RFC3339Nano, as); err == nil {
		if bt, err := time.Parse(time.RFC3339Nano, bs); err == nil {
			return at.Compare(bt)
		}
	}
	return strings.Compare(as, bs)
}
