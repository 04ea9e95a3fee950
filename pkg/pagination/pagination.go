package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows one page can hold.
	MaxLimit = 100
)

// Params holds cursor pagination inputs from controllers.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last item of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Page is one window of a newest-first listing.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor builds an opaque cursor string.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a cursor. An empty value yields nil.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return &Cursor{CreatedAt: t, ID: parts[1]}, nil
}

// Slice cuts one page out of items, which must already be sorted newest first.
// When the cursor item is gone the page resumes at the first older item.
func Slice[T any](items []T, params Params, key func(T) Cursor) (Page[T], error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return Page[T]{}, err
	}
	start := 0
	if cursor != nil {
		start = len(items)
		for idx, item := range items {
			k := key(item)
			if k.ID == cursor.ID && k.CreatedAt.Equal(cursor.CreatedAt) {
				start = idx + 1
				break
			}
			if k.CreatedAt.Before(cursor.CreatedAt) {
				start = idx
				break
			}
		}
	}

	limit := NormalizeLimit(params.Limit)
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	page := Page[T]{Items: append([]T{}, items[start:end]...)}
	if end < len(items) && end > start {
		page.NextCursor = EncodeCursor(key(items[end-1]))
	}
	return page, nil
}
