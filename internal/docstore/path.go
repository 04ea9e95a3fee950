package docstore

import (
	"fmt"
	"strings"
)

const (
	rootSegment   = "tenant"
	usersSegment  = "users"
	publicSegment = "public"
)

// UserDoc returns tenant/{scope}/users/{identity}/{collection}/{docID}.
func UserDoc(scope, identity, collection, docID string) string {
	return join(rootSegment, scope, usersSegment, identity, collection, docID)
}

// UserCollection returns tenant/{scope}/users/{identity}/{collection}.
func UserCollection(scope, identity, collection string) string {
	return join(rootSegment, scope, usersSegment, identity, collection)
}

// PublicCollection returns tenant/{scope}/public/{collection}.
func PublicCollection(scope, collection string) string {
	return join(rootSegment, scope, publicSegment, collection)
}

// PublicDoc returns tenant/{scope}/public/{collection}/{docID}.
func PublicDoc(scope, collection, docID string) string {
	return join(rootSegment, scope, publicSegment, collection, docID)
}

// Child appends a document id to a collection path.
func Child(collection, docID string) string {
	return join(collection, docID)
}

// Split returns the parent collection and the last segment of path.
func Split(path string) (parent, id string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// ValidatePath rejects empty paths and paths with empty segments.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, segment := range strings.Split(path, "/") {
		if strings.TrimSpace(segment) == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return nil
}

func join(segments ...string) string {
	return strings.Join(segments, "/")
}
