package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
)

// ParseQueryInt reads an integer query parameter bounded by [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "must be numeric")
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]any{
			key:   "out of range",
			"min": min,
			"max": max,
		})
	}
	return value, nil
}

// ParseQueryBool reads a boolean flag. "1", "true" and "yes" are true; absent is defaultVal.
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	switch raw {
	case "":
		return defaultVal, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, queryError(key, "must be a boolean")
}

func queryError(key, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{key: message})
}
