package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
)

// ParseQueryInt reads an integer query parameter bounded by [min, max],
// returning defaultVal when it is absent.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.ValidationField(key, "query parameter must be numeric")
	}
	if value < min || value > max {
		return 0, pkgerrors.ValidationField(key, fmt.Sprintf("query parameter must be between %d and %d", min, max))
	}
	return value, nil
}

// RequireQuery returns the trimmed value of a mandatory query parameter.
func RequireQuery(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", pkgerrors.ValidationField(key, "query parameter is required")
	}
	return raw, nil
}
