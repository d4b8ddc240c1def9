package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// queryLimit reads ?limit=, zero when absent. Range checks are left to
// the stores.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit %q: %w", raw, ErrBadRequest)
	}
	return n, nil
}

// ownerID reads the {id} path segment.
func ownerID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", fmt.Errorf("missing owner id: %w", ErrBadRequest)
	}
	return id, nil
}
