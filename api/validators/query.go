package validators

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func paramError(field, msg string, cause error, extra map[string]any) *pkgerrors.Error {
	details := map[string]any{"field": field}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, msg).WithDetails(details)
}

// ParseQueryInt reads an optional integer within [lo, hi].
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, paramError(key, "query parameter must be numeric", err, nil)
	}
	if value < lo || value > hi {
		return 0, paramError(key, "query parameter out of range", nil, map[string]any{"min": lo, "max": hi})
	}
	return value, nil
}

// ParseQueryEnum reads an optional enum value using the type's parser.
func ParseQueryEnum[T any](r *http.Request, key string, fallback T, parse func(string) (T, error)) (T, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return fallback, nil
	}
	value, err := parse(raw)
	if err != nil {
		var zero T
		return zero, paramError(key, "query parameter is not an allowed value", err, nil)
	}
	return value, nil
}

// ParsePage reads the page/limit pair used by offset listings.
func ParsePage(r *http.Request) (pagination.Page, error) {
	number, err := ParseQueryInt(r, "page", 1, 1, math.MaxInt32)
	if err != nil {
		return pagination.Page{}, err
	}
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Page{}, err
	}
	return pagination.Page{Number: number, Limit: limit}, nil
}

func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, paramError(name, "path parameter is required", nil, nil)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, paramError(name, "invalid identifier", err, nil)
	}
	return id, nil
}
