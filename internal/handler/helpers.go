package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/getscaley/scaley/internal/service"
)

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure. Malformed, empty and oversized
// bodies are reported as validation errors.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return service.Validationf("Request body too large")
		case errors.Is(err, io.EOF):
			return service.Validationf("Request body is required")
		default:
			return service.NewError(service.KindValidation, "Invalid request body", err)
		}
	}
	return nil
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing. A present but non-integer value is a validation
// error.
func queryInt(r *http.Request, key string, defaultVal int) (int, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, service.Validationf("%s must be an integer", key)
	}
	return n, nil
}

// queryString extracts a string query parameter.
func queryString(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// pageParams reads page and pageSize with the list defaults applied.
func pageParams(r *http.Request) (page, pageSize int, err error) {
	if page, err = queryInt(r, "page", service.DefaultPage); err != nil {
		return 0, 0, err
	}
	if pageSize, err = queryInt(r, "pageSize", service.DefaultPageSize); err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}
