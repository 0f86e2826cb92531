package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/logging"
)

type ErrorResponse struct {
	Error string `json:"error" example:"alert 42 not found"`
	Code  string `json:"code,omitempty" example:"NOT_FOUND"`
}

type SuccessResponse struct {
	Message string `json:"message" example:"Zones reloaded"`
}

// respondError maps engine errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engineerrors.ErrNotFound):
		status = http.StatusNotFound
	case engineerrors.GetCategory(err) == engineerrors.ErrCategoryValidation:
		status = http.StatusBadRequest
	case errors.Is(err, engineerrors.ErrBackpressure), errors.Is(err, engineerrors.ErrCameraLimit):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		logging.Error(c).Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: engineerrors.GetCode(err)})
}

func badRequest(c *gin.Context, format string, args ...interface{}) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf(format, args...), Code: engineerrors.CodeInvalidFilter})
}

// queryTime parses an optional RFC3339 query parameter.
func queryTime(c *gin.Context, name string) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339: %w", name, err)
	}
	return t.UTC(), nil
}

// queryRange reads start and end, defaulting to the last defaultSpan.
func queryRange(c *gin.Context, defaultSpan time.Duration) (time.Time, time.Time, error) {
	start, err := queryTime(c, "start")
	if err != nil {
		return start, start, err
	}
	end, err := queryTime(c, "end")
	if err != nil {
		return start, end, err
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-defaultSpan)
	}
	if !start.Before(end) {
		return start, end, fmt.Errorf("start must be before end")
	}
	return start, end, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
