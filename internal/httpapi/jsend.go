package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// apiResponse is the jsend-style wrapper every endpoint answers with:
// "success" for 2xx, "fail" for request problems, "error" for server faults.
type apiResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, apiResponse{Status: statusSuccess, Data: data})
}

func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, apiResponse{Status: statusFail, Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, apiResponse{
		Status:  statusError,
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}
