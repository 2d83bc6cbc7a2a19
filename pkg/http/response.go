package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	applogger "MarketPulse/pkg/logger"
)

// DataResponse writes data in the APIResponse envelope.
func DataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func BadRequestResponse(c echo.Context, errs ValidationErrors) error {
	return DataResponse(c, http.StatusBadRequest, errs)
}

// AppErrorResponse renders err as a one-element error list. Errors other than
// *AppError become an opaque 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("something went wrong").WithError(err)
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}

// ErrorHandler renders errors escaping handlers (unknown routes, echo
// binding failures, panics turned into errors) in the API envelope.
func ErrorHandler(log *applogger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := InternalError("something went wrong").WithError(err)
		var he *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &he):
			appErr = NewAppError(codeFor(he.Code), "", fmt.Sprint(he.Message), he.Code)
		}
		if appErr.Status >= http.StatusInternalServerError {
			log.Error("request failed",
				applogger.String("path", c.Path()),
				applogger.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(appErr.Status)
		} else {
			err = AppErrorResponse(c, appErr)
		}
		if err != nil {
			log.Warn("write error response", applogger.Error(err))
		}
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	case http.StatusBadRequest:
		return CodeBadRequest
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return fmt.Sprintf("ERR_HTTP_%d", status)
}
