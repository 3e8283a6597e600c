package middleware

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// NewErrorHandler returns an echo.HTTPErrorHandler that renders errors as JSON.
// Unclassified errors are logged and hidden behind a generic message.
func NewErrorHandler(log *zap.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		body := ErrorResponse{Message: apperrors.Message(err)}

		var (
			appErr  *apperrors.Error
			httpErr *echo.HTTPError
			valErrs validator.ValidationErrors
		)
		switch {
		case errors.As(err, &appErr):
			code = apperrors.HTTPStatus(appErr)
			if code == http.StatusInternalServerError {
				logError(log, c, err)
			}
		case errors.As(err, &valErrs):
			code = http.StatusBadRequest
			body.Message = "validation failed"
			body.Errors = make(map[string]string, len(valErrs))
			for _, fe := range valErrs {
				body.Errors[fe.Field()] = fe.Translate(translator)
			}
		case errors.As(err, &httpErr):
			code = httpErr.Code
			if msg, ok := httpErr.Message.(string); ok && msg != "" {
				body.Message = msg
			} else {
				body.Message = http.StatusText(code)
			}
			if code >= http.StatusInternalServerError {
				logError(log, c, err)
			}
		default:
			logError(log, c, err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Error("write error response", zap.Error(err))
		}
	}
}

func logError(log *zap.Logger, c echo.Context, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
	}
	if actor, ok := ActorFrom(c); ok {
		fields = append(fields, zap.String("user_id", actor.UserID.Hex()))
	}
	log.Error("request failed", fields...)
}
