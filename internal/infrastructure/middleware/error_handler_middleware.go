package middleware

import (
	stderrors "errors"
	"net/http"

	"streamgate/internal/core/domain"
	"streamgate/pkg/errors"
	"streamgate/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ToAppError maps domain failures onto the HTTP error taxonomy.
func ToAppError(err error) *errors.AppError {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}

	var pe *domain.ProvisionError
	if stderrors.As(err, &pe) {
		switch pe.Kind {
		case domain.ProvisionErrInvalidInput:
			return errors.WrapError(err, errors.ErrCodeInvalidInput, pe.Message, http.StatusBadRequest)
		case domain.ProvisionErrPrecondition:
			return errors.WrapError(err, errors.ErrCodePrecondition, pe.Message, http.StatusNotFound)
		case domain.ProvisionErrLocked:
			return errors.WrapError(err, errors.ErrCodeConflict, pe.Message, http.StatusConflict)
		case domain.ProvisionErrProvider:
			return errors.NewBadGatewayError(pe.Message, err)
		case domain.ProvisionErrIncomplete:
			appErr := errors.NewIncompleteResourceError(pe.Message)
			appErr.Cause = err
			return appErr
		default:
			return errors.WrapError(err, errors.ErrCodeInternal, "Internal server error", http.StatusInternalServerError)
		}
	}

	switch {
	case stderrors.Is(err, domain.ErrStreamNotFound):
		return errors.WrapError(err, errors.ErrCodeNotFound, "stream record not found", http.StatusNotFound)
	case stderrors.Is(err, domain.ErrInvalidInputMode), stderrors.Is(err, domain.ErrInvalidIdentity):
		return errors.WrapError(err, errors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
	}
	return errors.WrapError(err, errors.ErrCodeInternal, "Internal server error", http.StatusInternalServerError)
}

// ErrorHandlerMiddleware handles application errors and returns appropriate HTTP responses
func ErrorHandlerMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	cl := logger.NewContextLogger(base)
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := ToAppError(err)
		log := cl.For(c.Request.Context())

		fields := []interface{}{
			"code", appErr.Code,
			"status", appErr.HTTPStatus,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err.Error(),
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			log.Errorw("request failed", fields...)
		} else {
			log.Warnw("request rejected", fields...)
		}

		c.JSON(appErr.HTTPStatus, appErr.Response())
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					errors.NewInternalError("Internal server error").Response())
			}
		}()

		c.Next()
	}
}
