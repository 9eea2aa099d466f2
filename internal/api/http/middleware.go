package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/observability"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// RegisterMiddlewares attaches the global chain: request deadline, error
// rendering, panic recovery, then access logging. Error rendering sits
// outside recovery so a converted panic still gets a JSON body.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(deadlineMiddleware(timeout))
	}
	app.Use(errorMiddleware(logger, metrics))
	app.Use(recoverMiddleware(logger))
	app.Use(observability.RequestLogger(logger, metrics))
}

// deadlineMiddleware bounds each request's user context so repository calls
// inherit a deadline.
func deadlineMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func recoverMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Path()),
					zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
		}()
		return c.Next()
	}
}

// errorMiddleware renders every handler error as the standard error envelope
// and records it in metrics. Raw fiber errors (from route guards) are given
// a reason code before rendering.
func errorMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		domainErr := renderableError(err)
		if metrics != nil {
			metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
		}
		if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.Error(domainErr))
		}
		return c.Status(domainErr.HTTPStatus).JSON(errorBody(domainErr))
	}
}

func renderableError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &apperrors.DomainError{
			Code:       codeForStatus(fiberErr.Code),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
		}
	}
	return apperrors.ToDomainError(err)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case fiber.StatusForbidden:
		return apperrors.CodeForbidden
	case fiber.StatusNotFound:
		return apperrors.CodeNotFound
	default:
		if status < fiber.StatusInternalServerError {
			return apperrors.CodeValidationFailed
		}
		return apperrors.CodeInternalError
	}
}

func errorBody(err *apperrors.DomainError) fiber.Map {
	inner := fiber.Map{
		"code":    err.Code,
		"message": err.Message,
	}
	if len(err.Details) > 0 {
		inner["details"] = err.Details
	}
	return fiber.Map{"error": inner}
}
