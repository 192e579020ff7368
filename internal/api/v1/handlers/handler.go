package handlers

import (
	"errors"
	"strconv"

	"staff-tracker/internal/apperror"
	"staff-tracker/internal/config"
	"staff-tracker/internal/middleware"
	"staff-tracker/internal/models"
	"staff-tracker/internal/repository"
	"staff-tracker/internal/service/auth"
	"staff-tracker/internal/service/files"
	"staff-tracker/internal/service/tasks"
	"staff-tracker/internal/session"
	"staff-tracker/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler serves the v1 API on top of the services.
type Handler struct {
	Auth     *auth.Service
	Tasks    *tasks.Service
	Files    *files.Service
	Users    *repository.UserRepository
	Admins   *repository.AdminRepository
	Sessions *session.Issuer
	// CommitDedup is the default for repository commits without ?dedup.
	CommitDedup bool
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	body := fiber.Map{
		"message": message,
		"success": true,
		"status":  status,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

// respondError maps err to its status. Internal errors are logged with
// action and answered with a generic message.
func respondError(c *fiber.Ctx, action string, err error) error {
	kind := apperror.KindOf(err)
	status := kind.Status()
	if kind == apperror.KindInternal {
		logger.ErrorLogger.Error(action, zap.Error(err), zap.String("path", c.Path()))
	}

	body := fiber.Map{
		"message": apperror.PublicMessage(err),
		"success": false,
		"status":  status,
		"code":    kind.String(),
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		if appErr.RetryAfterMinutes > 0 {
			body["retry_after_minutes"] = appErr.RetryAfterMinutes
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(appErr.RetryAfterMinutes*60))
		}
		if appErr.RemainingAttempts != nil {
			body["remaining_attempts"] = *appErr.RemainingAttempts
		}
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, action string, err error) error {
	logger.ErrorLogger.Warn("Bad request in "+action, zap.Error(err))
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Bad request",
		"success": false,
		"status":  fiber.StatusBadRequest,
		"code":    apperror.KindValidation.String(),
	})
}

// parseBody decodes and validates the request body into req. It writes the
// 400 response itself and reports whether the handler may continue.
func parseBody(c *fiber.Ctx, action string, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, badRequest(c, action, err)
	}
	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error in "+action, zap.Error(err))
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  fiber.StatusBadRequest,
			"code":    apperror.KindValidation.String(),
		})
	}
	return true, nil
}

func paramID(c *fiber.Ctx, name string) (int, error) {
	id, err := strconv.Atoi(c.Params(name))
	if err != nil || id <= 0 {
		return 0, apperror.Validation("Invalid " + name)
	}
	return id, nil
}

func authOf(c *fiber.Ctx) models.AuthenticatedContext {
	a, _ := middleware.Auth(c)
	return a
}
