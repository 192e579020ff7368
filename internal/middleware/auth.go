package middleware

import (
	"strings"

	"staff-tracker/internal/apperror"
	"staff-tracker/internal/models"
	"staff-tracker/internal/session"
	"staff-tracker/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const authLocal = "auth"

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": message,
		"success": false,
		"status":  fiber.StatusUnauthorized,
		"code":    "unauthorized",
	})
}

// UseToken authenticates the bearer token. Tokens issued for an expired
// password are refused.
func UseToken(issuer *session.Issuer) fiber.Handler {
	return useToken(issuer, false)
}

// AllowExpiredPassword is UseToken for the change-password route.
func AllowExpiredPassword(issuer *session.Issuer) fiber.Handler {
	return useToken(issuer, true)
}

func useToken(issuer *session.Issuer, allowExpired bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "No token provided")
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c, "Invalid token format")
		}
		claims, err := issuer.Parse(parts[1])
		if err != nil {
			logger.SecurityLogger.Warn("Rejected token", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return unauthorized(c, "Invalid token")
		}
		if claims.PasswordExpired && !allowExpired {
			expired := apperror.PasswordExpired()
			return c.Status(expired.Kind.Status()).JSON(fiber.Map{
				"message": expired.Message,
				"success": false,
				"status":  expired.Kind.Status(),
				"code":    expired.Kind.String(),
			})
		}

		auth := claims.Auth()
		c.Locals(authLocal, auth)
		c.Locals("auth_account", auth.AccountID)
		return c.Next()
	}
}

// RequireAdmin must run after UseToken.
func RequireAdmin(c *fiber.Ctx) error {
	if auth, ok := Auth(c); ok && auth.IsAdmin() {
		return c.Next()
	}
	auth, _ := Auth(c)
	logger.SecurityLogger.Warn("Admin route refused", zap.Int("account_id", auth.AccountID), zap.String("path", c.Path()))
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"message": "Admin access required",
		"success": false,
		"status":  fiber.StatusForbidden,
		"code":    "forbidden",
	})
}

// Auth returns the account set by UseToken.
func Auth(c *fiber.Ctx) (models.AuthenticatedContext, bool) {
	auth, ok := c.Locals(authLocal).(models.AuthenticatedContext)
	return auth, ok
}
