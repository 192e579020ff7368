package handlers

import (
	"time"

	"staff-tracker/internal/apperror"
	"staff-tracker/internal/models"
	"staff-tracker/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type userView struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Department     string    `json:"department"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

func newUserView(u *models.User) userView {
	return userView{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Department:     u.Department,
		ProfilePicture: u.ProfilePicture.String,
		CreatedAt:      u.CreatedAt,
	}
}

// ListUsers is admin only; the route is guarded by RequireAdmin.
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.Users.List(c.UserContext())
	if err != nil {
		return respondError(c, "Error fetching users", apperror.Internal("listing users", err))
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	return respond(c, fiber.StatusOK, "Users fetched successfully", views)
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid user id", err)
	}
	if err := h.Tasks.DeleteUser(c.UserContext(), authOf(c), id); err != nil {
		return respondError(c, "Error deleting user", err)
	}
	return respond(c, fiber.StatusOK, "User deleted successfully", nil)
}

type preferencesRequest struct {
	ReceiveTaskEmails *bool `json:"receive_task_emails" validate:"required"`
}

func (h *Handler) UpdatePreferences(c *fiber.Ctx) error {
	var req preferencesRequest
	if ok, err := parseBody(c, "update preferences", &req); !ok {
		return err
	}

	a := authOf(c)
	prefs := models.AdminPreferences{ReceiveTaskEmails: *req.ReceiveTaskEmails}
	if err := h.Admins.UpdatePreferences(c.UserContext(), a.AccountID, prefs); err != nil {
		return respondError(c, "Error updating preferences", apperror.Internal("updating preferences", err))
	}
	logger.AuditLogger.Info("Admin preferences updated", zap.Int("admin_id", a.AccountID), zap.Bool("receive_task_emails", prefs.ReceiveTaskEmails))
	return respond(c, fiber.StatusOK, "Preferences updated successfully", prefs)
}
