package handlers

import (
	"time"

	"staff-tracker/internal/models"
	"staff-tracker/internal/service/auth"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name" validate:"required"`
	Department string `json:"department"`
	Password   string `json:"password" validate:"required,min=8"`
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if ok, err := parseBody(c, "register", &req); !ok {
		return err
	}

	user, err := h.Auth.Register(c.UserContext(), auth.RegisterRequest{
		Email:      req.Email,
		Name:       req.Name,
		Department: req.Department,
		Password:   req.Password,
	})
	if err != nil {
		return respondError(c, "Error registering user", err)
	}
	return respond(c, fiber.StatusCreated, "User created successfully", fiber.Map{"id": user.ID})
}

type loginRequest struct {
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IndexCode string `json:"index_code"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	return h.login(c, models.RoleUser)
}

func (h *Handler) AdminLogin(c *fiber.Ctx) error {
	return h.login(c, models.RoleAdmin)
}

func (h *Handler) login(c *fiber.Ctx, role models.Role) error {
	var req loginRequest
	if ok, err := parseBody(c, "login", &req); !ok {
		return err
	}

	result, err := h.Auth.Login(c.UserContext(), auth.LoginRequest{
		Role:      role,
		Email:     req.Email,
		Password:  req.Password,
		IndexCode: req.IndexCode,
	})
	if err != nil {
		return respondError(c, "Error during login", err)
	}

	account := result.Account
	token, expiresAt, err := h.Sessions.Issue(models.AuthenticatedContext{
		AccountID: account.Credentials().ID,
		Role:      account.Role(),
	}, result.PasswordExpired)
	if err != nil {
		return respondError(c, "Error generating token", err)
	}

	message := "Login success"
	if result.PasswordExpired {
		message = "Password expired, please change your password"
	}
	return respond(c, fiber.StatusOK, message, fiber.Map{
		"token":            token,
		"expires_at":       expiresAt.Format(time.RFC3339),
		"role":             account.Role(),
		"name":             account.DisplayName(),
		"password_expired": result.PasswordExpired,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if ok, err := parseBody(c, "change password", &req); !ok {
		return err
	}

	a := authOf(c)
	if err := h.Auth.ChangePassword(c.UserContext(), a, req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(c, "Error changing password", err)
	}

	token, expiresAt, err := h.Sessions.Issue(a, false)
	if err != nil {
		return respondError(c, "Error generating token", err)
	}
	return respond(c, fiber.StatusOK, "Password changed successfully", fiber.Map{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}
