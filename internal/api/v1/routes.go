package v1

import (
	"staff-tracker/internal/api/v1/handlers"
	"staff-tracker/internal/middleware"
	"staff-tracker/internal/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

func RegisterRoutes(app *fiber.App, h *handlers.Handler, hub *websocket.Hub) {
	api := app.Group("/api/v1")
	auth := middleware.UseToken(h.Sessions)

	// Auth
	api.Post("/register", h.Register)
	api.Post("/login", h.Login)
	api.Post("/admin/login", h.AdminLogin)
	api.Put("/account/password", middleware.AllowExpiredPassword(h.Sessions), h.ChangePassword)

	// Task
	taskRoutes := api.Group("/tasks", auth)
	taskRoutes.Post("/", h.CreateTask)
	taskRoutes.Get("/", h.ListTasks)
	taskRoutes.Get("/:id", h.GetTask)
	taskRoutes.Put("/:id/status", h.UpdateTaskStatus)
	taskRoutes.Delete("/:id", h.DeleteTask)
	taskRoutes.Post("/:id/uploads", h.UploadFile)
	taskRoutes.Get("/:id/uploads", h.ListUploads)

	api.Get("/categories", auth, h.ListCategories)

	// File Upload
	api.Get("/uploads/:id", auth, h.DownloadFile)
	api.Delete("/uploads/:id", auth, h.DeleteFile)
	api.Post("/upload/profile_picture", auth, h.UploadProfilePicture)

	// Admin
	admin := api.Group("/admin", auth, middleware.RequireAdmin)
	admin.Post("/tasks", h.AssignTask)
	admin.Post("/tasks/predefined/:id", h.AssignPredefinedTask)
	admin.Post("/tasks/:id/commit", h.CommitTask)
	admin.Get("/predefined", h.ListPredefined)
	admin.Post("/predefined", h.CreatePredefined)
	admin.Get("/repository", h.ListRepositoryFiles)
	admin.Get("/repository/:id", h.DownloadRepositoryFile)
	admin.Delete("/repository/:id", h.DeleteRepositoryFile)
	admin.Get("/users", h.ListUsers)
	admin.Delete("/users/:id", h.DeleteUser)
	admin.Put("/preferences", h.UpdatePreferences)

	// WebSocket feed for admins
	if hub != nil {
		app.Get("/ws/admin", auth, middleware.RequireAdmin, func(c *fiber.Ctx) error {
			if !fiberws.IsWebSocketUpgrade(c) {
				return fiber.ErrUpgradeRequired
			}
			return c.Next()
		}, hub.Handler())
	}
}
