package handlers

import (
	"time"

	"staff-tracker/internal/models"
	"staff-tracker/internal/service/tasks"

	"github.com/gofiber/fiber/v2"
)

type createTaskRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date" validate:"required"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	var req createTaskRequest
	if ok, err := parseBody(c, "create task", &req); !ok {
		return err
	}

	task, err := h.Tasks.CreateTask(c.UserContext(), authOf(c), tasks.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    models.Priority(req.Priority),
	})
	if err != nil {
		return respondError(c, "Error creating task", err)
	}
	return respond(c, fiber.StatusCreated, "Task created successfully", task)
}

// ListTasks accepts ?status= (including overdue) and, for admins, ?user_id=.
func (h *Handler) ListTasks(c *fiber.Ctx) error {
	filter := tasks.ListFilter{
		Status: models.TaskStatus(c.Query("status")),
		UserID: c.QueryInt("user_id"),
	}
	list, err := h.Tasks.ListTasks(c.UserContext(), authOf(c), filter)
	if err != nil {
		return respondError(c, "Error fetching tasks", err)
	}
	return respond(c, fiber.StatusOK, "Tasks fetched successfully", list)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid task id", err)
	}
	task, err := h.Tasks.GetTask(c.UserContext(), authOf(c), id)
	if err != nil {
		return respondError(c, "Error fetching task", err)
	}
	return respond(c, fiber.StatusOK, "Task found", task)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed"`
}

func (h *Handler) UpdateTaskStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid task id", err)
	}
	var req updateStatusRequest
	if ok, err := parseBody(c, "update task status", &req); !ok {
		return err
	}

	task, err := h.Tasks.UpdateStatus(c.UserContext(), authOf(c), id, models.TaskStatus(req.Status))
	if err != nil {
		return respondError(c, "Error updating task status", err)
	}
	return respond(c, fiber.StatusOK, "Task status updated successfully", task)
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid task id", err)
	}
	if err := h.Tasks.DeleteTask(c.UserContext(), authOf(c), id); err != nil {
		return respondError(c, "Error deleting task", err)
	}
	return respond(c, fiber.StatusOK, "Task deleted successfully", nil)
}

func (h *Handler) ListCategories(c *fiber.Ctx) error {
	list, err := h.Tasks.ListCategories(c.UserContext())
	if err != nil {
		return respondError(c, "Error fetching categories", err)
	}
	return respond(c, fiber.StatusOK, "Categories fetched successfully", list)
}

type assignTaskRequest struct {
	UserID       int        `json:"user_id" validate:"required,gt=0"`
	Category     string     `json:"category"`
	Title        string     `json:"title" validate:"required"`
	DueDate      *time.Time `json:"due_date" validate:"required"`
	Priority     string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	Instructions string     `json:"instructions"`
}

func (h *Handler) AssignTask(c *fiber.Ctx) error {
	var req assignTaskRequest
	if ok, err := parseBody(c, "assign task", &req); !ok {
		return err
	}

	task, err := h.Tasks.AssignTask(c.UserContext(), authOf(c), tasks.AssignTaskInput{
		UserID:       req.UserID,
		Category:     req.Category,
		Title:        req.Title,
		DueDate:      req.DueDate,
		Priority:     models.Priority(req.Priority),
		Instructions: req.Instructions,
	})
	if err != nil {
		return respondError(c, "Error assigning task", err)
	}
	return respond(c, fiber.StatusCreated, "Task assigned successfully", task)
}

type assignPredefinedRequest struct {
	UserID  int        `json:"user_id" validate:"required,gt=0"`
	DueDate *time.Time `json:"due_date"`
}

func (h *Handler) AssignPredefinedTask(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid predefined task id", err)
	}
	var req assignPredefinedRequest
	if ok, err := parseBody(c, "assign predefined task", &req); !ok {
		return err
	}

	task, err := h.Tasks.AssignPredefinedTask(c.UserContext(), authOf(c), req.UserID, id, req.DueDate)
	if err != nil {
		return respondError(c, "Error assigning predefined task", err)
	}
	return respond(c, fiber.StatusCreated, "Task assigned successfully", task)
}

func (h *Handler) ListPredefined(c *fiber.Ctx) error {
	list, err := h.Tasks.ListPredefined(c.UserContext(), authOf(c))
	if err != nil {
		return respondError(c, "Error fetching predefined tasks", err)
	}
	return respond(c, fiber.StatusOK, "Predefined tasks fetched successfully", list)
}

type predefinedRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
	DefaultDays int    `json:"default_days" validate:"gte=0"`
}

func (h *Handler) CreatePredefined(c *fiber.Ctx) error {
	var req predefinedRequest
	if ok, err := parseBody(c, "create predefined task", &req); !ok {
		return err
	}

	p, err := h.Tasks.CreatePredefined(c.UserContext(), authOf(c), models.PredefinedTask{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    models.Priority(req.Priority),
		DefaultDays: req.DefaultDays,
	})
	if err != nil {
		return respondError(c, "Error creating predefined task", err)
	}
	return respond(c, fiber.StatusCreated, "Predefined task created successfully", p)
}
