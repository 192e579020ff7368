// Package tasks manages the task lifecycle: creation, admin assignment,
// status transitions and deletion.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode"

	"staff-tracker/internal/apperror"
	"staff-tracker/internal/models"
	"staff-tracker/internal/repository"
	"staff-tracker/pkg/logger"

	"go.uber.org/zap"
)

// Notifier receives completed tasks. Implementations must not block for
// long and must swallow their own failures.
type Notifier interface {
	TaskCompleted(ctx context.Context, task models.Task)
}

// Cache is a read-through cache of stored task rows.
// Cache is a read-through task cache. Version is read before loading from
// the database and handed back to Set, which skips the write if an
// Invalidate happened in between.
type Cache interface {
	Get(ctx context.Context, id int) (models.Task, bool)
	Version(ctx context.Context, id int) int64
	Set(ctx context.Context, task models.Task, version int64)
	Invalidate(ctx context.Context, id int)
}

type AdminLookup interface {
	Get(ctx context.Context, id int) (*models.Admin, error)
}

type Service struct {
	db         *sql.DB
	tasks      *repository.TaskRepository
	categories *repository.CategoryRepository
	uploads    *repository.UploadRepository
	users      *repository.UserRepository
	admins     AdminLookup
	notifier   Notifier
	cache      Cache
	now        func() time.Time
	dispatch   func(func())
}

type Option func(*Service)

func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithDispatcher replaces how notifications are launched. The default runs
// them on their own goroutine.
func WithDispatcher(d func(func())) Option { return func(s *Service) { s.dispatch = d } }

func NewService(db *sql.DB, admins AdminLookup, opts ...Option) *Service {
	s := &Service{
		db:         db,
		tasks:      repository.NewTaskRepository(db),
		categories: repository.NewCategoryRepository(db),
		uploads:    repository.NewUploadRepository(db),
		users:      repository.NewUserRepository(db),
		admins:     admins,
		notifier:   nopNotifier{},
		cache:      nopCache{},
		now:        time.Now,
		dispatch:   func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    models.Priority
}

// CreateTask adds a pending task owned by the caller.
func (s *Service) CreateTask(ctx context.Context, auth models.AuthenticatedContext, in CreateTaskInput) (models.TaskView, error) {
	if auth.Role != models.RoleUser {
		return models.TaskView{}, apperror.Forbidden("Only users own tasks")
	}
	task, err := newTask(auth.AccountID, in.Title, in.Description, in.DueDate, in.Priority)
	if err != nil {
		return models.TaskView{}, err
	}
	task.AssignedBy = "self"

	if err := s.tasks.Create(ctx, &task); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TaskView{}, apperror.NotFound("User not found")
		}
		return models.TaskView{}, apperror.Internal("creating task", err)
	}
	logger.AuditLogger.Info("Task created", zap.Int("task_id", task.ID), zap.Int("user_id", auth.AccountID))
	return models.NewTaskView(task, s.now()), nil
}

func newTask(owner int, title, description string, due *time.Time, priority models.Priority) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, apperror.Validation("Title is required")
	}
	if strings.IndexFunc(title, unicode.IsControl) >= 0 {
		return models.Task{}, apperror.Validation("Title must not contain control characters")
	}
	if due == nil || due.IsZero() {
		return models.Task{}, apperror.Validation("Due date is required")
	}
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return models.Task{}, apperror.Validation("Priority must be low, medium or high")
	}
	return models.Task{
		UserID:      owner,
		Title:       title,
		Description: strings.TrimSpace(description),
		Priority:    priority,
		Status:      models.StatusPending,
		DueDate:     *due,
	}, nil
}

type AssignTaskInput struct {
	UserID       int
	Category     string
	Title        string
	DueDate      *time.Time
	Priority     models.Priority
	Instructions string
}

// AssignTask creates a task for another user on behalf of an admin. The
// category is created on first use; both writes share one transaction.
func (s *Service) AssignTask(ctx context.Context, auth models.AuthenticatedContext, in AssignTaskInput) (models.TaskView, error) {
	if !auth.IsAdmin() {
		return models.TaskView{}, apperror.Forbidden("Admin access required")
	}
	if in.UserID <= 0 {
		return models.TaskView{}, apperror.Validation("Target user is required")
	}
	task, err := newTask(in.UserID, in.Title, in.Instructions, in.DueDate, in.Priority)
	if err != nil {
		return models.TaskView{}, err
	}

	admin, err := s.admins.Get(ctx, auth.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TaskView{}, apperror.Forbidden("Admin account not found")
		}
		return models.TaskView{}, apperror.Internal("loading admin", err)
	}
	task.AssignedBy = admin.Name

	category := strings.TrimSpace(in.Category)
	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if category != "" {
			id, err := s.categories.WithTx(tx).FindOrCreate(ctx, category)
			if err != nil {
				return apperror.Internal("resolving category", err)
			}
			task.CategoryID = sql.NullInt64{Int64: int64(id), Valid: true}
			task.Category = category
		}
		if err := s.tasks.WithTx(tx).Create(ctx, &task); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.NotFound("User not found")
			}
			return apperror.Internal("creating task", err)
		}
		return nil
	})
	if err != nil {
		return models.TaskView{}, err
	}

	logger.AuditLogger.Info("Task assigned",
		zap.Int("task_id", task.ID), zap.Int("user_id", in.UserID), zap.Int("admin_id", auth.AccountID))
	return models.NewTaskView(task, s.now()), nil
}

// AssignPredefinedTask assigns a copy of a template. A nil due date uses the
// template's default number of days from now.
func (s *Service) AssignPredefinedTask(ctx context.Context, auth models.AuthenticatedContext, userID, predefinedID int, due *time.Time) (models.TaskView, error) {
	if !auth.IsAdmin() {
		return models.TaskView{}, apperror.Forbidden("Admin access required")
	}
	tmpl, err := s.categories.GetPredefined(ctx, predefinedID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TaskView{}, apperror.NotFound("Predefined task not found")
		}
		return models.TaskView{}, apperror.Internal("loading predefined task", err)
	}
	if due == nil {
		d := s.now().AddDate(0, 0, tmpl.DefaultDays)
		due = &d
	}
	return s.AssignTask(ctx, auth, AssignTaskInput{
		UserID:       userID,
		Category:     tmpl.Category,
		Title:        tmpl.Title,
		DueDate:      due,
		Priority:     tmpl.Priority,
		Instructions: tmpl.Description,
	})
}

func (s *Service) CreatePredefined(ctx context.Context, auth models.AuthenticatedContext, p models.PredefinedTask) (models.PredefinedTask, error) {
	if !auth.IsAdmin() {
		return p, apperror.Forbidden("Admin access required")
	}
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return p, apperror.Validation("Title is required")
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(p.Priority) {
		return p, apperror.Validation("Priority must be low, medium or high")
	}
	if p.DefaultDays <= 0 {
		p.DefaultDays = 7
	}

	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		categories := s.categories.WithTx(tx)
		if p.Category != "" {
			if _, err := categories.FindOrCreate(ctx, p.Category); err != nil {
				return err
			}
		}
		return categories.CreatePredefined(ctx, &p)
	})
	if err != nil {
		return p, apperror.Internal("creating predefined task", err)
	}
	logger.AuditLogger.Info("Predefined task created", zap.Int("predefined_id", p.ID), zap.Int("admin_id", auth.AccountID))
	return p, nil
}

func (s *Service) ListPredefined(ctx context.Context, auth models.AuthenticatedContext) ([]models.PredefinedTask, error) {
	if !auth.IsAdmin() {
		return nil, apperror.Forbidden("Admin access required")
	}
	list, err := s.categories.ListPredefined(ctx)
	if err != nil {
		return nil, apperror.Internal("listing predefined tasks", err)
	}
	return list, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	list, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperror.Internal("listing categories", err)
	}
	return list, nil
}

// GetTask returns a task visible to the caller: its owner or any admin.
func (s *Service) GetTask(ctx context.Context, auth models.AuthenticatedContext, id int) (models.TaskView, error) {
	task, ok := s.cache.Get(ctx, id)
	if !ok {
		version := s.cache.Version(ctx, id)
		var err error
		task, err = s.tasks.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return models.TaskView{}, apperror.NotFound("Task not found")
		}
		if err != nil {
			return models.TaskView{}, apperror.Internal("loading task", err)
		}
		s.cache.Set(ctx, task, version)
	}

	if !auth.IsAdmin() && task.UserID != auth.AccountID {
		logger.SecurityLogger.Warn("Forbidden task read", zap.Int("task_id", id), zap.Int("account_id", auth.AccountID))
		return models.TaskView{}, apperror.Forbidden("Forbidden")
	}
	return models.NewTaskView(task, s.now()), nil
}

type ListFilter struct {
	// Status filters on the effective status, so "overdue" works.
	Status models.TaskStatus
	// UserID narrows an admin listing to one user. Ignored for users.
	UserID int
}

func (s *Service) ListTasks(ctx context.Context, auth models.AuthenticatedContext, filter ListFilter) ([]models.TaskView, error) {
	owner := auth.AccountID
	if auth.IsAdmin() {
		owner = filter.UserID
	}
	if filter.Status != "" && !models.ValidStoredStatus(filter.Status) && filter.Status != models.StatusOverdue {
		return nil, apperror.Validation("Unknown status filter")
	}

	tasks, err := s.tasks.List(ctx, owner)
	if err != nil {
		return nil, apperror.Internal("listing tasks", err)
	}

	now := s.now()
	views := make([]models.TaskView, 0, len(tasks))
	for _, t := range tasks {
		v := models.NewTaskView(t, now)
		if filter.Status != "" && v.EffectiveStatus != filter.Status {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

// UpdateStatus moves a task owned by the caller to status. completion_date is
// stamped on the transition into completed and kept when a completed task is
// completed again. The notifier runs after the commit.
func (s *Service) UpdateStatus(ctx context.Context, auth models.AuthenticatedContext, id int, status models.TaskStatus) (models.TaskView, error) {
	if !models.ValidStoredStatus(status) {
		return models.TaskView{}, apperror.Validation("Status must be pending, in_progress or completed")
	}

	var task models.Task
	var completedNow bool
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		current, err := tasks.GetForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Task not found")
		}
		if err != nil {
			return apperror.Internal("loading task", err)
		}
		if current.UserID != auth.AccountID || auth.Role != models.RoleUser {
			logger.SecurityLogger.Warn("Forbidden status update", zap.Int("task_id", id), zap.Int("account_id", auth.AccountID))
			return apperror.Forbidden("You don't have permission to update this task")
		}

		now := s.now()
		completedNow = status == models.StatusCompleted && current.Status != models.StatusCompleted
		if err := tasks.UpdateStatus(ctx, id, status, completedNow, now); err != nil {
			return apperror.Internal("updating task status", err)
		}

		current.Status = status
		if completedNow {
			current.CompletionDate = &now
		}
		task = current
		return nil
	})
	if err != nil {
		return models.TaskView{}, err
	}

	s.cache.Invalidate(ctx, id)
	logger.AuditLogger.Info("Task status updated", zap.Int("task_id", id), zap.String("status", string(status)))

	if completedNow {
		notifyCtx := context.WithoutCancel(ctx)
		completed := task
		s.dispatch(func() { s.notifier.TaskCompleted(notifyCtx, completed) })
	}
	return models.NewTaskView(task, s.now()), nil
}

// DeleteTask removes a task and all its uploads in one transaction. Owners
// and admins may delete.
func (s *Service) DeleteTask(ctx context.Context, auth models.AuthenticatedContext, id int) error {
	var removedUploads int64
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		task, err := tasks.GetForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Task not found")
		}
		if err != nil {
			return apperror.Internal("loading task", err)
		}
		if !auth.IsAdmin() && task.UserID != auth.AccountID {
			logger.SecurityLogger.Warn("Forbidden task delete", zap.Int("task_id", id), zap.Int("account_id", auth.AccountID))
			return apperror.Forbidden("Forbidden")
		}

		removedUploads, err = s.uploads.WithTx(tx).DeleteByTask(ctx, id)
		if err != nil {
			return apperror.Internal("deleting task uploads", err)
		}
		if err := tasks.Delete(ctx, id); err != nil {
			return apperror.Internal("deleting task", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, id)
	logger.AuditLogger.Info("Task deleted",
		zap.Int("task_id", id), zap.Int("account_id", auth.AccountID), zap.Int64("uploads_removed", removedUploads))
	return nil
}

// DeleteUser removes a user together with their tasks and uploads. Admin
// only.
func (s *Service) DeleteUser(ctx context.Context, auth models.AuthenticatedContext, userID int) error {
	if !auth.IsAdmin() {
		return apperror.Forbidden("Admin access required")
	}
	owned, err := s.tasks.List(ctx, userID)
	if err != nil {
		return apperror.Internal("listing user tasks", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		return apperror.Internal("deleting user", err)
	}
	for _, t := range owned {
		s.cache.Invalidate(ctx, t.ID)
	}
	logger.AuditLogger.Info("User deleted",
		zap.Int("user_id", userID), zap.Int("admin_id", auth.AccountID), zap.Int("tasks_removed", len(owned)))
	return nil
}

type nopNotifier struct{}

func (nopNotifier) TaskCompleted(context.Context, models.Task) {}

type nopCache struct{}

func (nopCache) Get(context.Context, int) (models.Task, bool) { return models.Task{}, false }
func (nopCache) Version(context.Context, int) int64           { return 0 }
func (nopCache) Set(context.Context, models.Task, int64)      {}
func (nopCache) Invalidate(context.Context, int)              {}
