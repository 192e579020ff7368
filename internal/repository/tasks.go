package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staff-tracker/internal/models"
)

type TaskRepository struct {
	q DBTX
}

func NewTaskRepository(q DBTX) *TaskRepository { return &TaskRepository{q: q} }

// WithTx returns a repository bound to tx.
func (r *TaskRepository) WithTx(tx *sql.Tx) *TaskRepository { return &TaskRepository{q: tx} }

const taskSelect = `
	SELECT t.id, t.user_id, t.title, t.description, t.category_id, COALESCE(c.name, ''),
		t.priority, t.status, t.due_date, t.completion_date, t.assigned_by, t.created_at
	FROM tasks t
	LEFT JOIN categories c ON c.id = t.category_id`

func scanTask(row interface{ Scan(...interface{}) error }) (models.Task, error) {
	var t models.Task
	var completed sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.CategoryID, &t.Category,
		&t.Priority, &t.Status, &t.DueDate, &completed, &t.AssignedBy, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	if completed.Valid {
		t.CompletionDate = &completed.Time
	}
	return t, nil
}

// Create inserts t. An owner that does not exist returns ErrNotFound.
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, title, description, category_id, priority, status, due_date, assigned_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		t.UserID, t.Title, t.Description, t.CategoryID, t.Priority, t.Status, t.DueDate, t.AssignedBy,
	).Scan(&t.ID, &t.CreatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (r *TaskRepository) Get(ctx context.Context, id int) (models.Task, error) {
	t, err := scanTask(r.q.QueryRowContext(ctx, taskSelect+" WHERE t.id = $1", id))
	return t, notFound(err)
}

// GetForUpdate row-locks the task until the surrounding transaction ends.
func (r *TaskRepository) GetForUpdate(ctx context.Context, id int) (models.Task, error) {
	t, err := scanTask(r.q.QueryRowContext(ctx, taskSelect+" WHERE t.id = $1 FOR UPDATE OF t", id))
	return t, notFound(err)
}

// List returns tasks ordered by due date. userID 0 means every user.
func (r *TaskRepository) List(ctx context.Context, userID int) ([]models.Task, error) {
	var rows *sql.Rows
	var err error
	if userID == 0 {
		rows, err = r.q.QueryContext(ctx, taskSelect+" ORDER BY t.due_date, t.id")
	} else {
		rows, err = r.q.QueryContext(ctx, taskSelect+" WHERE t.user_id = $1 ORDER BY t.due_date, t.id", userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateStatus writes status; completion_date is set to completedAt only when
// stampCompletion is true and is otherwise left as it was.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int, status models.TaskStatus, stampCompletion bool, completedAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1,
			completion_date = CASE WHEN $2 THEN $3 ELSE completion_date END
		WHERE id = $4`,
		status, stampCompletion, completedAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	return requireRow(res)
}

type CategoryRepository struct {
	q DBTX
}

func NewCategoryRepository(q DBTX) *CategoryRepository { return &CategoryRepository{q: q} }

func (r *CategoryRepository) WithTx(tx *sql.Tx) *CategoryRepository {
	return &CategoryRepository{q: tx}
}

// FindOrCreate returns the id of the category called name, creating it if
// needed.
func (r *CategoryRepository) FindOrCreate(ctx context.Context, name string) (int, error) {
	var id int
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO categories (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name).Scan(&id)
	return id, err
}

func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) CreatePredefined(ctx context.Context, p *models.PredefinedTask) error {
	return r.q.QueryRowContext(ctx, `
		INSERT INTO predefined_tasks (title, description, category_id, priority, default_days)
		VALUES ($1, $2, (SELECT id FROM categories WHERE name = $3), $4, $5)
		RETURNING id`,
		p.Title, p.Description, p.Category, p.Priority, p.DefaultDays,
	).Scan(&p.ID)
}

const predefinedSelect = `
	SELECT p.id, p.title, p.description, COALESCE(c.name, ''), p.priority, p.default_days
	FROM predefined_tasks p
	LEFT JOIN categories c ON c.id = p.category_id`

func scanPredefined(row interface{ Scan(...interface{}) error }) (models.PredefinedTask, error) {
	var p models.PredefinedTask
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.Priority, &p.DefaultDays)
	return p, err
}

func (r *CategoryRepository) GetPredefined(ctx context.Context, id int) (models.PredefinedTask, error) {
	p, err := scanPredefined(r.q.QueryRowContext(ctx, predefinedSelect+" WHERE p.id = $1", id))
	return p, notFound(err)
}

func (r *CategoryRepository) ListPredefined(ctx context.Context) ([]models.PredefinedTask, error) {
	rows, err := r.q.QueryContext(ctx, predefinedSelect+" ORDER BY p.id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.PredefinedTask{}
	for rows.Next() {
		p, err := scanPredefined(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
