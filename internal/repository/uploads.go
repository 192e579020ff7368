package repository

import (
	"context"
	"database/sql"

	"staff-tracker/internal/models"
)

type UploadRepository struct {
	q DBTX
}

func NewUploadRepository(q DBTX) *UploadRepository { return &UploadRepository{q: q} }

func (r *UploadRepository) WithTx(tx *sql.Tx) *UploadRepository { return &UploadRepository{q: tx} }

func (r *UploadRepository) Create(ctx context.Context, u *models.Upload) error {
	return r.q.QueryRowContext(ctx, `
		INSERT INTO uploads (task_id, file_name, mime_type, size, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_at`,
		u.TaskID, u.FileName, u.MimeType, u.Size, u.Content,
	).Scan(&u.ID, &u.UploadedAt)
}

// ListByTask returns upload metadata without content.
func (r *UploadRepository) ListByTask(ctx context.Context, taskID int) ([]models.Upload, error) {
	return r.list(ctx, `
		SELECT id, task_id, file_name, mime_type, size, NULL::bytea, uploaded_at
		FROM uploads WHERE task_id = $1 ORDER BY id`, taskID)
}

// ListWithContentByTask is ListByTask including the bytes.
func (r *UploadRepository) ListWithContentByTask(ctx context.Context, taskID int) ([]models.Upload, error) {
	return r.list(ctx, `
		SELECT id, task_id, file_name, mime_type, size, content, uploaded_at
		FROM uploads WHERE task_id = $1 ORDER BY id`, taskID)
}

func (r *UploadRepository) list(ctx context.Context, query string, taskID int) ([]models.Upload, error) {
	rows, err := r.q.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []models.Upload{}
	for rows.Next() {
		var u models.Upload
		if err := rows.Scan(&u.ID, &u.TaskID, &u.FileName, &u.MimeType, &u.Size, &u.Content, &u.UploadedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// GetWithOwner loads an upload with its content and the id of the account
// owning the parent task.
func (r *UploadRepository) GetWithOwner(ctx context.Context, id int) (models.Upload, int, error) {
	var u models.Upload
	var ownerID int
	err := r.q.QueryRowContext(ctx, `
		SELECT u.id, u.task_id, u.file_name, u.mime_type, u.size, u.content, u.uploaded_at, t.user_id
		FROM uploads u
		JOIN tasks t ON t.id = u.task_id
		WHERE u.id = $1`, id,
	).Scan(&u.ID, &u.TaskID, &u.FileName, &u.MimeType, &u.Size, &u.Content, &u.UploadedAt, &ownerID)
	return u, ownerID, notFound(err)
}

// LockOwner row-locks the upload and returns the parent task's owner.
func (r *UploadRepository) LockOwner(ctx context.Context, id int) (int, error) {
	var ownerID int
	err := r.q.QueryRowContext(ctx, `
		SELECT t.user_id
		FROM uploads u
		JOIN tasks t ON t.id = u.task_id
		WHERE u.id = $1
		FOR UPDATE OF u`, id,
	).Scan(&ownerID)
	return ownerID, notFound(err)
}

func (r *UploadRepository) Delete(ctx context.Context, id int) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM uploads WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteByTask removes every upload of a task and reports how many went.
func (r *UploadRepository) DeleteByTask(ctx context.Context, taskID int) (int64, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM uploads WHERE task_id = $1", taskID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type RepositoryFileRepository struct {
	q DBTX
}

func NewRepositoryFileRepository(q DBTX) *RepositoryFileRepository {
	return &RepositoryFileRepository{q: q}
}

func (r *RepositoryFileRepository) WithTx(tx *sql.Tx) *RepositoryFileRepository {
	return &RepositoryFileRepository{q: tx}
}

const repositoryFileColumns = `id, file_name, stored_path, description, size, mime_type,
	uploaded_by, source_task_id, source_user_id, created_at`

func scanRepositoryFile(row interface{ Scan(...interface{}) error }) (models.RepositoryFile, error) {
	var f models.RepositoryFile
	var uploadedBy, taskID, userID sql.NullInt64
	err := row.Scan(&f.ID, &f.FileName, &f.StoredPath, &f.Description, &f.Size, &f.MimeType,
		&uploadedBy, &taskID, &userID, &f.CreatedAt)
	if err != nil {
		return f, err
	}
	f.UploadedBy = nullableInt(uploadedBy)
	f.SourceTaskID = nullableInt(taskID)
	f.SourceUserID = nullableInt(userID)
	return f, nil
}

func nullableInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func (r *RepositoryFileRepository) Create(ctx context.Context, f *models.RepositoryFile) error {
	return r.q.QueryRowContext(ctx, `
		INSERT INTO repository_files (file_name, stored_path, description, size, mime_type,
			uploaded_by, source_task_id, source_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		f.FileName, f.StoredPath, f.Description, f.Size, f.MimeType,
		f.UploadedBy, f.SourceTaskID, f.SourceUserID,
	).Scan(&f.ID, &f.CreatedAt)
}

// ExistsForTask reports whether fileName was already committed from taskID.
func (r *RepositoryFileRepository) ExistsForTask(ctx context.Context, taskID int, fileName string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM repository_files WHERE source_task_id = $1 AND file_name = $2)`,
		taskID, fileName).Scan(&exists)
	return exists, err
}

func (r *RepositoryFileRepository) Get(ctx context.Context, id int) (models.RepositoryFile, error) {
	f, err := scanRepositoryFile(r.q.QueryRowContext(ctx,
		"SELECT "+repositoryFileColumns+" FROM repository_files WHERE id = $1", id))
	return f, notFound(err)
}

func (r *RepositoryFileRepository) List(ctx context.Context) ([]models.RepositoryFile, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+repositoryFileColumns+" FROM repository_files ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []models.RepositoryFile{}
	for rows.Next() {
		f, err := scanRepositoryFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CountByTask counts repository files committed from taskID.
func (r *RepositoryFileRepository) CountByTask(ctx context.Context, taskID int) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM repository_files WHERE source_task_id = $1", taskID).Scan(&n)
	return n, err
}

func (r *RepositoryFileRepository) Delete(ctx context.Context, id int) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM repository_files WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
