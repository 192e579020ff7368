// Package files holds task uploads and the shared document repository.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"staff-tracker/internal/apperror"
	"staff-tracker/internal/blobstore"
	"staff-tracker/internal/models"
	"staff-tracker/internal/repository"
	"staff-tracker/pkg/logger"

	"go.uber.org/zap"
)

const (
	MaxProfilePictureSize = 2 << 20
	defaultMimeType       = "application/octet-stream"
)

var profilePictureExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

// BlobStore is where committed repository files and profile pictures live.
type BlobStore interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Remove(key string) error
}

type ProfileUpdater interface {
	UpdateProfilePicture(ctx context.Context, id int, url string) error
}

type Service struct {
	db        *sql.DB
	tasks     *repository.TaskRepository
	uploads   *repository.UploadRepository
	repoFiles *repository.RepositoryFileRepository
	blobs     BlobStore
	pictures  BlobStore
	profiles  ProfileUpdater
}

// NewService wires the service. blobs backs the repository, pictures backs
// profile pictures served under /uploads.
func NewService(db *sql.DB, blobs, pictures BlobStore, profiles ProfileUpdater) *Service {
	return &Service{
		db:        db,
		tasks:     repository.NewTaskRepository(db),
		uploads:   repository.NewUploadRepository(db),
		repoFiles: repository.NewRepositoryFileRepository(db),
		blobs:     blobs,
		pictures:  pictures,
		profiles:  profiles,
	}
}

type FileInput struct {
	Name     string
	MimeType string
	Content  []byte
}

func forbidden(what string, id int, auth models.AuthenticatedContext) error {
	logger.SecurityLogger.Warn("Forbidden "+what, zap.Int("id", id),
		zap.Int("account_id", auth.AccountID), zap.String("role", string(auth.Role)))
	return apperror.Forbidden("Forbidden")
}

func ownsOrAdmin(auth models.AuthenticatedContext, ownerID int) bool {
	return auth.IsAdmin() || (auth.Role == models.RoleUser && auth.AccountID == ownerID)
}

// UploadFile attaches a file to a task owned by the caller. Size and type
// are not restricted.
func (s *Service) UploadFile(ctx context.Context, auth models.AuthenticatedContext, taskID int, in FileInput) (models.Upload, error) {
	name := filepath.Base(strings.TrimSpace(in.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return models.Upload{}, apperror.Validation("File name is required")
	}
	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	upload := models.Upload{
		TaskID:   taskID,
		FileName: name,
		MimeType: mimeType,
		Size:     int64(len(in.Content)),
		Content:  in.Content,
	}

	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		task, err := s.tasks.WithTx(tx).GetForUpdate(ctx, taskID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Task not found")
		}
		if err != nil {
			return apperror.Internal("loading task", err)
		}
		if auth.Role != models.RoleUser || task.UserID != auth.AccountID {
			return forbidden("upload", taskID, auth)
		}
		if err := s.uploads.WithTx(tx).Create(ctx, &upload); err != nil {
			return apperror.Internal("storing upload", err)
		}
		return nil
	})
	if err != nil {
		return models.Upload{}, err
	}

	logger.AuditLogger.Info("File uploaded",
		zap.Int("upload_id", upload.ID), zap.Int("task_id", taskID), zap.Int64("size", upload.Size))
	return upload, nil
}

func (s *Service) ListUploads(ctx context.Context, auth models.AuthenticatedContext, taskID int) ([]models.Upload, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Task not found")
	}
	if err != nil {
		return nil, apperror.Internal("loading task", err)
	}
	if !ownsOrAdmin(auth, task.UserID) {
		return nil, forbidden("upload listing", taskID, auth)
	}
	uploads, err := s.uploads.ListByTask(ctx, taskID)
	if err != nil {
		return nil, apperror.Internal("listing uploads", err)
	}
	return uploads, nil
}

// DownloadFile returns an upload with its content to the task owner or an
// admin.
func (s *Service) DownloadFile(ctx context.Context, auth models.AuthenticatedContext, uploadID int) (models.Upload, error) {
	upload, ownerID, err := s.uploads.GetWithOwner(ctx, uploadID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Upload{}, apperror.NotFound("File not found")
	}
	if err != nil {
		return models.Upload{}, apperror.Internal("loading upload", err)
	}
	if !ownsOrAdmin(auth, ownerID) {
		return models.Upload{}, forbidden("download", uploadID, auth)
	}
	return upload, nil
}

func (s *Service) DeleteFile(ctx context.Context, auth models.AuthenticatedContext, uploadID int) error {
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		uploads := s.uploads.WithTx(tx)
		ownerID, err := uploads.LockOwner(ctx, uploadID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("File not found")
		}
		if err != nil {
			return apperror.Internal("loading upload", err)
		}
		if !ownsOrAdmin(auth, ownerID) {
			return forbidden("file delete", uploadID, auth)
		}
		if err := uploads.Delete(ctx, uploadID); err != nil {
			return apperror.Internal("deleting upload", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.AuditLogger.Info("File deleted", zap.Int("upload_id", uploadID), zap.Int("account_id", auth.AccountID))
	return nil
}

type CommitOptions struct {
	// Dedup skips uploads already committed from the same task under the
	// same file name.
	Dedup bool
}

type CommitResult struct {
	Committed int `json:"committed"`
	Skipped   int `json:"skipped"`
}

// CommitTaskToRepository copies every upload of a completed task into the
// repository. Rows are written in one transaction; blobs written before a
// failure are removed again.
func (s *Service) CommitTaskToRepository(ctx context.Context, auth models.AuthenticatedContext, taskID int, opts CommitOptions) (CommitResult, error) {
	var result CommitResult
	if !auth.IsAdmin() {
		return result, forbidden("repository commit", taskID, auth)
	}

	var written []string
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		task, err := s.tasks.WithTx(tx).GetForUpdate(ctx, taskID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Task not found")
		}
		if err != nil {
			return apperror.Internal("loading task", err)
		}
		if task.Status != models.StatusCompleted {
			return apperror.Validation("Only completed tasks can be committed")
		}

		uploads, err := s.uploads.WithTx(tx).ListWithContentByTask(ctx, taskID)
		if err != nil {
			return apperror.Internal("loading uploads", err)
		}
		if len(uploads) == 0 {
			return apperror.NothingToCommit("Task has no files to commit")
		}

		repoFiles := s.repoFiles.WithTx(tx)
		adminID, ownerID := auth.AccountID, task.UserID
		for _, u := range uploads {
			if opts.Dedup {
				exists, err := repoFiles.ExistsForTask(ctx, taskID, u.FileName)
				if err != nil {
					return apperror.Internal("checking repository", err)
				}
				if exists {
					result.Skipped++
					continue
				}
			}

			key := blobstore.NewKey(u.FileName)
			if err := s.blobs.Put(key, u.Content); err != nil {
				return apperror.Internal("writing repository blob", err)
			}
			written = append(written, key)

			sourceTask := taskID
			f := models.RepositoryFile{
				FileName:     u.FileName,
				StoredPath:   key,
				Description:  fmt.Sprintf("Committed from task %q", task.Title),
				Size:         u.Size,
				MimeType:     u.MimeType,
				UploadedBy:   &adminID,
				SourceTaskID: &sourceTask,
				SourceUserID: &ownerID,
			}
			if err := repoFiles.Create(ctx, &f); err != nil {
				return apperror.Internal("recording repository file", err)
			}
			result.Committed++
		}
		if result.Committed == 0 {
			return apperror.NothingToCommit("All files were already committed")
		}
		return nil
	})
	if err != nil {
		for _, key := range written {
			if rmErr := s.blobs.Remove(key); rmErr != nil {
				logger.ErrorLogger.Error("Removing orphaned blob", zap.String("key", key), zap.Error(rmErr))
			}
		}
		return CommitResult{}, err
	}

	logger.AuditLogger.Info("Task committed to repository",
		zap.Int("task_id", taskID), zap.Int("admin_id", auth.AccountID),
		zap.Int("committed", result.Committed), zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *Service) ListRepositoryFiles(ctx context.Context, auth models.AuthenticatedContext) ([]models.RepositoryFile, error) {
	if !auth.IsAdmin() {
		return nil, apperror.Forbidden("Admin access required")
	}
	list, err := s.repoFiles.List(ctx)
	if err != nil {
		return nil, apperror.Internal("listing repository", err)
	}
	return list, nil
}

func (s *Service) DownloadRepositoryFile(ctx context.Context, auth models.AuthenticatedContext, id int) (models.RepositoryFile, []byte, error) {
	if !auth.IsAdmin() {
		return models.RepositoryFile{}, nil, apperror.Forbidden("Admin access required")
	}
	f, err := s.repoFiles.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return f, nil, apperror.NotFound("Repository file not found")
	}
	if err != nil {
		return f, nil, apperror.Internal("loading repository file", err)
	}
	data, err := s.blobs.Get(f.StoredPath)
	if err != nil {
		return f, nil, apperror.Internal("reading repository blob", err)
	}
	return f, data, nil
}

// DeleteRepositoryFile removes the row first; a blob that fails to delete
// afterwards is only logged.
func (s *Service) DeleteRepositoryFile(ctx context.Context, auth models.AuthenticatedContext, id int) error {
	if !auth.IsAdmin() {
		return apperror.Forbidden("Admin access required")
	}
	f, err := s.repoFiles.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Repository file not found")
	}
	if err != nil {
		return apperror.Internal("loading repository file", err)
	}
	if err := s.repoFiles.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Repository file not found")
		}
		return apperror.Internal("deleting repository file", err)
	}
	if err := s.blobs.Remove(f.StoredPath); err != nil {
		logger.ErrorLogger.Error("Removing repository blob", zap.String("key", f.StoredPath), zap.Error(err))
	}
	logger.AuditLogger.Info("Repository file deleted", zap.Int("file_id", id), zap.Int("admin_id", auth.AccountID))
	return nil
}

// UploadProfilePicture stores an image for the calling user and returns its
// public URL.
func (s *Service) UploadProfilePicture(ctx context.Context, auth models.AuthenticatedContext, in FileInput) (string, error) {
	if auth.Role != models.RoleUser {
		return "", apperror.Forbidden("Only users have profile pictures")
	}
	if len(in.Content) > MaxProfilePictureSize {
		return "", apperror.Validation("File size exceeds the limit of 2MB")
	}
	ext := strings.ToLower(filepath.Ext(in.Name))
	if !profilePictureExts[ext] {
		return "", apperror.Validation("File type not allowed")
	}
	if in.MimeType != "" && !strings.HasPrefix(in.MimeType, "image/") {
		return "", apperror.Validation("File must be an image")
	}

	key := blobstore.NewKey(in.Name)
	if err := s.pictures.Put(key, in.Content); err != nil {
		return "", apperror.Internal("saving profile picture", err)
	}
	url := "/uploads/" + key
	if err := s.profiles.UpdateProfilePicture(ctx, auth.AccountID, url); err != nil {
		if rmErr := s.pictures.Remove(key); rmErr != nil {
			logger.ErrorLogger.Error("Removing unused profile picture", zap.String("key", key), zap.Error(rmErr))
		}
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperror.NotFound("User not found")
		}
		return "", apperror.Internal("updating profile picture", err)
	}

	logger.AuditLogger.Info("Profile picture uploaded", zap.Int("user_id", auth.AccountID), zap.String("file", key))
	return url, nil
}
