package handlers

import (
	"io"
	"mime"
	"mime/multipart"

	"staff-tracker/internal/apperror"
	"staff-tracker/internal/service/files"

	"github.com/gofiber/fiber/v2"
)

func readFormFile(c *fiber.Ctx, field string) (files.FileInput, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return files.FileInput{}, apperror.Validation("Missing form file " + field)
	}
	return readHeader(header)
}

func readHeader(header *multipart.FileHeader) (files.FileInput, error) {
	f, err := header.Open()
	if err != nil {
		return files.FileInput{}, apperror.Internal("opening uploaded file", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return files.FileInput{}, apperror.Internal("reading uploaded file", err)
	}
	return files.FileInput{
		Name:     header.Filename,
		MimeType: header.Header.Get(fiber.HeaderContentType),
		Content:  content,
	}, nil
}

func sendAttachment(c *fiber.Ctx, name, mimeType string, content []byte) error {
	if mimeType == "" {
		mimeType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, mimeType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	return c.Status(fiber.StatusOK).Send(content)
}

func (h *Handler) UploadFile(c *fiber.Ctx) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid task id", err)
	}
	in, err := readFormFile(c, "file")
	if err != nil {
		return respondError(c, "Error reading upload", err)
	}

	upload, err := h.Files.UploadFile(c.UserContext(), authOf(c), taskID, in)
	if err != nil {
		return respondError(c, "Error uploading file", err)
	}
	return respond(c, fiber.StatusCreated, "File uploaded successfully", upload)
}

func (h *Handler) ListUploads(c *fiber.Ctx) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid task id", err)
	}
	list, err := h.Files.ListUploads(c.UserContext(), authOf(c), taskID)
	if err != nil {
		return respondError(c, "Error listing uploads", err)
	}
	return respond(c, fiber.StatusOK, "Uploads fetched successfully", list)
}

// DownloadFile answers with the raw bytes, not the JSON envelope.
func (h *Handler) DownloadFile(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid upload id", err)
	}
	upload, err := h.Files.DownloadFile(c.UserContext(), authOf(c), id)
	if err != nil {
		return respondError(c, "Error downloading file", err)
	}
	return sendAttachment(c, upload.FileName, upload.MimeType, upload.Content)
}

func (h *Handler) DeleteFile(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid upload id", err)
	}
	if err := h.Files.DeleteFile(c.UserContext(), authOf(c), id); err != nil {
		return respondError(c, "Error deleting file", err)
	}
	return respond(c, fiber.StatusOK, "File deleted successfully", nil)
}

func (h *Handler) UploadProfilePicture(c *fiber.Ctx) error {
	in, err := readFormFile(c, "profile_picture")
	if err != nil {
		return respondError(c, "Error reading profile picture", err)
	}
	url, err := h.Files.UploadProfilePicture(c.UserContext(), authOf(c), in)
	if err != nil {
		return respondError(c, "Error uploading profile picture", err)
	}
	return respond(c, fiber.StatusOK, "Profile picture uploaded successfully", fiber.Map{"profile_picture": url})
}

// CommitTask copies a completed task's uploads into the repository. ?dedup
// overrides the configured default.
func (h *Handler) CommitTask(c *fiber.Ctx) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid task id", err)
	}
	dedup := h.CommitDedup
	if c.Query("dedup") != "" {
		dedup = c.QueryBool("dedup", dedup)
	}

	result, err := h.Files.CommitTaskToRepository(c.UserContext(), authOf(c), taskID, files.CommitOptions{Dedup: dedup})
	if err != nil {
		return respondError(c, "Error committing task", err)
	}
	return respond(c, fiber.StatusCreated, "Task files committed to repository", result)
}

func (h *Handler) ListRepositoryFiles(c *fiber.Ctx) error {
	list, err := h.Files.ListRepositoryFiles(c.UserContext(), authOf(c))
	if err != nil {
		return respondError(c, "Error listing repository", err)
	}
	return respond(c, fiber.StatusOK, "Repository files fetched successfully", list)
}

func (h *Handler) DownloadRepositoryFile(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid repository file id", err)
	}
	f, content, err := h.Files.DownloadRepositoryFile(c.UserContext(), authOf(c), id)
	if err != nil {
		return respondError(c, "Error downloading repository file", err)
	}
	return sendAttachment(c, f.FileName, f.MimeType, content)
}

func (h *Handler) DeleteRepositoryFile(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, "Invalid repository file id", err)
	}
	if err := h.Files.DeleteRepositoryFile(c.UserContext(), authOf(c), id); err != nil {
		return respondError(c, "Error deleting repository file", err)
	}
	return respond(c, fiber.StatusOK, "Repository file deleted successfully", nil)
}
