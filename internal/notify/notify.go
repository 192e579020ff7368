// Package notify tells admins when a user completes a task.
package notify

import (
	"context"
	"fmt"

	"staff-tracker/internal/models"
	"staff-tracker/pkg/logger"

	"go.uber.org/zap"
)

type AdminLister interface {
	ListAdmins(ctx context.Context) ([]*models.Admin, error)
}

type UserLookup interface {
	Get(ctx context.Context, id int) (*models.User, error)
}

// Publisher pushes live events to connected admins.
type Publisher interface {
	Publish(eventType string, data interface{}) bool
}

type TaskNotifier struct {
	admins    AdminLister
	users     UserLookup
	mailer    Mailer
	publisher Publisher
}

func NewTaskNotifier(admins AdminLister, users UserLookup, mailer Mailer, publisher Publisher) *TaskNotifier {
	return &TaskNotifier{admins: admins, users: users, mailer: mailer, publisher: publisher}
}

type completedEvent struct {
	TaskID    int    `json:"task_id"`
	Title     string `json:"title"`
	UserID    int    `json:"user_id"`
	UserName  string `json:"user_name"`
	Completed string `json:"completed_at,omitempty"`
}

// TaskCompleted mails every admin who opted in and publishes the event.
// Nothing is returned: failures are logged and dropped.
func (n *TaskNotifier) TaskCompleted(ctx context.Context, task models.Task) {
	userName := fmt.Sprintf("user #%d", task.UserID)
	if n.users != nil {
		if u, err := n.users.Get(ctx, task.UserID); err == nil {
			userName = u.Name
		} else {
			logger.ErrorLogger.Warn("Loading task owner for notification", zap.Int("task_id", task.ID), zap.Error(err))
		}
	}

	event := completedEvent{TaskID: task.ID, Title: task.Title, UserID: task.UserID, UserName: userName}
	if task.CompletionDate != nil {
		event.Completed = task.CompletionDate.Format("2006-01-02 15:04")
	}
	if n.publisher != nil && !n.publisher.Publish("task_completed", event) {
		logger.SystemLogger.Warn("Websocket queue full, event dropped", zap.Int("task_id", task.ID))
	}

	if n.mailer == nil {
		return
	}
	recipients, err := n.recipients(ctx)
	if err != nil {
		logger.ErrorLogger.Error("Listing admins for notification", zap.Int("task_id", task.ID), zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("Task completed: %s", task.Title)
	body := fmt.Sprintf("%s has completed the task %q (id %d).", userName, task.Title, task.ID)
	if event.Completed != "" {
		body += "\nCompleted at " + event.Completed + "."
	}
	if err := n.mailer.Send(recipients, subject, body); err != nil {
		logger.ErrorLogger.Error("Sending completion email", zap.Int("task_id", task.ID), zap.Error(err))
		return
	}
	logger.AuditLogger.Info("Completion email sent", zap.Int("task_id", task.ID), zap.Int("recipients", len(recipients)))
}

func (n *TaskNotifier) recipients(ctx context.Context) ([]string, error) {
	admins, err := n.admins.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	var to []string
	for _, a := range admins {
		prefs, err := models.ParsePreferences(a.PreferencesBlob)
		if err != nil {
			logger.ErrorLogger.Warn("Unreadable admin preferences", zap.Int("admin_id", a.ID), zap.Error(err))
			continue
		}
		if prefs.ReceiveTaskEmails {
			to = append(to, a.Email)
		}
	}
	return to, nil
}
