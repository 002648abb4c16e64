package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helvetio/marketplace-backend/internal/goroutine"
	"github.com/helvetio/marketplace-backend/internal/logger"
	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
)

// NotificationRepository is the storage surface of the notification feed.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Pusher delivers a payload to a connected user, if any. The websocket hub
// implements it.
type Pusher interface {
	Push(userID uuid.UUID, payload []byte)
}

// NotificationService persists the per-user feed and pushes live updates.
// It implements NotificationSink: delivery runs detached from the calling
// transition and its failure is only ever logged.
type NotificationService struct {
	repo   NotificationRepository
	pusher Pusher
}

func NewNotificationService(repo NotificationRepository, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Notify records an event for a user and pushes it out. Fire-and-forget.
func (s *NotificationService) Notify(userID uuid.UUID, event string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		logger.Log.WithError(err).WithField("event", event).Error("failed to marshal notification payload")
		return
	}

	// Delivery is detached from the caller's request; it gets its own
	// deadline instead of inheriting a context that may already be done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		defer cancel()

		n := &models.Notification{UserID: userID, Payload: payload}
		if err := s.repo.Create(ctx, n); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"user_id": userID,
				"event":   event,
			}).Error("failed to store notification")
			return
		}
		if s.pusher != nil {
			if out, err := json.Marshal(n); err == nil {
				s.pusher.Push(userID, out)
			}
		}
	})
}

// List returns a page of the user's feed.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead marks one notification read after an ownership check.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return apperror.New(apperror.ErrCodeForbidden, fmt.Sprintf("notification %s belongs to another user", id))
	}
	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead clears the unread state of the whole feed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// CountUnread returns the badge count.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
