package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"arthea/api/internal/store"
	"arthea/api/internal/util"
)

const notificationPageSize = 10

type CreateNotificationInput struct {
	UserID   string `json:"userId"`
	Type     string `json:"type"`
	TargetID string `json:"targetId"`
	Content  string `json:"content"`
}

// CreateNotification stores a notification for later delivery via polling.
func (s *Service) CreateNotification(ctx context.Context, input CreateNotificationInput) (map[string]any, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required", nil)
	}
	if strings.TrimSpace(input.Type) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type is required", nil)
	}

	notification := store.Notification{
		ID:        util.NewID("ntf"),
		UserID:    strings.TrimSpace(input.UserID),
		Type:      strings.TrimSpace(input.Type),
		TargetID:  strings.TrimSpace(input.TargetID),
		Content:   strings.TrimSpace(input.Content),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertNotification(ctx, notification); err != nil {
		return nil, err
	}
	return notificationPayload(notification), nil
}

// NotificationsSince returns up to ten notifications created after the given
// moment, newest first.
func (s *Service) NotificationsSince(ctx context.Context, userID string, since time.Time) ([]map[string]any, error) {
	items, err := s.store.ListNotificationsSince(ctx, userID, since, notificationPageSize)
	if err != nil {
		return nil, err
	}
	return notificationPayloads(items), nil
}

// MarkNotificationRead flags a notification as read. Repeated calls succeed.
func (s *Service) MarkNotificationRead(ctx context.Context, notificationID string) (map[string]any, error) {
	if err := s.store.MarkNotificationRead(ctx, notificationID); err != nil {
		return nil, err
	}
	return map[string]any{"read": true}, nil
}

// PollNotifications blocks until the user has new notifications, the timeout
// elapses, or the request context is cancelled. Storage errors during a check
// are logged and treated as nothing-new so a flaky database does not wake
// every waiting client with a 500.
func (s *Service) PollNotifications(ctx context.Context, userID string, since time.Time, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = s.cfg.PollTimeout
	}
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	check := func() []map[string]any {
		items, err := s.store.ListNotificationsSince(ctx, userID, since, notificationPageSize)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("notification poll check failed: %v", err)
			}
			return nil
		}
		if len(items) == 0 {
			return nil
		}
		return notificationPayloads(items)
	}

	if items := check(); items != nil {
		return pollResult(items), nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return map[string]any{"hasNew": false, "timeout": true}, nil
		case <-ticker.C:
			if items := check(); items != nil {
				return pollResult(items), nil
			}
		}
	}
}

func pollResult(items []map[string]any) map[string]any {
	return map[string]any{
		"hasNew": true,
		"type":   "notification",
		"data":   items,
	}
}

// NotifyNewComment fans a freshly sent comment out to a user when write-time
// notifications are enabled.
func (s *Service) NotifyNewComment(ctx context.Context, userID, commentID, authorName string) {
	s.notifyOnWrite(ctx, userID, "new_comment", commentID, authorName+" left a review comment")
}

func (s *Service) NotifyNewChatMessage(ctx context.Context, userID, messageID, authorName string) {
	s.notifyOnWrite(ctx, userID, "new_chat_message", messageID, authorName+" sent a message")
}

func (s *Service) NotifyRoundFrozen(ctx context.Context, userID, roundID string) {
	s.notifyOnWrite(ctx, userID, "round_frozen", roundID, "a review round was frozen")
}

func (s *Service) notifyOnWrite(ctx context.Context, userID, kind, targetID, content string) {
	if !s.cfg.NotifyOnWrite || userID == "" {
		return
	}
	_, err := s.CreateNotification(ctx, CreateNotificationInput{
		UserID:   userID,
		Type:     kind,
		TargetID: targetID,
		Content:  content,
	})
	if err != nil {
		log.Printf("write notification %s failed: %v", kind, err)
	}
}

func notificationPayloads(items []store.Notification) []map[string]any {
	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, notificationPayload(item))
	}
	return payloads
}

func notificationPayload(notification store.Notification) map[string]any {
	payload := map[string]any{
		"id":        notification.ID,
		"userId":    notification.UserID,
		"type":      notification.Type,
		"isRead":    notification.IsRead,
		"createdAt": notification.CreatedAt.UnixMilli(),
	}
	if notification.TargetID != "" {
		payload["targetId"] = notification.TargetID
	}
	if notification.Content != "" {
		payload["content"] = notification.Content
	}
	return payload
}
