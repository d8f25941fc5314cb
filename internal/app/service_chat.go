package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"arthea/api/internal/search"
	"arthea/api/internal/store"
	"arthea/api/internal/util"
)

const (
	ChannelClientArchitect = "client_architect"
	ChannelOffice          = "office"

	maxChatMessageLength = 5000
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

type SendMessageInput struct {
	Channel    string `json:"channel"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	AuthorRole string `json:"authorRole"`
	Content    string `json:"content"`
	SubjectID  string `json:"subjectId"`
	IsPin      bool   `json:"isPin"`
}

// SendMessage appends a message to a chat channel. Subject links, mentions
// and pins only exist in the office channel.
func (s *Service) SendMessage(ctx context.Context, input SendMessageInput) (map[string]any, error) {
	channel := strings.TrimSpace(input.Channel)
	if channel != ChannelClientArchitect && channel != ChannelOffice {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "channel must be client_architect or office", nil)
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if len(content) > maxChatMessageLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content exceeds maximum length", map[string]any{
			"max": maxChatMessageLength,
		})
	}
	if strings.TrimSpace(input.AuthorID) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "authorId is required", nil)
	}
	if strings.TrimSpace(input.AuthorName) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "authorName is required", nil)
	}

	message := store.ChatMessage{
		ID:         util.NewID("msg"),
		Channel:    channel,
		AuthorID:   strings.TrimSpace(input.AuthorID),
		AuthorName: strings.TrimSpace(input.AuthorName),
		AuthorRole: strings.TrimSpace(input.AuthorRole),
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if channel == ChannelOffice {
		message.SubjectID = strings.TrimSpace(input.SubjectID)
		message.Mentions = extractMentions(content)
		message.IsPin = input.IsPin
	}

	if err := s.store.InsertChatMessage(ctx, message); err != nil {
		return nil, err
	}

	if channel == ChannelOffice {
		s.fanOutMentions(ctx, message)
	}

	if s.search != nil {
		s.search.IndexChatMessage(search.ChatRecord{
			ID:         message.ID,
			Content:    message.Content,
			AuthorName: message.AuthorName,
			Channel:    message.Channel,
			SubjectID:  message.SubjectID,
		})
	}

	return chatPayload(message), nil
}

// ChatHistory returns a page of messages in chronological order.
func (s *Service) ChatHistory(ctx context.Context, channel string, limit, offset int) ([]map[string]any, error) {
	if channel != ChannelClientArchitect && channel != ChannelOffice {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "channel must be client_architect or office", nil)
	}
	if limit <= 0 {
		limit = 50
		if channel == ChannelOffice {
			limit = 100
		}
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListChatMessages(ctx, channel, limit, offset)
	if err != nil {
		return nil, err
	}
	return chatPayloads(items), nil
}

// PinsForSubject returns pinned office messages for one subject, newest first.
func (s *Service) PinsForSubject(ctx context.Context, subjectID string) ([]map[string]any, error) {
	items, err := s.store.ListPinnedMessages(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return chatPayloads(items), nil
}

// HasNewMessages reports whether a channel has traffic after the given
// moment. Storage failures read as "nothing new".
func (s *Service) HasNewMessages(ctx context.Context, channel string, since time.Time) bool {
	latest, err := s.store.LatestChatMessageAt(ctx, channel)
	if err != nil {
		log.Printf("chat freshness check failed: %v", err)
		return false
	}
	return latest != nil && latest.After(since)
}

// fanOutMentions notifies each mentioned user once. Unknown names are
// skipped; the write itself already succeeded.
func (s *Service) fanOutMentions(ctx context.Context, message store.ChatMessage) {
	if !s.cfg.NotifyOnWrite || len(message.Mentions) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(message.Mentions))
	for _, name := range message.Mentions {
		if _, done := seen[name]; done {
			continue
		}
		seen[name] = struct{}{}
		user, err := s.store.GetUserByDisplayName(ctx, name)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				log.Printf("mention lookup %q failed: %v", name, err)
			}
			continue
		}
		s.NotifyNewChatMessage(ctx, user.ID, message.ID, message.AuthorName)
	}
}

// extractMentions pulls @name tokens out of a message in order of
// appearance. Duplicates are preserved.
func extractMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	mentions := make([]string, 0, len(matches))
	for _, match := range matches {
		mentions = append(mentions, match[1])
	}
	return mentions
}

func chatPayloads(items []store.ChatMessage) []map[string]any {
	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, chatPayload(item))
	}
	return payloads
}

func chatPayload(message store.ChatMessage) map[string]any {
	payload := map[string]any{
		"id":         message.ID,
		"channel":    message.Channel,
		"authorId":   message.AuthorID,
		"authorName": message.AuthorName,
		"authorRole": message.AuthorRole,
		"content":    message.Content,
		"createdAt":  message.CreatedAt.UnixMilli(),
	}
	if message.Channel == ChannelOffice {
		payload["isPin"] = message.IsPin
		if message.SubjectID != "" {
			payload["subjectId"] = message.SubjectID
		}
		if len(message.Mentions) > 0 {
			payload["mentions"] = message.Mentions
		}
	}
	return payload
}
