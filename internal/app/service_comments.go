package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"arthea/api/internal/search"
	"arthea/api/internal/store"
	"arthea/api/internal/util"
)

const maxCommentLength = 2000

type CreateCommentInput struct {
	RoundID     string   `json:"roundId"`
	SubjectID   string   `json:"subjectId"`
	VersionID   string   `json:"versionId"`
	AuthorType  string   `json:"authorType"`
	AuthorID    string   `json:"authorId"`
	AuthorName  string   `json:"authorName"`
	AuthorEmail string   `json:"authorEmail"`
	Content     string   `json:"content"`
	PositionX   *float64 `json:"positionX"`
	PositionY   *float64 `json:"positionY"`
}

// CreateDraft validates and stores a new draft comment on an open round.
func (s *Service) CreateDraft(ctx context.Context, input CreateCommentInput) (map[string]any, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if len(content) > maxCommentLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content exceeds maximum length", map[string]any{
			"max": maxCommentLength,
		})
	}
	if strings.TrimSpace(input.RoundID) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "roundId is required", nil)
	}
	if strings.TrimSpace(input.SubjectID) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "subjectId is required", nil)
	}

	authorType := strings.TrimSpace(input.AuthorType)
	switch authorType {
	case "client", "architect", "team":
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "authorType must be client, architect, or team", nil)
	}
	if authorType == "client" && strings.TrimSpace(input.AuthorName) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "authorName is required for client comments", nil)
	}

	// Each axis is optional on its own; whichever is present must be normalized.
	if input.PositionX != nil && (*input.PositionX < 0 || *input.PositionX > 1) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "positionX must be within [0,1]", nil)
	}
	if input.PositionY != nil && (*input.PositionY < 0 || *input.PositionY > 1) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "positionY must be within [0,1]", nil)
	}

	round, err := s.store.GetRound(ctx, input.RoundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "round not found", nil)
		}
		return nil, err
	}
	if round.Status != RoundOpen {
		return nil, domainError(http.StatusConflict, "INVALID_STATE", "round is not accepting comments", map[string]any{
			"status": round.Status,
		})
	}

	now := time.Now().UTC()
	comment := store.Comment{
		ID:          util.NewID("cmt"),
		RoundID:     input.RoundID,
		SubjectID:   input.SubjectID,
		VersionID:   strings.TrimSpace(input.VersionID),
		AuthorType:  authorType,
		AuthorID:    strings.TrimSpace(input.AuthorID),
		AuthorName:  strings.TrimSpace(input.AuthorName),
		AuthorEmail: strings.TrimSpace(input.AuthorEmail),
		Content:     content,
		PositionX:   input.PositionX,
		PositionY:   input.PositionY,
		Status:      "draft",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexComment(commentSearchRecord(comment))
	}

	return commentPayload(comment), nil
}

// SendToArchitect marks a batch of drafts as sent in one transaction.
// Re-sending an already-sent comment is a no-op that still bumps updated_at.
func (s *Service) SendToArchitect(ctx context.Context, commentIDs []string) (map[string]any, error) {
	if len(commentIDs) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "commentIds must not be empty", nil)
	}

	now := time.Now().UTC()
	if err := s.store.MarkCommentsSent(ctx, commentIDs, now); err != nil {
		return nil, err
	}

	s.notifyArchitectDigest(ctx, commentIDs)
	s.reindexComments(ctx, commentIDs)

	return map[string]any{
		"sent":   len(commentIDs),
		"sentAt": now.UnixMilli(),
	}, nil
}

// SendToTeam forwards a batch of sent comments to the production team.
func (s *Service) SendToTeam(ctx context.Context, commentIDs []string) (map[string]any, error) {
	if len(commentIDs) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "commentIds must not be empty", nil)
	}

	now := time.Now().UTC()
	if err := s.store.MarkCommentsSentToTeam(ctx, commentIDs, now); err != nil {
		return nil, err
	}

	s.reindexComments(ctx, commentIDs)

	return map[string]any{
		"sent":   len(commentIDs),
		"sentAt": now.UnixMilli(),
	}, nil
}

// HideComment removes a comment from every team-facing view.
func (s *Service) HideComment(ctx context.Context, commentID, actorID string) (map[string]any, error) {
	applied, err := s.store.HideComment(ctx, commentID, actorID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "comment not found", nil)
	}
	s.reindexComments(ctx, []string{commentID})
	return map[string]any{"hidden": true}, nil
}

func (s *Service) UnhideComment(ctx context.Context, commentID string) (map[string]any, error) {
	applied, err := s.store.UnhideComment(ctx, commentID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "comment not found", nil)
	}
	s.reindexComments(ctx, []string{commentID})
	return map[string]any{"hidden": false}, nil
}

// CommentsBySubject returns all comments for a subject, newest first.
func (s *Service) CommentsBySubject(ctx context.Context, subjectID string) ([]map[string]any, error) {
	items, err := s.store.ListCommentsBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return commentPayloads(items), nil
}

// DraftComments returns the client's unsent drafts, oldest first.
func (s *Service) DraftComments(ctx context.Context, subjectID string) ([]map[string]any, error) {
	items, err := s.store.ListDraftComments(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return commentPayloads(items), nil
}

// PendingForTeam returns sent comments awaiting architect triage.
func (s *Service) PendingForTeam(ctx context.Context, subjectID string) ([]map[string]any, error) {
	items, err := s.store.ListPendingForTeam(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return commentPayloads(items), nil
}

// VisibleForTeam returns forwarded, non-hidden comments for the team view.
func (s *Service) VisibleForTeam(ctx context.Context, subjectID string) ([]map[string]any, error) {
	items, err := s.store.ListVisibleForTeam(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return commentPayloads(items), nil
}

// notifyArchitectDigest tells the architect about a freshly sent batch, in-app
// and by mail when SMTP is configured. Problems never fail the send itself.
func (s *Service) notifyArchitectDigest(ctx context.Context, commentIDs []string) {
	if s.cfg.ArchitectEmail == "" {
		return
	}
	comment, err := s.store.GetComment(ctx, commentIDs[0])
	if err != nil {
		log.Printf("digest lookup failed: %v", err)
		return
	}

	if architect, err := s.store.GetUserByEmail(ctx, s.cfg.ArchitectEmail); err == nil {
		s.NotifyNewComment(ctx, architect.ID, comment.ID, comment.AuthorName)
	}

	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	reviewURL := s.cfg.CORSOrigin + "/projects/" + comment.SubjectID + "/review"
	if err := s.email.SendReviewDigestEmail(s.cfg.ArchitectEmail, "Architect", comment.SubjectID, len(commentIDs), reviewURL); err != nil {
		log.Printf("digest email failed: %v", err)
	}
}

// reindexComments pushes the current state of each comment to the search
// backend so visibility filters stay accurate.
func (s *Service) reindexComments(ctx context.Context, commentIDs []string) {
	if s.search == nil {
		return
	}
	for _, id := range commentIDs {
		comment, err := s.store.GetComment(ctx, id)
		if err != nil {
			log.Printf("reindex lookup %s failed: %v", id, err)
			continue
		}
		s.search.IndexComment(commentSearchRecord(comment))
	}
}

func commentSearchRecord(comment store.Comment) search.CommentRecord {
	return search.CommentRecord{
		ID:         comment.ID,
		Content:    comment.Content,
		AuthorName: comment.AuthorName,
		SubjectID:  comment.SubjectID,
		RoundID:    comment.RoundID,
		Status:     comment.Status,
		TeamSafe:   comment.SentToTeam && !comment.IsHiddenFromTeam,
	}
}

func commentPayloads(items []store.Comment) []map[string]any {
	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, commentPayload(item))
	}
	return payloads
}

func commentPayload(comment store.Comment) map[string]any {
	payload := map[string]any{
		"id":               comment.ID,
		"roundId":          comment.RoundID,
		"subjectId":        comment.SubjectID,
		"authorType":       comment.AuthorType,
		"authorName":       comment.AuthorName,
		"content":          comment.Content,
		"status":           comment.Status,
		"isHiddenFromTeam": comment.IsHiddenFromTeam,
		"sentToTeam":       comment.SentToTeam,
		"createdAt":        comment.CreatedAt.UnixMilli(),
		"updatedAt":        comment.UpdatedAt.UnixMilli(),
	}
	if comment.VersionID != "" {
		payload["versionId"] = comment.VersionID
	}
	if comment.AuthorID != "" {
		payload["authorId"] = comment.AuthorID
	}
	if comment.AuthorEmail != "" {
		payload["authorEmail"] = comment.AuthorEmail
	}
	if comment.PositionX != nil {
		payload["positionX"] = *comment.PositionX
	}
	if comment.PositionY != nil {
		payload["positionY"] = *comment.PositionY
	}
	if comment.HiddenBy != "" {
		payload["hiddenBy"] = comment.HiddenBy
	}
	if comment.HiddenAt != nil {
		payload["hiddenAt"] = comment.HiddenAt.UnixMilli()
	}
	if comment.SentToTeamAt != nil {
		payload["sentToTeamAt"] = comment.SentToTeamAt.UnixMilli()
	}
	return payload
}
