package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"arthea/api/internal/store"
	"arthea/api/internal/util"
)

const (
	RoundOpen   = "open"
	RoundFrozen = "frozen"
	RoundClosed = "closed"
)

// CreateRound opens a new review round for a subject. Fails with a conflict
// while an earlier round is still open or frozen. Round numbers are strictly
// increasing across the subject's whole history, including closed rounds.
func (s *Service) CreateRound(ctx context.Context, subjectID string) (map[string]any, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "subjectId is required", nil)
	}

	active, err := s.store.ActiveRound(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, domainError(http.StatusConflict, "CONFLICT", "subject already has an active round", map[string]any{
			"activeRoundId": active.ID,
			"status":        active.Status,
		})
	}

	number := 1
	latest, err := s.store.LatestRound(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		number = latest.RoundNumber + 1
	}

	round := store.Round{
		ID:          util.NewID("rnd"),
		SubjectID:   subjectID,
		RoundNumber: number,
		Status:      RoundOpen,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.InsertRound(ctx, round); err != nil {
		return nil, err
	}

	return roundPayload(round), nil
}

// FreezeRound transitions open → frozen.
func (s *Service) FreezeRound(ctx context.Context, roundID string) (map[string]any, error) {
	round, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "round not found", nil)
		}
		return nil, err
	}

	now := time.Now().UTC()
	applied, err := s.store.FreezeRound(ctx, roundID, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domainError(http.StatusConflict, "INVALID_STATE", "round can only be frozen while open", map[string]any{
			"status": round.Status,
		})
	}

	round.Status = RoundFrozen
	round.FrozenAt = &now
	s.notifyRoundAuthors(ctx, roundID)
	return roundPayload(round), nil
}

// notifyRoundAuthors tells everyone who commented on a round that it froze.
func (s *Service) notifyRoundAuthors(ctx context.Context, roundID string) {
	if !s.cfg.NotifyOnWrite {
		return
	}
	comments, err := s.store.ListCommentsByRound(ctx, roundID)
	if err != nil {
		log.Printf("freeze notification lookup failed: %v", err)
		return
	}
	seen := make(map[string]struct{}, len(comments))
	for _, comment := range comments {
		if comment.AuthorID == "" {
			continue
		}
		if _, done := seen[comment.AuthorID]; done {
			continue
		}
		seen[comment.AuthorID] = struct{}{}
		s.NotifyRoundFrozen(ctx, comment.AuthorID, roundID)
	}
}

// CloseRound transitions open or frozen → closed. Closed is terminal.
func (s *Service) CloseRound(ctx context.Context, roundID string) (map[string]any, error) {
	round, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "round not found", nil)
		}
		return nil, err
	}

	now := time.Now().UTC()
	applied, err := s.store.CloseRound(ctx, roundID, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domainError(http.StatusConflict, "INVALID_STATE", "round is already closed", nil)
	}

	round.Status = RoundClosed
	round.ClosedAt = &now
	return roundPayload(round), nil
}

// ActiveRound returns the subject's open or frozen round, or nil when every
// round is closed.
func (s *Service) ActiveRound(ctx context.Context, subjectID string) (map[string]any, error) {
	round, err := s.store.ActiveRound(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, nil
	}
	return roundPayload(*round), nil
}

// GetRound returns a single round by id.
func (s *Service) GetRound(ctx context.Context, roundID string) (map[string]any, error) {
	round, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "round not found", nil)
		}
		return nil, err
	}
	return roundPayload(round), nil
}

// RoundStatus is a check-only helper: it collapses every failure to "".
func (s *Service) RoundStatus(ctx context.Context, roundID string) string {
	round, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("round status check failed for %s: %v", roundID, err)
		}
		return ""
	}
	return round.Status
}

// CanAcceptComments reports whether a round is open. Storage errors gate to
// false rather than propagate; this feeds validation, not the write path.
func (s *Service) CanAcceptComments(ctx context.Context, roundID string) bool {
	return s.RoundStatus(ctx, roundID) == RoundOpen
}

func roundPayload(round store.Round) map[string]any {
	payload := map[string]any{
		"id":          round.ID,
		"subjectId":   round.SubjectID,
		"roundNumber": round.RoundNumber,
		"status":      round.Status,
		"createdAt":   round.CreatedAt.UnixMilli(),
	}
	if round.FrozenAt != nil {
		payload["frozenAt"] = round.FrozenAt.UnixMilli()
	}
	if round.ClosedAt != nil {
		payload["closedAt"] = round.ClosedAt.UnixMilli()
	}
	return payload
}
