package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"arthea/api/internal/export"
	"arthea/api/internal/store"
)

// ExportStore adapts the Postgres store to the export renderer's data needs.
type ExportStore struct {
	store *store.PostgresStore
}

func NewExportStore(dataStore *store.PostgresStore) *ExportStore {
	return &ExportStore{store: dataStore}
}

func (e *ExportStore) GetRound(ctx context.Context, roundID string) (export.RoundInfo, error) {
	round, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return export.RoundInfo{}, export.ErrContentUnavailable
		}
		return export.RoundInfo{}, fmt.Errorf("load round for export: %w", err)
	}
	return export.RoundInfo{
		ID:          round.ID,
		SubjectID:   round.SubjectID,
		RoundNumber: round.RoundNumber,
		Status:      round.Status,
		CreatedAt:   round.CreatedAt,
		ClosedAt:    round.ClosedAt,
	}, nil
}

func (e *ExportStore) ListRoundComments(ctx context.Context, roundID string) ([]export.CommentInfo, error) {
	comments, err := e.store.ListCommentsByRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("load comments for export: %w", err)
	}
	infos := make([]export.CommentInfo, 0, len(comments))
	for _, c := range comments {
		info := export.CommentInfo{
			AuthorName: c.AuthorName,
			AuthorType: c.AuthorType,
			Content:    c.Content,
			Status:     c.Status,
			Hidden:     c.IsHiddenFromTeam,
			SentToTeam: c.SentToTeam,
			CreatedAt:  c.CreatedAt,
		}
		if c.PositionX != nil && c.PositionY != nil {
			info.HasPin = true
			info.PinX = *c.PositionX
			info.PinY = *c.PositionY
		}
		infos = append(infos, info)
	}
	return infos, nil
}
