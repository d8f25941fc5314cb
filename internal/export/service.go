package export

import (
	"context"
	"fmt"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetRound(ctx context.Context, roundID string) (RoundInfo, error)
	ListRoundComments(ctx context.Context, roundID string) ([]CommentInfo, error)
}

// Service provides round report export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	round, err := s.store.GetRound(ctx, req.RoundID)
	if err != nil {
		return nil, fmt.Errorf("get round: %w", err)
	}

	comments, err := s.store.ListRoundComments(ctx, req.RoundID)
	if err != nil {
		return nil, fmt.Errorf("list round comments: %w", err)
	}

	data := buildTemplateData(round, comments, req.IncludeHidden)

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF, "":
		title := fmt.Sprintf("%s round %d", round.SubjectID, round.RoundNumber)
		return exportPDF(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func buildTemplateData(round RoundInfo, comments []CommentInfo, includeHidden bool) TemplateData {
	data := TemplateData{
		SubjectID:   round.SubjectID,
		RoundNumber: round.RoundNumber,
		Status:      round.Status,
		CreatedAt:   round.CreatedAt,
		Comments:    []TemplateComment{},
	}
	if round.ClosedAt != nil {
		data.ClosedAt = *round.ClosedAt
		data.IsClosed = true
	}

	for _, c := range comments {
		if c.Hidden && !includeHidden {
			continue
		}
		item := TemplateComment{
			AuthorName: c.AuthorName,
			AuthorType: c.AuthorType,
			Content:    c.Content,
			Status:     c.Status,
			Hidden:     c.Hidden,
			SentToTeam: c.SentToTeam,
			CreatedAt:  c.CreatedAt,
		}
		if c.HasPin {
			item.PinLabel = fmt.Sprintf("pin %.0f%% / %.0f%%", c.PinX*100, c.PinY*100)
		}
		data.Comments = append(data.Comments, item)
	}
	return data
}
