package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across comments and chat_messages using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultComment {
		where := "c.search_tsv @@ " + tsQuery
		if q.FilterSubjectID != "" {
			where += fmt.Sprintf(" AND c.subject_id = $%d", argN)
			args = append(args, q.FilterSubjectID)
			argN++
		}
		if q.TeamView {
			where += " AND c.sent_to_team AND NOT c.is_hidden_from_team"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, COALESCE(c.author_name, '') AS title,
				ts_headline('simple', coalesce(c.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.subject_id, ''::text AS channel,
				ts_rank(c.search_tsv, %s) AS rank
			FROM comments c
			WHERE %s`, tsQuery, tsQuery, where))
	}

	if q.FilterType == "" || q.FilterType == ResultChat {
		where := "m.search_tsv @@ " + tsQuery
		if q.FilterSubjectID != "" {
			where += fmt.Sprintf(" AND m.subject_id = $%d", argN)
			args = append(args, q.FilterSubjectID)
			argN++
		}
		if q.TeamView {
			where += " AND m.channel = 'office'"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'chat'::text AS type, m.id, m.author_name AS title,
				ts_headline('simple', coalesce(m.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				COALESCE(m.subject_id, '') AS subject_id, m.channel,
				ts_rank(m.search_tsv, %s) AS rank
			FROM chat_messages m
			WHERE %s`, tsQuery, tsQuery, where))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, subject_id, channel
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.SubjectID, &r.Channel); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CommentRecord, []ChatRecord, error) {
	commentRows, err := p.db.QueryContext(ctx, `
		SELECT id, content, COALESCE(author_name, ''), subject_id, round_id, status,
			(sent_to_team AND NOT is_hidden_from_team)
		FROM comments
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load comments: %w", err)
	}
	defer commentRows.Close()

	comments := make([]CommentRecord, 0)
	for commentRows.Next() {
		var c CommentRecord
		if err := commentRows.Scan(&c.ID, &c.Content, &c.AuthorName, &c.SubjectID, &c.RoundID, &c.Status, &c.TeamSafe); err != nil {
			return nil, nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := commentRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate comments: %w", err)
	}

	chatRows, err := p.db.QueryContext(ctx, `
		SELECT id, content, author_name, channel, COALESCE(subject_id, '')
		FROM chat_messages
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load chat messages: %w", err)
	}
	defer chatRows.Close()

	messages := make([]ChatRecord, 0)
	for chatRows.Next() {
		var m ChatRecord
		if err := chatRows.Scan(&m.ID, &m.Content, &m.AuthorName, &m.Channel, &m.SubjectID); err != nil {
			return nil, nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := chatRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	return comments, messages, nil
}
