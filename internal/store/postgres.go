package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Rounds ---

func (s *PostgresStore) InsertRound(ctx context.Context, round Round) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds (id, subject_id, round_number, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, round.ID, round.SubjectID, round.RoundNumber, round.Status, round.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRound(ctx context.Context, roundID string) (Round, error) {
	var item Round
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, round_number, status, created_at, frozen_at, closed_at
		FROM rounds
		WHERE id=$1
	`, roundID).Scan(
		&item.ID,
		&item.SubjectID,
		&item.RoundNumber,
		&item.Status,
		&item.CreatedAt,
		&item.FrozenAt,
		&item.ClosedAt,
	)
	if err != nil {
		return Round{}, err
	}
	return item, nil
}

// LatestRound returns the round with the highest number for a subject
// regardless of status, or nil when the subject has no rounds yet.
func (s *PostgresStore) LatestRound(ctx context.Context, subjectID string) (*Round, error) {
	const query = `
		SELECT id, subject_id, round_number, status, created_at, frozen_at, closed_at
		FROM rounds
		WHERE subject_id=$1
		ORDER BY round_number DESC
		LIMIT 1
	`
	var item Round
	err := s.db.QueryRowContext(ctx, query, subjectID).Scan(
		&item.ID,
		&item.SubjectID,
		&item.RoundNumber,
		&item.Status,
		&item.CreatedAt,
		&item.FrozenAt,
		&item.ClosedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest round: %w", err)
	}
	return &item, nil
}

// ActiveRound returns the most recent non-closed round for a subject, or nil.
func (s *PostgresStore) ActiveRound(ctx context.Context, subjectID string) (*Round, error) {
	const query = `
		SELECT id, subject_id, round_number, status, created_at, frozen_at, closed_at
		FROM rounds
		WHERE subject_id=$1 AND status <> 'closed'
		ORDER BY round_number DESC
		LIMIT 1
	`
	var item Round
	err := s.db.QueryRowContext(ctx, query, subjectID).Scan(
		&item.ID,
		&item.SubjectID,
		&item.RoundNumber,
		&item.Status,
		&item.CreatedAt,
		&item.FrozenAt,
		&item.ClosedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active round: %w", err)
	}
	return &item, nil
}

// FreezeRound transitions a round from open to frozen. Returns false when the
// round was not open (the WHERE clause makes concurrent freezes single-shot).
func (s *PostgresStore) FreezeRound(ctx context.Context, roundID string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE rounds
		SET status='frozen', frozen_at=$2
		WHERE id=$1 AND status='open'
	`, roundID, at)
	if err != nil {
		return false, fmt.Errorf("freeze round: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("freeze round rows: %w", err)
	}
	return affected > 0, nil
}

// CloseRound transitions a round to closed from open or frozen.
func (s *PostgresStore) CloseRound(ctx context.Context, roundID string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE rounds
		SET status='closed', closed_at=$2
		WHERE id=$1 AND status <> 'closed'
	`, roundID, at)
	if err != nil {
		return false, fmt.Errorf("close round: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close round rows: %w", err)
	}
	return affected > 0, nil
}

// --- Comments ---

const commentColumns = `
	id, round_id, subject_id, COALESCE(version_id, ''),
	author_type, COALESCE(author_id, ''), COALESCE(author_name, ''), COALESCE(author_email, ''),
	content, position_x, position_y,
	status, is_hidden_from_team, COALESCE(hidden_by, ''), hidden_at,
	sent_to_team, sent_to_team_at, created_at, updated_at
`

func scanComment(row interface{ Scan(...any) error }) (Comment, error) {
	var item Comment
	err := row.Scan(
		&item.ID,
		&item.RoundID,
		&item.SubjectID,
		&item.VersionID,
		&item.AuthorType,
		&item.AuthorID,
		&item.AuthorName,
		&item.AuthorEmail,
		&item.Content,
		&item.PositionX,
		&item.PositionY,
		&item.Status,
		&item.IsHiddenFromTeam,
		&item.HiddenBy,
		&item.HiddenAt,
		&item.SentToTeam,
		&item.SentToTeamAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (
			id, round_id, subject_id, version_id,
			author_type, author_id, author_name, author_email,
			content, position_x, position_y,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, NULLIF($4, ''),
			$5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
			$9, $10, $11,
			$12, $13, $14
		)
	`,
		comment.ID, comment.RoundID, comment.SubjectID, comment.VersionID,
		comment.AuthorType, comment.AuthorID, comment.AuthorName, comment.AuthorEmail,
		comment.Content, comment.PositionX, comment.PositionY,
		comment.Status, comment.CreatedAt, comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, commentID)
	return scanComment(row)
}

func (s *PostgresStore) listComments(ctx context.Context, query string, args ...any) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListCommentsBySubject(ctx context.Context, subjectID string) ([]Comment, error) {
	return s.listComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE subject_id=$1
		ORDER BY created_at DESC
	`, subjectID)
}

func (s *PostgresStore) ListCommentsByRound(ctx context.Context, roundID string) ([]Comment, error) {
	return s.listComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE round_id=$1
		ORDER BY created_at ASC
	`, roundID)
}

// ListDraftComments returns unsent client drafts, oldest first.
func (s *PostgresStore) ListDraftComments(ctx context.Context, subjectID string) ([]Comment, error) {
	return s.listComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE subject_id=$1 AND status='draft' AND author_type='client'
		ORDER BY created_at ASC
	`, subjectID)
}

// ListPendingForTeam returns sent comments the architect has not yet forwarded
// and has not hidden, oldest first for triage order.
func (s *PostgresStore) ListPendingForTeam(ctx context.Context, subjectID string) ([]Comment, error) {
	return s.listComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE subject_id=$1
		  AND status='sent'
		  AND sent_to_team=FALSE
		  AND is_hidden_from_team=FALSE
		ORDER BY created_at ASC
	`, subjectID)
}

// ListVisibleForTeam returns forwarded, non-hidden comments, newest first.
func (s *PostgresStore) ListVisibleForTeam(ctx context.Context, subjectID string) ([]Comment, error) {
	return s.listComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE subject_id=$1
		  AND sent_to_team=TRUE
		  AND is_hidden_from_team=FALSE
		ORDER BY created_at DESC
	`, subjectID)
}

// MarkCommentsSent flips every listed comment to sent inside one transaction so
// concurrent readers never observe a partial batch.
func (s *PostgresStore) MarkCommentsSent(ctx context.Context, commentIDs []string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin send tx: %w", err)
	}
	for _, commentID := range commentIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE comments
			SET status='sent', updated_at=$2
			WHERE id=$1
		`, commentID, at); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("mark comment sent: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit send tx: %w", err)
	}
	return nil
}

// MarkCommentsSentToTeam forwards every listed comment to the team atomically.
func (s *PostgresStore) MarkCommentsSentToTeam(ctx context.Context, commentIDs []string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forward tx: %w", err)
	}
	for _, commentID := range commentIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE comments
			SET sent_to_team=TRUE, sent_to_team_at=$2, updated_at=$2
			WHERE id=$1
		`, commentID, at); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("mark comment sent to team: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit forward tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) HideComment(ctx context.Context, commentID, actorID string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET is_hidden_from_team=TRUE, hidden_by=$2, hidden_at=$3, updated_at=$3
		WHERE id=$1
	`, commentID, actorID, at)
	if err != nil {
		return false, fmt.Errorf("hide comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("hide comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UnhideComment(ctx context.Context, commentID string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET is_hidden_from_team=FALSE, hidden_by=NULL, hidden_at=NULL, updated_at=$2
		WHERE id=$1
	`, commentID, at)
	if err != nil {
		return false, fmt.Errorf("unhide comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unhide comment rows: %w", err)
	}
	return affected > 0, nil
}

// --- Chat messages ---

func (s *PostgresStore) InsertChatMessage(ctx context.Context, message ChatMessage) error {
	var mentions any
	if len(message.Mentions) > 0 {
		encoded, err := json.Marshal(message.Mentions)
		if err != nil {
			return fmt.Errorf("marshal mentions: %w", err)
		}
		mentions = string(encoded)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (
			id, channel, subject_id,
			author_id, author_name, author_role,
			content, mentions, is_pin, created_at
		) VALUES (
			$1, $2, NULLIF($3, ''),
			$4, $5, $6,
			$7, $8::jsonb, $9, $10
		)
	`,
		message.ID, message.Channel, message.SubjectID,
		message.AuthorID, message.AuthorName, message.AuthorRole,
		message.Content, mentions, message.IsPin, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *PostgresStore) listChatMessages(ctx context.Context, query string, args ...any) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	items := make([]ChatMessage, 0)
	for rows.Next() {
		var item ChatMessage
		var mentionsRaw []byte
		if err := rows.Scan(
			&item.ID,
			&item.Channel,
			&item.SubjectID,
			&item.AuthorID,
			&item.AuthorName,
			&item.AuthorRole,
			&item.Content,
			&mentionsRaw,
			&item.IsPin,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if len(mentionsRaw) > 0 {
			_ = json.Unmarshal(mentionsRaw, &item.Mentions)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return items, nil
}

const chatColumns = `
	id, channel, COALESCE(subject_id, ''),
	author_id, author_name, author_role,
	content, mentions, is_pin, created_at
`

func (s *PostgresStore) ListChatMessages(ctx context.Context, channel string, limit, offset int) ([]ChatMessage, error) {
	return s.listChatMessages(ctx, `
		SELECT `+chatColumns+`
		FROM chat_messages
		WHERE channel=$1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, channel, limit, offset)
}

func (s *PostgresStore) ListPinnedMessages(ctx context.Context, subjectID string) ([]ChatMessage, error) {
	return s.listChatMessages(ctx, `
		SELECT `+chatColumns+`
		FROM chat_messages
		WHERE channel='office' AND subject_id=$1 AND is_pin=TRUE
		ORDER BY created_at DESC
	`, subjectID)
}

// LatestChatMessageAt returns the newest message timestamp in a channel, or nil
// when the channel is empty. Used by the poll loop's new-data check.
func (s *PostgresStore) LatestChatMessageAt(ctx context.Context, channel string) (*time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM chat_messages
		WHERE channel=$1
		ORDER BY created_at DESC
		LIMIT 1
	`, channel).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest chat message: %w", err)
	}
	return &at, nil
}

// --- Notifications ---

func (s *PostgresStore) InsertNotification(ctx context.Context, notification Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, target_id, content, is_read, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, FALSE, $6)
	`, notification.ID, notification.UserID, notification.Type, notification.TargetID, notification.Content, notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotificationsSince returns notifications created strictly after since,
// newest first, capped at limit.
func (s *PostgresStore) ListNotificationsSince(ctx context.Context, userID string, since time.Time, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, COALESCE(target_id, ''), content, is_read, created_at
		FROM notifications
		WHERE user_id=$1 AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Type,
			&item.TargetID,
			&item.Content,
			&item.IsRead,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1`, notificationID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
