package app

import (
	"context"
	"database/sql"
	"time"

	"arthea/api/internal/config"
	"arthea/api/internal/store"
)

type fakeStore struct {
	insertRoundFn            func(context.Context, store.Round) error
	getRoundFn               func(context.Context, string) (store.Round, error)
	latestRoundFn            func(context.Context, string) (*store.Round, error)
	activeRoundFn            func(context.Context, string) (*store.Round, error)
	freezeRoundFn            func(context.Context, string, time.Time) (bool, error)
	closeRoundFn             func(context.Context, string, time.Time) (bool, error)
	insertCommentFn          func(context.Context, store.Comment) error
	getCommentFn             func(context.Context, string) (store.Comment, error)
	listCommentsBySubjectFn  func(context.Context, string) ([]store.Comment, error)
	listCommentsByRoundFn    func(context.Context, string) ([]store.Comment, error)
	listDraftCommentsFn      func(context.Context, string) ([]store.Comment, error)
	listPendingForTeamFn     func(context.Context, string) ([]store.Comment, error)
	listVisibleForTeamFn     func(context.Context, string) ([]store.Comment, error)
	markCommentsSentFn       func(context.Context, []string, time.Time) error
	markCommentsSentToTeamFn func(context.Context, []string, time.Time) error
	hideCommentFn            func(context.Context, string, string, time.Time) (bool, error)
	unhideCommentFn          func(context.Context, string, time.Time) (bool, error)
	insertChatMessageFn      func(context.Context, store.ChatMessage) error
	listChatMessagesFn       func(context.Context, string, int, int) ([]store.ChatMessage, error)
	listPinnedMessagesFn     func(context.Context, string) ([]store.ChatMessage, error)
	latestChatMessageAtFn    func(context.Context, string) (*time.Time, error)
	insertNotificationFn     func(context.Context, store.Notification) error
	listNotificationsFn      func(context.Context, string, time.Time, int) ([]store.Notification, error)
	markNotificationReadFn   func(context.Context, string) error
	ensureUserByNameFn       func(context.Context, string) (store.User, error)
	getUserByIDFn            func(context.Context, string) (store.User, error)
	getUserByDisplayNameFn   func(context.Context, string) (store.User, error)
	lookupRefreshSessionFn   func(context.Context, string) (store.User, error)
}

func (f *fakeStore) InsertRound(ctx context.Context, round store.Round) error {
	if f.insertRoundFn != nil {
		return f.insertRoundFn(ctx, round)
	}
	return nil
}

func (f *fakeStore) GetRound(ctx context.Context, id string) (store.Round, error) {
	if f.getRoundFn != nil {
		return f.getRoundFn(ctx, id)
	}
	return store.Round{ID: id, Status: "open"}, nil
}

func (f *fakeStore) LatestRound(ctx context.Context, subjectID string) (*store.Round, error) {
	if f.latestRoundFn != nil {
		return f.latestRoundFn(ctx, subjectID)
	}
	return nil, nil
}

func (f *fakeStore) ActiveRound(ctx context.Context, subjectID string) (*store.Round, error) {
	if f.activeRoundFn != nil {
		return f.activeRoundFn(ctx, subjectID)
	}
	return nil, nil
}

func (f *fakeStore) FreezeRound(ctx context.Context, id string, at time.Time) (bool, error) {
	if f.freezeRoundFn != nil {
		return f.freezeRoundFn(ctx, id, at)
	}
	return true, nil
}

func (f *fakeStore) CloseRound(ctx context.Context, id string, at time.Time) (bool, error) {
	if f.closeRoundFn != nil {
		return f.closeRoundFn(ctx, id, at)
	}
	return true, nil
}

func (f *fakeStore) InsertComment(ctx context.Context, comment store.Comment) error {
	if f.insertCommentFn != nil {
		return f.insertCommentFn(ctx, comment)
	}
	return nil
}

func (f *fakeStore) GetComment(ctx context.Context, id string) (store.Comment, error) {
	if f.getCommentFn != nil {
		return f.getCommentFn(ctx, id)
	}
	return store.Comment{ID: id}, nil
}

func (f *fakeStore) ListCommentsBySubject(ctx context.Context, subjectID string) ([]store.Comment, error) {
	if f.listCommentsBySubjectFn != nil {
		return f.listCommentsBySubjectFn(ctx, subjectID)
	}
	return nil, nil
}

func (f *fakeStore) ListCommentsByRound(ctx context.Context, roundID string) ([]store.Comment, error) {
	if f.listCommentsByRoundFn != nil {
		return f.listCommentsByRoundFn(ctx, roundID)
	}
	return nil, nil
}

func (f *fakeStore) ListDraftComments(ctx context.Context, subjectID string) ([]store.Comment, error) {
	if f.listDraftCommentsFn != nil {
		return f.listDraftCommentsFn(ctx, subjectID)
	}
	return nil, nil
}

func (f *fakeStore) ListPendingForTeam(ctx context.Context, subjectID string) ([]store.Comment, error) {
	if f.listPendingForTeamFn != nil {
		return f.listPendingForTeamFn(ctx, subjectID)
	}
	return nil, nil
}

func (f *fakeStore) ListVisibleForTeam(ctx context.Context, subjectID string) ([]store.Comment, error) {
	if f.listVisibleForTeamFn != nil {
		return f.listVisibleForTeamFn(ctx, subjectID)
	}
	return nil, nil
}

func (f *fakeStore) MarkCommentsSent(ctx context.Context, ids []string, at time.Time) error {
	if f.markCommentsSentFn != nil {
		return f.markCommentsSentFn(ctx, ids, at)
	}
	return nil
}

func (f *fakeStore) MarkCommentsSentToTeam(ctx context.Context, ids []string, at time.Time) error {
	if f.markCommentsSentToTeamFn != nil {
		return f.markCommentsSentToTeamFn(ctx, ids, at)
	}
	return nil
}

func (f *fakeStore) HideComment(ctx context.Context, id, actorID string, at time.Time) (bool, error) {
	if f.hideCommentFn != nil {
		return f.hideCommentFn(ctx, id, actorID, at)
	}
	return true, nil
}

func (f *fakeStore) UnhideComment(ctx context.Context, id string, at time.Time) (bool, error) {
	if f.unhideCommentFn != nil {
		return f.unhideCommentFn(ctx, id, at)
	}
	return true, nil
}

func (f *fakeStore) InsertChatMessage(ctx context.Context, message store.ChatMessage) error {
	if f.insertChatMessageFn != nil {
		return f.insertChatMessageFn(ctx, message)
	}
	return nil
}

func (f *fakeStore) ListChatMessages(ctx context.Context, channel string, limit, offset int) ([]store.ChatMessage, error) {
	if f.listChatMessagesFn != nil {
		return f.listChatMessagesFn(ctx, channel, limit, offset)
	}
	return nil, nil
}

func (f *fakeStore) ListPinnedMessages(ctx context.Context, subjectID string) ([]store.ChatMessage, error) {
	if f.listPinnedMessagesFn != nil {
		return f.listPinnedMessagesFn(ctx, subjectID)
	}
	return nil, nil
}

func (f *fakeStore) LatestChatMessageAt(ctx context.Context, channel string) (*time.Time, error) {
	if f.latestChatMessageAtFn != nil {
		return f.latestChatMessageAtFn(ctx, channel)
	}
	return nil, nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, notification store.Notification) error {
	if f.insertNotificationFn != nil {
		return f.insertNotificationFn(ctx, notification)
	}
	return nil
}

func (f *fakeStore) ListNotificationsSince(ctx context.Context, userID string, since time.Time, limit int) ([]store.Notification, error) {
	if f.listNotificationsFn != nil {
		return f.listNotificationsFn(ctx, userID, since, limit)
	}
	return nil, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, id string) error {
	if f.markNotificationReadFn != nil {
		return f.markNotificationReadFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) EnsureUserByName(ctx context.Context, name string) (store.User, error) {
	if f.ensureUserByNameFn != nil {
		return f.ensureUserByNameFn(ctx, name)
	}
	return store.User{ID: "usr_test", DisplayName: name, Role: "client"}, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{ID: id, DisplayName: "Test User", Role: "architect"}, nil
}

func (f *fakeStore) GetUserByDisplayName(ctx context.Context, name string) (store.User, error) {
	if f.getUserByDisplayNameFn != nil {
		return f.getUserByDisplayNameFn(ctx, name)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByEmail(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) SaveRefreshSession(context.Context, string, string, time.Time) error {
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, hash string) (store.User, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, hash)
	}
	return store.User{ID: "usr_test"}, nil
}

func (f *fakeStore) RevokeRefreshSession(context.Context, string) error { return nil }

func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }

func (f *fakeStore) IsAccessTokenRevoked(context.Context, string) (bool, error) { return false, nil }

func (f *fakeStore) Ping(context.Context) error { return nil }

func testConfig() config.Config {
	return config.Config{
		JWTSecret:    "test-secret",
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   30 * 24 * time.Hour,
		PollTimeout:  200 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	}
}

func newTestService(f *fakeStore) *Service {
	return &Service{cfg: testConfig(), store: f, sessions: f}
}
