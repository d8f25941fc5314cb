package app

import (
	"context"
	"strings"
	"time"

	"arthea/api/internal/auth"
	"arthea/api/internal/authpw"
	"arthea/api/internal/config"
	"arthea/api/internal/email"
	"arthea/api/internal/export"
	"arthea/api/internal/rbac"
	"arthea/api/internal/search"
	"arthea/api/internal/store"
	"arthea/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	InsertRound(context.Context, store.Round) error
	GetRound(context.Context, string) (store.Round, error)
	LatestRound(context.Context, string) (*store.Round, error)
	ActiveRound(context.Context, string) (*store.Round, error)
	FreezeRound(context.Context, string, time.Time) (bool, error)
	CloseRound(context.Context, string, time.Time) (bool, error)

	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	ListCommentsBySubject(context.Context, string) ([]store.Comment, error)
	ListCommentsByRound(context.Context, string) ([]store.Comment, error)
	ListDraftComments(context.Context, string) ([]store.Comment, error)
	ListPendingForTeam(context.Context, string) ([]store.Comment, error)
	ListVisibleForTeam(context.Context, string) ([]store.Comment, error)
	MarkCommentsSent(context.Context, []string, time.Time) error
	MarkCommentsSentToTeam(context.Context, []string, time.Time) error
	HideComment(context.Context, string, string, time.Time) (bool, error)
	UnhideComment(context.Context, string, time.Time) (bool, error)

	InsertChatMessage(context.Context, store.ChatMessage) error
	ListChatMessages(context.Context, string, int, int) ([]store.ChatMessage, error)
	ListPinnedMessages(context.Context, string) ([]store.ChatMessage, error)
	LatestChatMessageAt(context.Context, string) (*time.Time, error)

	InsertNotification(context.Context, store.Notification) error
	ListNotificationsSince(context.Context, string, time.Time, int) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string) error

	EnsureUserByName(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByDisplayName(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	Ping(ctx context.Context) error
}

// sessionStore is the refresh token backend. The Postgres store satisfies it
// directly; Redis can be swapped in via NewWithSessionStore.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	search   *search.Service
	authpw   *authpw.Service
	email    *email.Service
	export   *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		search:   searchService,
	}
}

// NewWithSessionStore uses a dedicated backend (Redis) for refresh tokens.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, searchService *search.Service) *Service {
	service := New(cfg, dataStore, searchService)
	service.sessions = sessions
	return service
}

// SetAuthPassword wires the email/password auth service.
func (s *Service) SetAuthPassword(svc *authpw.Service) {
	s.authpw = svc
}

// SetEmail wires the SMTP sender used for verification and digest mail.
func (s *Service) SetEmail(svc *email.Service) {
	s.email = svc
}

// SetExport wires the round report exporter.
func (s *Service) SetExport(svc *export.Service) {
	s.export = svc
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) ExportService() *export.Service {
	return s.export
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Login is the name-only client entry flow: the user is created on first
// sight with the client role.
func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "Guest"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(ctx, user)
}

// CreateSession issues tokens for an already-authenticated user id.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// Re-read the user row so role changes take effect on refresh. The Redis
	// backend only stores the user id.
	user, err = s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// Search runs a full-text query over comments and office chat.
func (s *Service) Search(ctx context.Context, text, filterType, subjectID string, limit, offset int, teamView bool) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:            text,
		FilterType:      search.ResultType(filterType),
		FilterSubjectID: subjectID,
		Limit:           limit,
		Offset:          offset,
		TeamView:        teamView,
	}), nil
}
