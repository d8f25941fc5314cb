package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Round is one bounded review cycle for a subject (a visual draft).
// Status moves open -> frozen -> closed; closed is terminal.
type Round struct {
	ID          string
	SubjectID   string
	RoundNumber int
	Status      string
	CreatedAt   time.Time
	FrozenAt    *time.Time
	ClosedAt    *time.Time
}

// Comment is a pinned annotation on a subject version. Visibility to the
// production team is derived from status, sent_to_team and is_hidden_from_team,
// never stored as its own column.
type Comment struct {
	ID               string
	RoundID          string
	SubjectID        string
	VersionID        string
	AuthorType       string
	AuthorID         string
	AuthorName       string
	AuthorEmail      string
	Content          string
	PositionX        *float64
	PositionY        *float64
	Status           string
	IsHiddenFromTeam bool
	HiddenBy         string
	HiddenAt         *time.Time
	SentToTeam       bool
	SentToTeamAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ChatMessage is an append-only entry in the client_architect or office channel.
// SubjectID, Mentions and IsPin are office-only fields.
type ChatMessage struct {
	ID         string
	Channel    string
	SubjectID  string
	AuthorID   string
	AuthorName string
	AuthorRole string
	Content    string
	Mentions   []string
	IsPin      bool
	CreatedAt  time.Time
}

type Notification struct {
	ID        string
	UserID    string
	Type      string
	TargetID  string
	Content   string
	IsRead    bool
	CreatedAt time.Time
}
