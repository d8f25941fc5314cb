package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultComment ResultType = "comment"
	ResultChat    ResultType = "chat"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	SubjectID string     `json:"subjectId"`
	Channel   string     `json:"channel,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text            string
	FilterType      ResultType // empty = all types
	FilterSubjectID string
	Limit           int
	Offset          int
	TeamView        bool // restrict to what team members may see
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexComment(c CommentRecord) error
	IndexChatMessage(m ChatRecord) error
	DeleteComment(id string) error
}

// CommentRecord is the data we index for a review comment.
type CommentRecord struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	AuthorName string `json:"authorName"`
	SubjectID  string `json:"subjectId"`
	RoundID    string `json:"roundId"`
	Status     string `json:"status"`
	TeamSafe   bool   `json:"teamSafe"` // forwarded and not hidden
}

// ChatRecord is the data we index for a chat message.
type ChatRecord struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	AuthorName string `json:"authorName"`
	Channel    string `json:"channel"`
	SubjectID  string `json:"subjectId"`
}
