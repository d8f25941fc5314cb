// Package export renders review round reports as PDF.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	RoundID       string
	Format        Format
	IncludeHidden bool // architect view includes hidden comments
}

// RoundInfo holds round metadata for the report header
type RoundInfo struct {
	ID          string
	SubjectID   string
	RoundNumber int
	Status      string
	CreatedAt   time.Time
	ClosedAt    *time.Time
}

// CommentInfo holds a single comment for the report body
type CommentInfo struct {
	AuthorName string
	AuthorType string
	Content    string
	Status     string
	Hidden     bool
	SentToTeam bool
	HasPin     bool
	PinX       float64
	PinY       float64
	CreatedAt  time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates round data could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
