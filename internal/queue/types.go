// Package queue holds the locally cached view of the remote moderation queue
// and the executor that keeps it in step with the backend.
package queue

import (
	"time"

	"github.com/matheus3301/modq/internal/filter"
)

// Message is a moderation-queue item as reported by the backend.
// Scores are nil until the message has been through a scoring pass.
type Message struct {
	ID               int64
	OriginalText     string
	ProcessedText    string
	BuildingID       string
	BuildingName     string
	GroupID          string
	GroupName        string
	ClientName       string
	SenderID         string
	MessageTimestamp *time.Time
	CreatedAt        time.Time
	ReviewedAt       *time.Time
	IsReviewed       bool

	// ModerationScore is the aggregate as reported by the backend. It is
	// documented as the maximum of the sub-scores but is not re-derived here.
	ModerationScore *float64
	Adversity       *float64
	Violence        *float64
	Inappropriate   *float64
	Spam            *float64
}

// IsScored reports whether the AI scoring pass has run for m.
func (m Message) IsScored() bool {
	return m.ModerationScore != nil
}

// Score returns the aggregate score, or 0 for unscored messages.
func (m Message) Score() float64 {
	if m.ModerationScore == nil {
		return 0
	}
	return *m.ModerationScore
}

// DisplayTime is the source timestamp when known, the ingestion time otherwise.
func (m Message) DisplayTime() time.Time {
	if m.MessageTimestamp != nil {
		return *m.MessageTimestamp
	}
	return m.CreatedAt
}

// Patch is a partial update merged into a message by PatchByID.
// Nil fields are left untouched.
type Patch struct {
	ProcessedText   *string
	ModerationScore *float64
	Adversity       *float64
	Violence        *float64
	Inappropriate   *float64
	Spam            *float64
}

func (p Patch) apply(m *Message) {
	if p.ProcessedText != nil {
		m.ProcessedText = *p.ProcessedText
	}
	if p.ModerationScore != nil {
		m.ModerationScore = ptr(*p.ModerationScore)
	}
	if p.Adversity != nil {
		m.Adversity = ptr(*p.Adversity)
	}
	if p.Violence != nil {
		m.Violence = ptr(*p.Violence)
	}
	if p.Inappropriate != nil {
		m.Inappropriate = ptr(*p.Inappropriate)
	}
	if p.Spam != nil {
		m.Spam = ptr(*p.Spam)
	}
}

// Snapshot is the result of one queue fetch. Message order is the server's.
type Snapshot struct {
	Messages      []Message
	TotalCount    int
	UnscoredCount int
}

// Counts summarises the store for display.
type Counts struct {
	Total    int
	Unscored int
	Visible  int
	Selected int
}

// Query is one page of the queue under a filter.
type Query struct {
	Filter  filter.Filter
	Page    int
	PerPage int
}

func ptr[T any](v T) *T {
	return &v
}

func cloneMessage(m Message) Message {
	c := m
	if m.MessageTimestamp != nil {
		c.MessageTimestamp = ptr(*m.MessageTimestamp)
	}
	if m.ReviewedAt != nil {
		c.ReviewedAt = ptr(*m.ReviewedAt)
	}
	if m.ModerationScore != nil {
		c.ModerationScore = ptr(*m.ModerationScore)
	}
	if m.Adversity != nil {
		c.Adversity = ptr(*m.Adversity)
	}
	if m.Violence != nil {
		c.Violence = ptr(*m.Violence)
	}
	if m.Inappropriate != nil {
		c.Inappropriate = ptr(*m.Inappropriate)
	}
	if m.Spam != nil {
		c.Spam = ptr(*m.Spam)
	}
	return c
}
