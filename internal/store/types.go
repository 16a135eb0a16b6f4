package store

import "time"

// Credential is the stored login for a profile. There is at most one.
type Credential struct {
	Token     string
	TokenType string
	Username  string
	CreatedAt time.Time
}

// ReviewOutcome records whether a review request was accepted.
type ReviewOutcome string

const (
	OutcomeReviewed ReviewOutcome = "reviewed"
	OutcomeFailed   ReviewOutcome = "failed"
)

// ReviewEntry is one line of the local review log.
type ReviewEntry struct {
	MessageID  int64
	Outcome    ReviewOutcome
	Reason     string
	Detail     string
	ReviewedAt time.Time
}
