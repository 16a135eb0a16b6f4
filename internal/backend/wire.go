package backend

import (
	"bytes"
	"fmt"
	"time"

	"github.com/matheus3301/modq/internal/queue"
)

// The service serialises naive datetimes without a zone; they are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t *wireTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

type wireMessage struct {
	ID                        int64     `json:"id"`
	OriginalMessage           string    `json:"original_message"`
	ProcessedMessage          string    `json:"processed_message"`
	BuildingID                string    `json:"building_id"`
	BuildingName              string    `json:"building_name"`
	GroupID                   string    `json:"group_id"`
	GroupName                 string    `json:"group_name"`
	ClientName                string    `json:"client_name"`
	SenderID                  string    `json:"sender_id"`
	MessageTimestamp          *wireTime `json:"message_timestamp"`
	CreatedAt                 wireTime  `json:"created_at"`
	ReviewedAt                *wireTime `json:"reviewed_at"`
	IsReviewed                *bool     `json:"is_reviewed"`
	ModerationScore           *float64  `json:"moderation_score"`
	AdversityScore            *float64  `json:"adversity_score"`
	ViolenceScore             *float64  `json:"violence_score"`
	InappropriateContentScore *float64  `json:"inappropriate_content_score"`
	SpamScore                 *float64  `json:"spam_score"`
}

func (w wireMessage) toMessage() queue.Message {
	m := queue.Message{
		ID:               w.ID,
		OriginalText:     w.OriginalMessage,
		ProcessedText:    w.ProcessedMessage,
		BuildingID:       w.BuildingID,
		BuildingName:     w.BuildingName,
		GroupID:          w.GroupID,
		GroupName:        w.GroupName,
		ClientName:       w.ClientName,
		SenderID:         w.SenderID,
		MessageTimestamp: w.MessageTimestamp.ptr(),
		CreatedAt:        w.CreatedAt.Time,
		ReviewedAt:       w.ReviewedAt.ptr(),
		ModerationScore:  w.ModerationScore,
		Adversity:        w.AdversityScore,
		Violence:         w.ViolenceScore,
		Inappropriate:    w.InappropriateContentScore,
		Spam:             w.SpamScore,
	}
	if w.IsReviewed != nil {
		m.IsReviewed = *w.IsReviewed
	}
	return m
}

// queueResponse accepts both the current "messages" key and the older
// "pending_messages" one.
type queueResponse struct {
	Messages        []wireMessage `json:"messages"`
	PendingMessages []wireMessage `json:"pending_messages"`
	TotalCount      int           `json:"total_count"`
	UnscoredCount   int           `json:"unscored_count"`
	Page            int           `json:"page"`
	PerPage         int           `json:"per_page"`
}

func (r queueResponse) snapshot() queue.Snapshot {
	src := r.Messages
	if len(src) == 0 {
		src = r.PendingMessages
	}
	msgs := make([]queue.Message, len(src))
	for i, w := range src {
		msgs[i] = w.toMessage()
	}
	return queue.Snapshot{
		Messages:      msgs,
		TotalCount:    r.TotalCount,
		UnscoredCount: r.UnscoredCount,
	}
}

type reviewRequest struct {
	Action          string  `json:"action"`
	Reasoning       *string `json:"reasoning,omitempty"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type ingestResponse struct {
	IngestedCount int `json:"ingested_count"`
	TotalFetched  int `json:"total_fetched"`
}

type scoreBatchResponse struct {
	Status         string   `json:"status"`
	Scored         int      `json:"scored"`
	Remaining      int      `json:"remaining"`
	ElapsedSeconds *float64 `json:"elapsed_seconds"`
}

type clearResponse struct {
	DeletedCount int `json:"deleted_count"`
}

// DedupeResult is the outcome of a duplicate sweep.
type DedupeResult struct {
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

// SourceStatus reports whether the service can reach the message warehouse.
type SourceStatus struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// SourceStats summarizes recent warehouse traffic.
type SourceStats struct {
	TotalMessages int     `json:"total_messages"`
	UniqueUsers   int     `json:"unique_users"`
	ActiveGroups  int     `json:"active_groups"`
	LatestMessage *string `json:"latest_message"`
	PeriodDays    int     `json:"period_days"`
}

// Token is an issued access credential.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// scoreEvent is the data payload of a stream event. Type is only consulted
// when the event carries no "event:" line.
type scoreEvent struct {
	Type                      string   `json:"type"`
	MessageID                 int64    `json:"message_id"`
	ID                        int64    `json:"id"`
	ProcessedMessage          *string  `json:"processed_message"`
	ModerationScore           *float64 `json:"moderation_score"`
	AdversityScore            *float64 `json:"adversity_score"`
	ViolenceScore             *float64 `json:"violence_score"`
	InappropriateContentScore *float64 `json:"inappropriate_content_score"`
	SpamScore                 *float64 `json:"spam_score"`
}

func (e scoreEvent) messageID() int64 {
	if e.MessageID != 0 {
		return e.MessageID
	}
	return e.ID
}

func (e scoreEvent) patch() queue.Patch {
	return queue.Patch{
		ProcessedText:   e.ProcessedMessage,
		ModerationScore: e.ModerationScore,
		Adversity:       e.AdversityScore,
		Violence:        e.ViolenceScore,
		Inappropriate:   e.InappropriateContentScore,
		Spam:            e.SpamScore,
	}
}
