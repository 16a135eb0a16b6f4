package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matheus3301/modq/internal/filter"
	"github.com/matheus3301/modq/internal/jobs"
	"github.com/matheus3301/modq/internal/queue"
)

// QueryValues renders q as the queue endpoint's query parameters. Score
// bounds are percentages in the filter and fractions on the wire.
func QueryValues(q queue.Query) url.Values {
	v := url.Values{}
	page, perPage := q.Page, q.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("per_page", strconv.Itoa(perPage))

	f := q.Filter
	tab := f.Tab
	if !tab.Valid() {
		tab = filter.DefaultTab
	}
	v.Set("status", string(tab))
	if f.Sort.Valid() {
		v.Set("sort_by", string(f.Sort))
	}
	if f.ScoreMin != filter.DefaultScoreMin {
		v.Set("score_min", fraction(f.ScoreMin))
	}
	if f.ScoreMax != filter.DefaultScoreMax {
		v.Set("score_max", fraction(f.ScoreMax))
	}
	if f.ClientName != "" {
		v.Set("client_name", f.ClientName)
	}
	return v
}

func fraction(pct int) string {
	return strconv.FormatFloat(float64(pct)/100, 'f', -1, 64)
}

// FetchQueue loads one page of the moderation queue.
func (c *Client) FetchQueue(ctx context.Context, q queue.Query) (queue.Snapshot, error) {
	var resp queueResponse
	if err := c.get(ctx, "/moderation/queue", QueryValues(q), &resp); err != nil {
		return queue.Snapshot{}, err
	}
	return resp.snapshot(), nil
}

// Message loads a single message. Concurrent lookups of the same id share
// one request, which outlives any single caller's cancellation; the client
// timeout still bounds it.
func (c *Client) Message(ctx context.Context, id int64) (queue.Message, error) {
	key := strconv.FormatInt(id, 10)
	shared := context.WithoutCancel(ctx)
	ch := c.details.DoChan(key, func() (any, error) {
		var w wireMessage
		if err := c.get(shared, "/messages/"+key, nil, &w); err != nil {
			return queue.Message{}, err
		}
		return w.toMessage(), nil
	})
	select {
	case <-ctx.Done():
		return queue.Message{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return queue.Message{}, r.Err
		}
		return r.Val.(queue.Message), nil
	}
}

// Review marks one message as reviewed. reasoning is optional.
func (c *Client) Review(ctx context.Context, id int64, reasoning string) error {
	req := reviewRequest{Action: "reviewed", ConfidenceScore: 1.0}
	if reasoning != "" {
		req.Reasoning = &reasoning
	}
	path := "/moderation/review/" + strconv.FormatInt(id, 10)
	return c.do(ctx, http.MethodPost, path, nil, req, nil)
}

// SourceStatus checks whether ingestion has a warehouse to pull from.
func (c *Client) SourceStatus(ctx context.Context) (SourceStatus, error) {
	var st SourceStatus
	if err := c.get(ctx, "/snowflake/status", nil, &st); err != nil {
		return SourceStatus{}, err
	}
	return st, nil
}

// SourceStats returns warehouse message counts for the last daysBack days.
// The service answers 503 when no warehouse is configured.
func (c *Client) SourceStats(ctx context.Context, daysBack int) (SourceStats, error) {
	q := url.Values{}
	q.Set("days_back", strconv.Itoa(daysBack))

	var st SourceStats
	if err := c.get(ctx, "/snowflake/stats", q, &st); err != nil {
		return SourceStats{}, err
	}
	return st, nil
}

// Ingest asks the service to pull recent messages from the warehouse.
func (c *Client) Ingest(ctx context.Context, limit, daysBack int) (jobs.IngestReport, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("days_back", strconv.Itoa(daysBack))

	var resp ingestResponse
	if err := c.do(ctx, http.MethodPost, "/snowflake/ingest", q, nil, &resp); err != nil {
		return jobs.IngestReport{}, err
	}
	return jobs.IngestReport{IngestedCount: resp.IngestedCount, TotalFetched: resp.TotalFetched}, nil
}

// ScoreBatch scores up to limit unscored messages.
func (c *Client) ScoreBatch(ctx context.Context, limit int) (jobs.BatchResult, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	start := time.Now()
	var resp scoreBatchResponse
	if err := c.do(ctx, http.MethodPost, "/moderation/score-batch", q, nil, &resp); err != nil {
		return jobs.BatchResult{}, err
	}
	elapsed := time.Since(start)
	if resp.ElapsedSeconds != nil {
		elapsed = time.Duration(*resp.ElapsedSeconds * float64(time.Second))
	}
	return jobs.BatchResult{
		Scored:    resp.Scored,
		Remaining: resp.Remaining,
		Elapsed:   elapsed,
	}, nil
}

// ClearAll deletes every message and returns how many were removed.
func (c *Client) ClearAll(ctx context.Context) (int, error) {
	var resp clearResponse
	if err := c.do(ctx, http.MethodDelete, "/moderation/clear", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// RemoveDuplicates deletes messages with identical text in the same group.
func (c *Client) RemoveDuplicates(ctx context.Context) (DedupeResult, error) {
	var resp DedupeResult
	if err := c.do(ctx, http.MethodDelete, "/moderation/duplicates", nil, nil, &resp); err != nil {
		return DedupeResult{}, err
	}
	return resp, nil
}

// Login exchanges moderator credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (Token, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("password", password)

	var tok Token
	if err := c.do(ctx, http.MethodPost, "/auth/login", q, nil, &tok); err != nil {
		return Token{}, err
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("login: empty access token")
	}
	return tok, nil
}
