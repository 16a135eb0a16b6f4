package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/filter"
	"github.com/matheus3301/modq/internal/live"
	"github.com/matheus3301/modq/internal/queue"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, r chi.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Tokens:  staticToken("tok-123"),
		Retry: RetryOptions{
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			MaxElapsedTime:  time.Second,
			MaxRetries:      3,
		},
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, _ := sonic.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestFetchQueue(t *testing.T) {
	var gotQuery, gotAuth, gotReqID string
	r := chi.NewRouter()
	r.Get("/api/v1/moderation/queue", func(w http.ResponseWriter, req *http.Request) {
		gotQuery = req.URL.RawQuery
		gotAuth = req.Header.Get("Authorization")
		gotReqID = req.Header.Get("X-Request-ID")
		_, _ = io.WriteString(w, `{
			"messages": [
				{"id": 3, "original_message": "hi", "processed_message": "hi",
				 "group_name": "Lobby", "client_name": "Acme",
				 "message_timestamp": "2024-05-01T10:00:00.123456",
				 "created_at": "2024-05-01T10:00:05",
				 "moderation_score": 0.9, "spam_score": 0.9},
				{"id": 1, "original_message": "x", "processed_message": "x",
				 "created_at": "2024-05-01T09:00:00Z", "moderation_score": null}
			],
			"total_count": 40, "unscored_count": 7, "page": 1, "per_page": 2
		}`)
	})
	c := newTestClient(t, r)

	f := filter.Default().WithScoreRange(30, 80).WithSort(filter.SortScoreDesc)
	f.ClientName = "Acme"
	snap, err := c.FetchQueue(context.Background(), queue.Query{Filter: f, Page: 1, PerPage: 2})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Contains(t, gotQuery, "score_min=0.3")
	assert.Contains(t, gotQuery, "score_max=0.8")
	assert.Contains(t, gotQuery, "sort_by=score_desc")
	assert.Contains(t, gotQuery, "status=pending")
	assert.Contains(t, gotQuery, "client_name=Acme")

	require.Len(t, snap.Messages, 2)
	assert.Equal(t, int64(3), snap.Messages[0].ID)
	assert.Equal(t, 0.9, snap.Messages[0].Score())
	assert.Equal(t, "Lobby", snap.Messages[0].GroupName)
	require.NotNil(t, snap.Messages[0].MessageTimestamp)
	assert.Equal(t, 2024, snap.Messages[0].MessageTimestamp.Year())
	assert.False(t, snap.Messages[1].IsScored())
	assert.Equal(t, 40, snap.TotalCount)
	assert.Equal(t, 7, snap.UnscoredCount)
}

func TestFetchQueueLegacyKey(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/moderation/queue", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"pending_messages": [{"id": 5, "created_at": "2024-05-01T09:00:00"}], "total_count": 1}`)
	})
	c := newTestClient(t, r)

	snap, err := c.FetchQueue(context.Background(), queue.Query{Filter: filter.Default()})
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, int64(5), snap.Messages[0].ID)
}

func TestQueryValuesOmitsDefaults(t *testing.T) {
	v := QueryValues(queue.Query{Filter: filter.Default()})
	assert.Equal(t, "1", v.Get("page"))
	assert.Equal(t, "50", v.Get("per_page"))
	assert.Equal(t, "pending", v.Get("status"))
	assert.False(t, v.Has("score_min"))
	assert.False(t, v.Has("score_max"))
	assert.False(t, v.Has("client_name"))
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/api/v1/moderation/queue", func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"detail": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": []any{}, "total_count": 0})
	})
	c := newTestClient(t, r)

	_, err := c.FetchQueue(context.Background(), queue.Query{Filter: filter.Default()})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/api/v1/moderation/queue", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
	})
	c := newTestClient(t, r)

	_, err := c.FetchQueue(context.Background(), queue.Query{Filter: filter.Default()})
	assert.ErrorIs(t, err, apierr.ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReviewPostsDecision(t *testing.T) {
	var body map[string]any
	r := chi.NewRouter()
	r.Post("/api/v1/moderation/review/{id}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "id") == "404" {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Message not found"})
			return
		}
		data, _ := io.ReadAll(req.Body)
		_ = sonic.Unmarshal(data, &body)
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "message_id": 7, "action": "reviewed"})
	})
	c := newTestClient(t, r)

	require.NoError(t, c.Review(context.Background(), 7, "looks fine"))
	assert.Equal(t, "reviewed", body["action"])
	assert.Equal(t, "looks fine", body["reasoning"])
	assert.Equal(t, 1.0, body["confidence_score"])

	err := c.Review(context.Background(), 404, "")
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestPostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Post("/api/v1/moderation/score-batch", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "busy"})
	})
	c := newTestClient(t, r)

	_, err := c.ScoreBatch(context.Background(), 20)
	var se *apierr.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.Code)
	assert.Equal(t, "busy", se.Detail)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScoreBatchAndIngest(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/moderation/score-batch", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "20", req.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "scored": 20, "remaining": 5, "elapsed_seconds": 1.5})
	})
	r.Post("/api/v1/snowflake/ingest", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "50", req.URL.Query().Get("limit"))
		assert.Equal(t, "1", req.URL.Query().Get("days_back"))
		writeJSON(w, http.StatusOK, map[string]any{"ingested_count": 12, "total_fetched": 50, "results": []any{}})
	})
	c := newTestClient(t, r)

	res, err := c.ScoreBatch(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Scored)
	assert.Equal(t, 5, res.Remaining)
	assert.Equal(t, 1500*time.Millisecond, res.Elapsed)

	rep, err := c.Ingest(context.Background(), 50, 1)
	require.NoError(t, err)
	assert.Equal(t, 12, rep.IngestedCount)
	assert.Equal(t, 50, rep.TotalFetched)
}

func TestMaintenanceAndLogin(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/api/v1/moderation/clear", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"deleted_count": 9})
	})
	r.Delete("/api/v1/moderation/duplicates", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"removed": 2, "remaining": 30})
	})
	r.Post("/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("password") != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
			return
		}
		writeJSON(w, http.StatusOK, Token{AccessToken: "jwt", TokenType: "bearer"})
	})
	c := newTestClient(t, r)

	n, err := c.ClearAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	d, err := c.RemoveDuplicates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DedupeResult{Removed: 2, Remaining: 30}, d)

	tok, err := c.Login(context.Background(), "mod", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok.AccessToken)

	_, err = c.Login(context.Background(), "mod", "wrong")
	assert.ErrorIs(t, err, apierr.ErrUnauthorized)
}

func TestMessageSharesConcurrentLookups(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Get("/api/v1/messages/{id}", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		<-release
		_, _ = io.WriteString(w, `{"id": 11, "original_message": "hello", "created_at": "2024-05-01T09:00:00"}`)
	})
	c := newTestClient(t, r)

	var wg sync.WaitGroup
	results := make([]queue.Message, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := c.Message(context.Background(), 11)
			assert.NoError(t, err)
			results[i] = m
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, m := range results {
		assert.Equal(t, "hello", m.OriginalText)
	}
	assert.LessOrEqual(t, calls.Load(), int32(4))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestScoreStream(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/moderation/score-stream", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "text/event-stream", req.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		frames := []string{
			": keep-alive\n\n",
			"event: waiting\ndata: {}\n\n",
			"event: scored\ndata: {\"message_id\": 4, \"moderation_score\": 0.42, \"violence_score\": 0.42}\n\n",
			"data: {\"type\": \"scored\", \"id\": 5, \"moderation_score\": 0.1}\n\n",
			"event: progress\ndata: {\"remaining\": 3}\n\n",
		}
		for _, f := range frames {
			_, _ = fmt.Fprint(w, f)
			flusher.Flush()
		}
	})
	c := newTestClient(t, r)

	s, err := c.OpenScoreStream(context.Background())
	require.NoError(t, err)
	defer s.Close()

	evt, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, live.EventWaiting, evt.Kind)

	evt, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, live.EventScored, evt.Kind)
	assert.Equal(t, int64(4), evt.MessageID)
	require.NotNil(t, evt.Patch.ModerationScore)
	assert.Equal(t, 0.42, *evt.Patch.ModerationScore)
	assert.Equal(t, 0.42, *evt.Patch.Violence)

	evt, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(5), evt.MessageID)

	_, err = s.Next()
	assert.ErrorIs(t, err, apierr.ErrNetwork, "end of stream is a transport failure")
}

func TestScoreStreamUnauthorized(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/moderation/score-stream", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	})
	c := newTestClient(t, r)

	_, err := c.OpenScoreStream(context.Background())
	assert.ErrorIs(t, err, apierr.ErrUnauthorized)
}

func TestMessageLookupSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Get("/api/v1/messages/{id}", func(w http.ResponseWriter, req *http.Request) {
		started <- struct{}{}
		<-release
		_, _ = io.WriteString(w, `{"id": 12, "original_message": "still here", "created_at": "2024-05-01T09:00:00"}`)
	})
	c := newTestClient(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Message(ctx, 12)
		first <- err
	}()
	<-started

	second := make(chan queue.Message, 1)
	go func() {
		m, err := c.Message(context.Background(), 12)
		assert.NoError(t, err)
		second <- m
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	assert.Equal(t, "still here", (<-second).OriginalText)
}

func TestSourceStatusAndStats(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/snowflake/status", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"available": true, "message": "Snowflake ready"}`)
	})
	r.Get("/api/v1/snowflake/stats", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "7", req.URL.Query().Get("days_back"))
		_, _ = io.WriteString(w, `{"total_messages": 120, "unique_users": 30, "active_groups": 4, "latest_message": "2024-05-01 09:00:00", "period_days": 7}`)
	})
	c := newTestClient(t, r)

	st, err := c.SourceStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Available)

	stats, err := c.SourceStats(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 120, stats.TotalMessages)
	assert.Equal(t, 4, stats.ActiveGroups)
	require.NotNil(t, stats.LatestMessage)
	assert.Equal(t, "2024-05-01 09:00:00", *stats.LatestMessage)
}

func TestSourceStatsUnconfigured(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/snowflake/stats", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"detail": "Snowflake not configured"}`)
	})
	c := newTestClient(t, r)

	_, err := c.SourceStats(context.Background(), 7)
	var se *apierr.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "Snowflake not configured", se.Detail)
}
