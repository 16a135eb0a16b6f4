package backend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/live"
)

// OpenScoreStream connects to the server-sent scoring event stream.
func (c *Client) OpenScoreStream(ctx context.Context) (live.Stream, error) {
	const path = "/moderation/score-stream"
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("GET %s: %w: %w", path, apierr.ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", path, statusError(resp.StatusCode, data))
	}

	return &sseStream{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
		logger: c.logger,
	}, nil
}

type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	logger *zap.Logger
}

// Next blocks until the next scored or waiting event. Comments, keep-alives
// and events that cannot be decoded are skipped.
func (s *sseStream) Next() (live.Event, error) {
	for {
		name, data, err := s.readFrame()
		if err != nil {
			return live.Event{}, err
		}
		if name == "" && data == "" {
			continue
		}

		var payload scoreEvent
		if data != "" {
			if err := sonic.UnmarshalString(data, &payload); err != nil {
				s.logger.Debug("skipping undecodable stream event", zap.String("event", name), zap.Error(err))
				continue
			}
		}
		if name == "" || name == "message" {
			name = payload.Type
		}

		switch live.EventKind(name) {
		case live.EventScored:
			return live.Event{Kind: live.EventScored, MessageID: payload.messageID(), Patch: payload.patch()}, nil
		case live.EventWaiting:
			return live.Event{Kind: live.EventWaiting}, nil
		default:
			s.logger.Debug("skipping stream event", zap.String("event", name))
		}
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

// readFrame reads one blank-line terminated frame and returns its event name
// and joined data lines.
func (s *sseStream) readFrame() (string, string, error) {
	var (
		name string
		data []string
	)
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" && (name != "" || len(data) > 0) {
				return name, strings.Join(data, "\n"), nil
			}
			if err == io.EOF {
				err = fmt.Errorf("%w: score stream ended", apierr.ErrNetwork)
			}
			return "", "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return name, strings.Join(data, "\n"), nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
}
