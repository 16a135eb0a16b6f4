package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/matheus3301/modq/internal/backend"
	"github.com/matheus3301/modq/internal/dashboard"
	"github.com/matheus3301/modq/internal/filter"
	"github.com/matheus3301/modq/internal/lock"
	"github.com/matheus3301/modq/internal/profile"
	"github.com/matheus3301/modq/internal/queue"
	"github.com/matheus3301/modq/internal/store"
	"github.com/matheus3301/modq/internal/tui/views"
)

type messageJSON struct {
	ID              int64      `json:"id"`
	GroupID         string     `json:"group_id,omitempty"`
	GroupName       string     `json:"group_name,omitempty"`
	BuildingID      string     `json:"building_id,omitempty"`
	BuildingName    string     `json:"building_name,omitempty"`
	ClientName      string     `json:"client_name,omitempty"`
	SenderID        string     `json:"sender_id,omitempty"`
	OriginalText    string     `json:"original_message"`
	ProcessedText   string     `json:"processed_message,omitempty"`
	MessageTime     *time.Time `json:"message_timestamp,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	IsReviewed      bool       `json:"is_reviewed"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ModerationScore *float64   `json:"moderation_score"`
	Adversity       *float64   `json:"adversity_score,omitempty"`
	Violence        *float64   `json:"violence_score,omitempty"`
	Inappropriate   *float64   `json:"inappropriate_content_score,omitempty"`
	Spam            *float64   `json:"spam_score,omitempty"`
}

func toJSON(m queue.Message) messageJSON {
	return messageJSON{
		ID:              m.ID,
		GroupID:         m.GroupID,
		GroupName:       m.GroupName,
		BuildingID:      m.BuildingID,
		BuildingName:    m.BuildingName,
		ClientName:      m.ClientName,
		SenderID:        m.SenderID,
		OriginalText:    m.OriginalText,
		ProcessedText:   m.ProcessedText,
		MessageTime:     m.MessageTimestamp,
		CreatedAt:       m.CreatedAt,
		IsReviewed:      m.IsReviewed,
		ReviewedAt:      m.ReviewedAt,
		ModerationScore: m.ModerationScore,
		Adversity:       m.Adversity,
		Violence:        m.Violence,
		Inappropriate:   m.Inappropriate,
		Spam:            m.Spam,
	}
}

func queueCommand() *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "List one page of the queue",
		Description: `Starts from the profile's saved view. --query replaces it, the other
flags then override single fields. --save makes the result the saved view.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "filter string, e.g. scoreMin=30&sort=score_desc"},
			&cli.StringFlag{Name: "tab", Usage: "pending or reviewed"},
			&cli.IntFlag{Name: "min", Usage: "minimum score, percent"},
			&cli.IntFlag{Name: "max", Usage: "maximum score, percent"},
			&cli.StringFlag{Name: "sort", Usage: "time_desc, time_asc, group_name or score_desc"},
			&cli.StringFlag{Name: "client", Usage: "only messages of this client"},
			&cli.IntFlag{Name: "page", Value: 1, Usage: "page number"},
			&cli.IntFlag{Name: "per-page", Usage: "page size (default from config)"},
			&cli.BoolFlag{Name: "save", Usage: "store the filter as the profile's view"},
		},
		Action: withDashboard(func(ctx context.Context, c *cli.Command, d *dashboard.App) error {
			if err := requireLogin(d); err != nil {
				return err
			}
			f, err := filterFromFlags(c, d.Dashboard.Filter())
			if err != nil {
				return err
			}

			var snap queue.Snapshot
			if c.Bool("save") {
				if _, err := d.Dashboard.SetFilter(ctx, f); err != nil {
					return err
				}
				counts := d.Queue.Counts()
				snap = queue.Snapshot{Messages: d.Queue.Messages(), TotalCount: counts.Total, UnscoredCount: counts.Unscored}
			} else {
				perPage := int(c.Int("per-page"))
				if perPage <= 0 {
					perPage = d.Config.Queue.PerPage
				}
				snap, err = d.Client.FetchQueue(ctx, queue.Query{Filter: f, Page: max(int(c.Int("page")), 1), PerPage: perPage})
				if err != nil {
					return err
				}
			}

			if c.Bool("json") {
				out := struct {
					Filter   string        `json:"filter"`
					Total    int           `json:"total_count"`
					Unscored int           `json:"unscored_count"`
					Messages []messageJSON `json:"messages"`
				}{Filter: f.String(), Total: snap.TotalCount, Unscored: snap.UnscoredCount, Messages: make([]messageJSON, 0, len(snap.Messages))}
				for _, m := range snap.Messages {
					out.Messages = append(out.Messages, toJSON(m))
				}
				return outputJSON(out)
			}

			fmt.Printf("%s: %d shown, %d total, %d unscored\n", f.Describe(), len(snap.Messages), snap.TotalCount, snap.UnscoredCount)
			for _, m := range snap.Messages {
				fmt.Println(queueLine(m))
			}
			return nil
		}),
	}
}

// filterFromFlags applies --query and the single-field flags to base.
func filterFromFlags(c *cli.Command, base filter.Filter) (filter.Filter, error) {
	f := base
	if c.IsSet("query") {
		parsed, err := filter.Parse(c.String("query"))
		if err != nil {
			return base, err
		}
		f = parsed
	}
	if c.IsSet("tab") {
		f.Tab = filter.Tab(c.String("tab"))
	}
	if c.IsSet("min") {
		f.ScoreMin = int(c.Int("min"))
	}
	if c.IsSet("max") {
		f.ScoreMax = int(c.Int("max"))
	}
	if c.IsSet("sort") {
		f.Sort = filter.SortKey(c.String("sort"))
	}
	if c.IsSet("client") {
		f.ClientName = c.String("client")
	}
	return f, f.Validate()
}

func queueLine(m queue.Message) string {
	score := "  -"
	if m.ModerationScore != nil {
		score = fmt.Sprintf("%3.0f", *m.ModerationScore*100)
	}
	group := m.GroupName
	if group == "" {
		group = m.GroupID
	}
	text := strings.Join(strings.Fields(m.ProcessedText), " ")
	if text == "" {
		text = strings.Join(strings.Fields(m.OriginalText), " ")
	}
	if r := []rune(text); len(r) > 60 {
		text = string(r[:59]) + "…"
	}
	return fmt.Sprintf("%8d  %s  %s%%  %-20.20s  %s", m.ID, m.DisplayTime().Local().Format("01/02 15:04"), score, group, text)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid message id %q", part)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, cli.Exit("at least one message id is required", 1)
	}
	return ids, nil
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one message",
		ArgsUsage: "ID",
		Action: withDashboard(func(ctx context.Context, c *cli.Command, d *dashboard.App) error {
			if err := requireLogin(d); err != nil {
				return err
			}
			ids, err := parseIDs(c.Args().Slice())
			if err != nil {
				return err
			}
			m, err := d.Client.Message(ctx, ids[0])
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(toJSON(m))
			}
			fmt.Print(views.Plain(m))
			return nil
		}),
	}
}

func shareCommand() *cli.Command {
	return &cli.Command{
		Name:  "share",
		Usage: "Print the link to the saved view, with a QR code",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-qr", Usage: "print the link only"},
		},
		Action: withDashboard(func(_ context.Context, c *cli.Command, d *dashboard.App) error {
			link, err := d.Dashboard.ShareURL(d.Config.Queue.ShareURL)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(map[string]string{"url": link, "filter": d.Dashboard.Filter().String()})
			}
			if !c.Bool("no-qr") {
				fmt.Print(views.RenderQR(link))
			}
			fmt.Println(link)
			return nil
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show profile, login, saved view and ingestion source",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: 7, Usage: "window for source statistics"},
		},
		Action: withDashboard(func(ctx context.Context, c *cli.Command, d *dashboard.App) error {
			pid, running := lock.Holder(profile.Dir(d.Profile))
			exp, hasExp := d.Session.ExpiresAt()

			var src sourceReport
			if d.Session.Authenticated() {
				src = checkSource(ctx, d.Client, int(c.Int("days")))
			}

			if c.Bool("json") {
				out := map[string]any{
					"profile":     d.Profile,
					"backend":     d.Client.BaseURL(),
					"logged_in":   d.Session.Authenticated(),
					"username":    d.Session.Username(),
					"filter":      d.Dashboard.Filter().String(),
					"tui_running": running,
				}
				if hasExp {
					out["expires_at"] = exp
				}
				if running {
					out["tui_pid"] = pid
				}
				if src.checked {
					out["source"] = src
				}
				return outputJSON(out)
			}

			user := "(logged out)"
			if d.Session.Authenticated() {
				user = d.Session.Username()
				if hasExp {
					user += " until " + exp.Local().Format("2006-01-02 15:04")
				}
			}
			tuiState := "not running"
			if running {
				tuiState = fmt.Sprintf("running (pid %d)", pid)
			}
			fmt.Printf("Profile: %s\n", d.Profile)
			fmt.Printf("Backend: %s\n", d.Client.BaseURL())
			fmt.Printf("User:    %s\n", user)
			fmt.Printf("View:    %s\n", d.Dashboard.Filter().Describe())
			fmt.Printf("TUI:     %s\n", tuiState)
			if src.checked {
				fmt.Printf("Source:  %s\n", src.line())
			}
			return nil
		}),
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent review outcomes recorded by this profile",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of entries"},
		},
		Action: withDashboard(func(_ context.Context, c *cli.Command, d *dashboard.App) error {
			entries, err := d.DB.RecentReviews(int(c.Int("limit")))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				type entryJSON struct {
					MessageID  int64     `json:"message_id"`
					Outcome    string    `json:"outcome"`
					Reason     string    `json:"reason,omitempty"`
					Detail     string    `json:"detail,omitempty"`
					ReviewedAt time.Time `json:"reviewed_at"`
				}
				out := make([]entryJSON, 0, len(entries))
				for _, e := range entries {
					out = append(out, entryJSON{e.MessageID, string(e.Outcome), e.Reason, e.Detail, e.ReviewedAt})
				}
				return outputJSON(out)
			}
			if len(entries) == 0 {
				fmt.Println("No reviews recorded.")
				return nil
			}
			for _, e := range entries {
				fmt.Println(historyLine(e))
			}
			return nil
		}),
	}
}

func historyLine(e store.ReviewEntry) string {
	line := fmt.Sprintf("%s  %8d  %-8s", e.ReviewedAt.Local().Format("2006-01-02 15:04:05"), e.MessageID, e.Outcome)
	if e.Reason != "" {
		line += fmt.Sprintf(" reason=%q", e.Reason)
	}
	if e.Detail != "" {
		line += " " + e.Detail
	}
	return line
}

type sourceReport struct {
	checked bool
	Status  *backend.SourceStatus `json:"status,omitempty"`
	Stats   *backend.SourceStats  `json:"stats,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// checkSource asks the backend about its warehouse. Failures are reported,
// not returned: status must work against a degraded backend.
func checkSource(ctx context.Context, c *backend.Client, days int) sourceReport {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rep := sourceReport{checked: true}
	st, err := c.SourceStatus(ctx)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	rep.Status = &st
	if !st.Available {
		return rep
	}
	stats, err := c.SourceStats(ctx, days)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	rep.Stats = &stats
	return rep
}

func (r sourceReport) line() string {
	switch {
	case r.Status == nil:
		return "unknown (" + r.Error + ")"
	case !r.Status.Available:
		return "unavailable: " + r.Status.Message
	case r.Stats == nil:
		return "available (stats: " + r.Error + ")"
	}
	s := r.Stats
	line := fmt.Sprintf("available, %d messages from %d users in %d groups over %dd",
		s.TotalMessages, s.UniqueUsers, s.ActiveGroups, s.PeriodDays)
	if s.LatestMessage != nil && *s.LatestMessage != "" {
		line += ", latest " + *s.LatestMessage
	}
	return line
}
