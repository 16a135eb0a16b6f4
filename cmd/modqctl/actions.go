package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/matheus3301/modq/internal/dashboard"
	"github.com/matheus3301/modq/internal/jobs"
)

func reviewCommand() *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Mark messages as reviewed",
		ArgsUsage: "ID [ID...]",
		Description: `IDs may be separated by spaces or commas. Exits 2 when only some
of the messages could be reviewed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reason", Aliases: []string{"r"}, Usage: "reasoning recorded with the review"},
		},
		Action: withDashboard(func(ctx context.Context, c *cli.Command, d *dashboard.App) error {
			if err := requireLogin(d); err != nil {
				return err
			}
			ids, err := parseIDs(c.Args().Slice())
			if err != nil {
				return err
			}

			res := d.Review.BulkReview(ctx, ids, c.String("reason"))
			failed := slices.Sorted(maps.Keys(res.Failed))

			if c.Bool("json") {
				errs := make(map[string]string, len(res.Failed))
				for id, err := range res.Failed {
					errs[fmt.Sprint(id)] = err.Error()
				}
				if err := outputJSON(map[string]any{"succeeded": res.Succeeded, "failed": errs}); err != nil {
					return err
				}
			} else {
				for _, id := range res.Succeeded {
					fmt.Printf("%d\treviewed\n", id)
				}
				for _, id := range failed {
					fmt.Printf("%d\tfailed: %v\n", id, res.Failed[id])
				}
			}

			switch {
			case res.Partial():
				return cli.Exit(fmt.Sprintf("%d of %d reviews failed", len(failed), len(failed)+len(res.Succeeded)), exitPartial)
			case len(failed) > 0:
				return cli.Exit("all reviews failed", 1)
			}
			return nil
		}),
	}
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Ingest new messages and wait until they show up",
		Action: withDashboard(func(ctx context.Context, c *cli.Command, d *dashboard.App) error {
			if err := requireLogin(d); err != nil {
				return err
			}
			fmt.Printf("Ingesting (limit %d, %d day(s) back)...\n", d.Config.Ingest.Limit, d.Config.Ingest.DaysBack)
			st, err := d.Ingestor.Run(ctx)
			if err != nil {
				return err
			}
			report, _ := st.Result.(jobs.IngestReport)
			if c.Bool("json") {
				return outputJSON(map[string]any{
					"phase":          st.Phase,
					"attempts":       st.Attempt,
					"ingested_count": report.IngestedCount,
					"total_fetched":  report.TotalFetched,
				})
			}
			switch st.Phase {
			case jobs.Succeeded:
				fmt.Printf("Ingested %d of %d fetched; queue has new messages after %d check(s).\n", report.IngestedCount, report.TotalFetched, st.Attempt)
			case jobs.TimedOut:
				fmt.Printf("Ingested %d of %d fetched; nothing visible after %d checks.\n", report.IngestedCount, report.TotalFetched, st.Attempt)
			default:
				fmt.Printf("Ingest ended: %s\n", st)
			}
			return nil
		}),
	}
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Score unscored messages",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "batch size (default from config)"},
			&cli.BoolFlag{Name: "all", Usage: "repeat batches until nothing is left"},
		},
		Action: withDashboard(func(ctx context.Context, c *cli.Command, d *dashboard.App) error {
			if err := requireLogin(d); err != nil {
				return err
			}
			limit := int(c.Int("limit"))
			if limit <= 0 {
				limit = d.Config.Scoring.BatchLimit
			}

			var total jobs.BatchResult
			for {
				res, err := d.Scorer.RunBatch(ctx, limit)
				if err != nil {
					return err
				}
				total.Scored += res.Scored
				total.Elapsed += res.Elapsed
				total.Remaining = res.Remaining
				if !c.Bool("json") {
					fmt.Printf("Scored %d in %s, %d remaining\n", res.Scored, res.Elapsed.Round(time.Millisecond), res.Remaining)
				}
				// A batch that scores nothing would loop forever.
				if !c.Bool("all") || res.Remaining <= 0 || res.Scored == 0 {
					break
				}
			}
			if c.Bool("json") {
				return outputJSON(map[string]any{
					"scored":     total.Scored,
					"remaining":  total.Remaining,
					"elapsed_ms": total.Elapsed.Milliseconds(),
				})
			}
			return nil
		}),
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every message in the queue",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm the deletion"},
		},
		Action: withDashboard(func(ctx context.Context, c *cli.Command, d *dashboard.App) error {
			if err := requireLogin(d); err != nil {
				return err
			}
			if !c.Bool("yes") {
				return cli.Exit("refusing to delete every message without --yes", 1)
			}
			n, err := d.Client.ClearAll(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(map[string]int{"deleted": n})
			}
			fmt.Printf("Deleted %d message(s).\n", n)
			return nil
		}),
	}
}

func dedupeCommand() *cli.Command {
	return &cli.Command{
		Name:  "dedupe",
		Usage: "Remove duplicate messages",
		Action: withDashboard(func(ctx context.Context, c *cli.Command, d *dashboard.App) error {
			if err := requireLogin(d); err != nil {
				return err
			}
			res, err := d.Client.RemoveDuplicates(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(map[string]int{"removed": res.Removed, "remaining": res.Remaining})
			}
			fmt.Printf("Removed %d duplicate(s), %d message(s) remain.\n", res.Removed, res.Remaining)
			return nil
		}),
	}
}
