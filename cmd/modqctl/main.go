package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"

	"github.com/matheus3301/modq/internal/dashboard"
	"github.com/matheus3301/modq/internal/profile"
)

// exitPartial is the exit code when a bulk action only partly succeeded.
const exitPartial = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "modqctl",
		Usage: "Script the moderation queue dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "profile name (overrides config default)",
				Value:   os.Getenv("MODQ_PROFILE"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output in JSON format",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			queueCommand(),
			showCommand(),
			reviewCommand(),
			ingestCommand(),
			scoreCommand(),
			clearCommand(),
			dedupeCommand(),
			shareCommand(),
			historyCommand(),
			profilesCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			if msg := exit.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// dashboardAction is a command body that needs a started dashboard.
type dashboardAction func(ctx context.Context, c *cli.Command, d *dashboard.App) error

// withDashboard starts a non-interactive dashboard for the selected profile
// around fn and stops it afterwards.
func withDashboard(fn dashboardAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		name, err := profileName(c)
		if err != nil {
			return err
		}

		var d *dashboard.App
		app := fx.New(
			dashboard.Module(dashboard.Params{Profile: name, Console: true}),
			fx.Populate(&d),
			fx.NopLogger,
		)
		startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := app.Start(startCtx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = app.Stop(stopCtx)
		}()

		return fn(ctx, c, d)
	}
}

func profileName(c *cli.Command) (string, error) {
	name := profile.Resolve(c.String("profile"))
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// requireLogin fails early instead of sending an unauthenticated request.
func requireLogin(d *dashboard.App) error {
	if !d.Session.Authenticated() {
		return cli.Exit(fmt.Sprintf("not logged in to profile %q; run: modqctl login", d.Profile), 1)
	}
	return nil
}

func outputJSON(v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	_, err = fmt.Println(string(out))
	return err
}
