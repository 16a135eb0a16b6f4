package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/urfave/cli/v3"

	"github.com/matheus3301/modq/internal/config"
	"github.com/matheus3301/modq/internal/lock"
	"github.com/matheus3301/modq/internal/profile"
)

func profilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "profiles",
		Usage: "Manage dashboard profiles",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List known profiles",
				Action: func(_ context.Context, c *cli.Command) error {
					names, err := profile.List()
					if err != nil {
						return err
					}
					current := profile.Resolve("")

					type profileJSON struct {
						Name    string `json:"name"`
						Path    string `json:"path"`
						Default bool   `json:"default"`
						Running bool   `json:"tui_running"`
					}
					out := make([]profileJSON, 0, len(names))
					for _, n := range names {
						_, running := lock.Holder(profile.Dir(n))
						out = append(out, profileJSON{Name: n, Path: profile.Dir(n), Default: n == current, Running: running})
					}

					if c.Bool("json") {
						return outputJSON(out)
					}
					if len(out) == 0 {
						fmt.Println("No profiles found.")
						return nil
					}
					for _, p := range out {
						mark := " "
						if p.Default {
							mark = "*"
						}
						state := "idle"
						if p.Running {
							state = "open"
						}
						fmt.Printf("%s %-20s %s (%s)\n", mark, p.Name, p.Path, state)
					}
					return nil
				},
			},
			{
				Name:      "use",
				Usage:     "Make a profile the default",
				ArgsUsage: "NAME",
				Action: func(_ context.Context, c *cli.Command) error {
					name := c.Args().First()
					if err := profile.ValidateName(name); err != nil {
						return err
					}
					if err := profile.EnsureDir(name); err != nil {
						return err
					}
					cfg, err := config.Load(profile.ConfigPath())
					if errors.Is(err, fs.ErrNotExist) {
						cfg, err = &config.Config{}, nil
					}
					if err != nil {
						return err
					}
					cfg.DefaultProfile = name
					if err := config.Save(profile.ConfigPath(), cfg); err != nil {
						return err
					}
					fmt.Printf("Default profile is now %q.\n", name)
					return nil
				},
			},
		},
	}
}
