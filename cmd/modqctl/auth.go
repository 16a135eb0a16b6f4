package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/matheus3301/modq/internal/dashboard"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in to the backend and store the token in the profile",
		Description: `The password is read from the terminal without echo, or from the
first line of stdin when stdin is not a terminal.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "backend username"},
		},
		Action: withDashboard(func(ctx context.Context, c *cli.Command, d *dashboard.App) error {
			stdin := bufio.NewReader(os.Stdin)
			username := c.String("username")
			if username == "" {
				fmt.Fprint(os.Stderr, "Username: ")
				line, err := stdin.ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read username: %w", err)
				}
				username = strings.TrimSpace(line)
			}
			password, err := readPassword(stdin)
			if err != nil {
				return err
			}

			if err := d.Session.Login(ctx, d.Client, username, password); err != nil {
				return err
			}
			if exp, ok := d.Session.ExpiresAt(); ok {
				fmt.Printf("Logged in as %s (token valid until %s)\n", username, exp.Local().Format("2006-01-02 15:04"))
			} else {
				fmt.Printf("Logged in as %s\n", username)
			}
			return nil
		}),
	}
}

func readPassword(stdin *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored token",
		Action: withDashboard(func(_ context.Context, _ *cli.Command, d *dashboard.App) error {
			user := d.Session.Username()
			if err := d.Session.Logout(); err != nil {
				return err
			}
			if user == "" {
				fmt.Println("Not logged in.")
			} else {
				fmt.Printf("Logged out %s.\n", user)
			}
			return nil
		}),
	}
}
