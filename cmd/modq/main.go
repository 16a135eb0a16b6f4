package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/matheus3301/modq/internal/dashboard"
	"github.com/matheus3301/modq/internal/lock"
	"github.com/matheus3301/modq/internal/profile"
	"github.com/matheus3301/modq/internal/tui"
)

func main() {
	profileFlag := flag.String("profile", os.Getenv("MODQ_PROFILE"), "profile name (overrides config default)")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var d *dashboard.App
	app := fx.New(
		dashboard.Module(dashboard.Params{Profile: name, Interactive: true}),
		fx.Populate(&d),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		var locked *lock.ProfileLockedError
		if errors.As(err, &locked) {
			fmt.Fprintf(os.Stderr, "profile %q is already open in another modq (pid %d)\n", name, locked.PID)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	runErr := tui.NewApp(d).Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
