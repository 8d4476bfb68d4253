package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/evently/courier/internal/bus"
	"github.com/evently/courier/internal/daemon"
	"github.com/evently/courier/internal/service"
	"github.com/evently/courier/internal/session"
	"github.com/evently/courier/internal/tui"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// The TUI runs in-process with the sync machinery: fx wires everything,
	// then tview takes over the main goroutine.
	var svc *service.Service
	var b *bus.Bus
	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName}),
		fx.Populate(&svc, &b),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ui := tui.NewApp(svc, b, sessionName)
	runErr := ui.Run()
	ui.Stop()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
