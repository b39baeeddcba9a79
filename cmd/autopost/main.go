package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autopost/internal/app"
)

func main() {
	var (
		cfgPath string
		once    bool
		check   bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.BoolVar(&once, "once", false, "run a single publish cycle and exit")
	flag.BoolVar(&check, "check", false, "verify Telegram and sheet connectivity and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	switch {
	case check:
		if err := a.Check(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "check failed:", err)
			os.Exit(1)
		}
		fmt.Println("ok")
	case once:
		if err := a.RunOnce(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
	default:
		if err := a.Start(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "fatal start:", err)
			os.Exit(1)
		}
		waitErr := a.Wait(ctx)

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx)

		if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
			fmt.Fprintln(os.Stderr, "fatal:", waitErr)
			os.Exit(1)
		}
	}
}
