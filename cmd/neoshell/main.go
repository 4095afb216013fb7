package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcelocantos/neoshell/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Execute(ctx, version, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
