// Package main starts the headless table client and handles termination.
//
// The process mirrors one player's view of a shared table: it folds the
// authoritative action stream into local state and reconnects when the
// connection drops.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	tablesynccmd "github.com/louisbranch/tablesync/internal/cmd/tablesync"
	entrypoint "github.com/louisbranch/tablesync/internal/platform/cmd"
)

func main() {
	cfg, err := tablesynccmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.TableSync.LogPrefix())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tablesynccmd.Run(ctx, cfg); err != nil {
		log.Fatalf("table client stopped: %v", err)
	}
}
