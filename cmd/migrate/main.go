package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"schoolms/internal/config"
	"schoolms/internal/logger"
	"schoolms/internal/store"
)

// Usage: migrate [up|down|status|version|redo|reset] [args...]
func main() {
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var args []string
	if flag.NArg() > 1 {
		args = flag.Args()[1:]
	}
	if err := store.Migrate(ctx, db.Client.DB, command, args...); err != nil {
		log.Error("migration failed", "command", command, "error", err)
		os.Exit(1)
	}
	log.Info("migration finished", "command", command)
}
