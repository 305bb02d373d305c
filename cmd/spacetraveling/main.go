package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eringen/spacetraveling"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(serve); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "build":
		if err := run(build); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("spacetraveling %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// run loads .env when present, builds the App from the environment, and
// hands it to cmd.
func run(cmd func(context.Context, *spacetraveling.App) error) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := spacetraveling.ConfigFromEnv()
	if err != nil {
		return err
	}
	app := spacetraveling.New(cfg)
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd(ctx, app)
}

func serve(ctx context.Context, app *spacetraveling.App) error {
	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

func build(ctx context.Context, app *spacetraveling.App) error {
	report, err := app.Build(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Snapshot written: %d posts, %d banners\n", report.Posts, report.Banners)
	for _, uid := range report.Skipped {
		fmt.Printf("  skipped %s\n", uid)
	}
	return nil
}

func printUsage() {
	fmt.Println(`spacetraveling - A blog front-end over a headless CMS, built with Go, Echo, and templ

Usage:
  spacetraveling <command>

Commands:
  serve         Start the web server
  build         Snapshot posts, banners and the first listing page into SQLite
  version       Print the spacetraveling version
  help          Show this help message

Configuration is read from the environment and from .env when present.
CMS_ENDPOINT and SESSION_SECRET are required for serve; build needs CMS_ENDPOINT.

Examples:
  CMS_ENDPOINT=https://spacetraveling.cdn.prismic.io/api/v2 spacetraveling build
  spacetraveling serve`)
}
