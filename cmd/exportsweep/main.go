package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"exportsweep/internal/app"
	"exportsweep/internal/config"
	"exportsweep/internal/inspector"
	"exportsweep/internal/logging"
)

func main() {
	runTarget := flag.String("run", "", "run one foreground export against the given target and exit")
	inspectPath := flag.String("inspect", "", "derive selector candidates from a saved HTML snapshot")
	inspectText := flag.String("text", "", "item text to look for in the snapshot (with -inspect)")
	flag.Parse()

	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.Logging.Level)

	if *inspectPath != "" {
		if err := inspect(*inspectPath, *inspectText); err != nil {
			logger.Error("inspection failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)

	if *runTarget != "" {
		if err := application.RunOnce(ctx, *runTarget); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}

func inspect(path, text string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	suggestions, err := inspector.Suggest(string(raw), text)
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		fmt.Println("no matching nodes")
		return nil
	}
	for _, s := range suggestions {
		fmt.Printf("%s\n    text: %s\n", s.Selector, s.Text)
	}
	return nil
}
