// One-shot maintenance trigger: builds the application, runs a single
// sweep, prints the report and exits. Useful from cron or a terminal while
// the server owns the periodic schedule.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"missiondeck/internal/app"
	"missiondeck/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}
	defer application.Close()

	report, err := application.Scheduler.RunNow(ctx)
	if err != nil {
		log.Fatalf("Maintenance run failed: %v", err)
	}

	out, _ := json.Marshal(report)
	fmt.Println(string(out))
}
