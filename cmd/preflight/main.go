// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/hamed0406/checkboard/internal/config"
)

func main() {
	_ = godotenv.Load()

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, red("✖"), msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, yellow("⚠"), msg) }
	ok := func(msg string) { fmt.Println(green("✔"), msg) }

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fail(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		fail(err.Error())
	}

	if cfg.CatalogFile != "" {
		if _, err := os.Stat(cfg.CatalogFile); err != nil {
			fail("CATALOG_FILE not readable: " + err.Error())
		}
		ok("CATALOG_FILE=" + cfg.CatalogFile + " (overrides CHECKS_SERVER)")
	} else {
		ok("CHECKS_SERVER=" + cfg.ChecksServer)
	}

	if cfg.DiagramPath == "" {
		warn("DIAGRAM_PATH empty; no diagram will be annotated.")
	} else if _, err := os.Stat(cfg.DiagramPath); err != nil {
		warn("DIAGRAM_PATH not readable; dashboard will run without a diagram: " + err.Error())
	} else {
		ok("DIAGRAM_PATH=" + cfg.DiagramPath)
	}

	ok("SECRET_BACKEND=" + cfg.SecretBackend)
	if cfg.SecretBackend == config.SecretBackendMemory {
		warn("secret is kept in memory; operators will be asked again after every restart.")
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty; latest check states are kept in memory only.")
	} else {
		ok("DATABASE_URL present")
	}

	if cfg.SlackWebhook == "" {
		warn("SLACK_WEBHOOK empty; fleet alerts only go to the log.")
	} else {
		ok("SLACK_WEBHOOK present")
	}

	if len(cfg.KafkaBrokers) > 0 {
		ok(fmt.Sprintf("KAFKA_BROKERS=%v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic))
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok(fmt.Sprintf("ALLOWED_ORIGINS=%v", cfg.AllowedOrigins))
	}

	if cfg.RefreshRPM <= 0 {
		warn("REFRESH_RPM <= 0; manual refresh is not rate limited.")
	}

	ok("preflight passed")
}
