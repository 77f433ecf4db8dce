package app

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"geoprobe/internal/app/bootstrap"
	"geoprobe/internal/app/server"
	"geoprobe/internal/app/version"
	"geoprobe/internal/config"
)

const defaultPort = 8082

func Run() error {
	return run(os.Args[1:], os.Stdout)
}

func run(args []string, stdout io.Writer) error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	flags := flag.NewFlagSet("geoprobe", flag.ContinueOnError)
	countFlag := flags.Int("count", 0, "Number of addresses to generate (0 uses generator.default_count)")
	serveFlag := flags.Bool("serve", false, "Run the HTTP API instead of printing a single batch")
	portFlag := flags.Int("port", defaultPort, "Port for the HTTP API")
	settingsFlag := flags.String("settings", "", "Path to the settings file")
	importFlag := flags.String("import", "", "Store the ranges document at this path in the configured redis or database source")
	productionFlag := flags.Bool("production", false, "Run in production mode")
	updateGeoLiteFlag := flags.Bool("update-geolite", false, "Download fresh GeoLite databases before starting")
	versionFlag := flags.Bool("version", false, "Print build information and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *versionFlag {
		return writeJSON(stdout, version.Get())
	}

	config.SetProductionMode(*productionFlag)
	if config.InProductionMode {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.DebugLevel)
	}
	config.SetSettingsPath(*settingsFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Setup(ctx, bootstrap.Options{UpdateGeoLite: *updateGeoLiteFlag})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("error releasing resources", "error", err)
		}
	}()

	if *importFlag != "" {
		imported, err := svc.ImportRanges(ctx, *importFlag)
		if err != nil {
			return fmt.Errorf("import ranges: %w", err)
		}
		log.Info("Ranges imported", "path", *importFlag, "count", imported)
		return nil
	}

	if *serveFlag {
		svc.StartBackground(ctx)
		return server.OpenRoutes(ctx, resolvePort("GEOPROBE_PORT", "PORT", *portFlag), svc.Orchestrator)
	}

	count := *countFlag
	if count == 0 {
		count = config.GetConfig().Generator.DefaultCount
	}

	records, err := svc.Orchestrator.GenerateAndFetch(ctx, count)
	if err != nil {
		return err
	}
	return writeJSON(stdout, records)
}

func writeJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func resolvePort(primaryEnv, legacyEnv string, fallback int) int {
	if port := readPort(primaryEnv); port != 0 {
		return port
	}
	if port := readPort(legacyEnv); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
