package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"geoprobe/internal/config"
	"geoprobe/internal/geolite"
)

// Reloader swaps the databases a resolver reads from.
type Reloader interface {
	Reload(countryPath, asnPath string) error
}

// StartGeoLiteUpdateRoutine refreshes the GeoLite databases every interval and
// reloads target after each successful download. It returns when ctx is done.
func StartGeoLiteUpdateRoutine(ctx context.Context, interval time.Duration, updater *geolite.Updater, cfg config.LookupConfig, target Reloader) {
	if ctx == nil {
		ctx = context.Background()
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debug("GeoLite update routine started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			triggerGeoLiteUpdate(ctx, updater, cfg, target, "scheduled")
		}
	}
}

// RunGeoLiteUpdate downloads fresh databases and reloads target on demand.
func RunGeoLiteUpdate(ctx context.Context, updater *geolite.Updater, cfg config.LookupConfig, target Reloader) error {
	updated, err := updater.UpdateDatabases(ctx, cfg)
	if err != nil || !updated {
		return err
	}
	return target.Reload(cfg.GeoLiteCountryPath, cfg.GeoLiteASNPath)
}

func triggerGeoLiteUpdate(ctx context.Context, updater *geolite.Updater, cfg config.LookupConfig, target Reloader, reason string) {
	err := RunGeoLiteUpdate(ctx, updater, cfg, target)
	switch {
	case errors.Is(err, geolite.ErrNoLicenseKey):
		log.Debug("GeoLite update skipped: license key missing", "reason", reason)
	case errors.Is(err, context.Canceled):
		log.Debug("GeoLite update canceled", "reason", reason)
	case err != nil:
		log.Error("GeoLite update failed", "reason", reason, "error", err)
	default:
		log.Info("GeoLite databases updated", "reason", reason)
	}
}
