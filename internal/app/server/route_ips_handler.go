package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"geoprobe/internal/config"
	"geoprobe/internal/domain"
)

var errInvalidCount = errors.New("count must be a positive integer")

// Fetcher produces one resolved batch.
type Fetcher interface {
	GenerateAndFetch(ctx context.Context, count int) ([]domain.IPRecord, error)
}

func getIPs(fetcher Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := parseCount(r.URL.Query().Get("count"), config.GetConfig().Generator)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		records, err := fetcher.GenerateAndFetch(r.Context(), count)
		if err != nil {
			log.Error("Address batch failed", "count", count, "error", err)
			writeError(w, err.Error(), http.StatusBadGateway)
			return
		}

		writeJSON(w, http.StatusOK, records)
	}
}

// parseCount falls back to the configured default and clamps to max_count.
func parseCount(raw string, cfg config.GeneratorConfig) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return cfg.DefaultCount, nil
	}

	count, err := strconv.Atoi(raw)
	if err != nil || count <= 0 {
		return 0, errInvalidCount
	}
	if cfg.MaxCount > 0 && count > cfg.MaxCount {
		log.Debug("Requested count clamped", "requested", count, "max", cfg.MaxCount)
		count = cfg.MaxCount
	}
	return count, nil
}
