package geolite

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"geoprobe/internal/config"
)

const (
	maxMindDownloadURL = "https://download.maxmind.com/app/geoip_download"
	userAgent          = "geoprobe-geolite-updater/1.0"
)

// ErrNoLicenseKey indicates that no MaxMind license key has been configured.
var ErrNoLicenseKey = errors.New("geolite: license key is not configured")

type downloadTarget struct {
	editionID string
	path      string
}

// Updater downloads GeoLite2 editions into the paths the lookup resolver reads.
type Updater struct {
	BaseURL    string
	LicenseKey string
	Client     *http.Client

	group singleflight.Group
}

func NewUpdater(licenseKey string) *Updater {
	return &Updater{
		BaseURL:    maxMindDownloadURL,
		LicenseKey: strings.TrimSpace(licenseKey),
		Client:     &http.Client{Timeout: 2 * time.Minute},
	}
}

func targetsFor(cfg config.LookupConfig) []downloadTarget {
	return []downloadTarget{
		{editionID: "GeoLite2-Country", path: cfg.GeoLiteCountryPath},
		{editionID: "GeoLite2-ASN", path: cfg.GeoLiteASNPath},
	}
}

// EnsureDatabases downloads the editions whose files are missing and reports
// whether anything was written.
func (u *Updater) EnsureDatabases(ctx context.Context, cfg config.LookupConfig) (bool, error) {
	var missing []downloadTarget
	for _, target := range targetsFor(cfg) {
		if _, err := os.Stat(target.path); errors.Is(err, os.ErrNotExist) {
			missing = append(missing, target)
		} else if err != nil {
			return false, fmt.Errorf("geolite: stat %s: %w", target.path, err)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}
	return u.download(ctx, missing)
}

// UpdateDatabases replaces both editions unconditionally.
func (u *Updater) UpdateDatabases(ctx context.Context, cfg config.LookupConfig) (bool, error) {
	return u.download(ctx, targetsFor(cfg))
}

func (u *Updater) download(ctx context.Context, targets []downloadTarget) (bool, error) {
	result, err, _ := u.group.Do("update", func() (interface{}, error) {
		if u.LicenseKey == "" {
			return false, ErrNoLicenseKey
		}

		for _, target := range targets {
			start := time.Now()
			if err := u.downloadEdition(ctx, target); err != nil {
				return false, err
			}
			log.Info("GeoLite database downloaded", "edition", target.editionID, "path", target.path, "duration", time.Since(start))
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}

	updated, _ := result.(bool)
	return updated, nil
}

func (u *Updater) downloadEdition(ctx context.Context, target downloadTarget) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.buildDownloadURL(target.editionID), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", target.editionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("download %s: unexpected status %d: %s", target.editionID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	gzipReader, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: open gzip: %w", target.editionID, err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	wantName := target.editionID + ".mmdb"
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: read tar: %w", target.editionID, err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != wantName {
			continue
		}

		if err := writeToFile(target.path, tarReader); err != nil {
			return fmt.Errorf("%s: write file: %w", target.editionID, err)
		}
		return nil
	}

	return fmt.Errorf("%s: mmdb file not found in archive", target.editionID)
}

// writeToFile goes through a temp file so readers never see a partial database.
func writeToFile(destPath string, data io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), "geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if _, err := io.Copy(tmpFile, data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return os.Rename(tmpFile.Name(), destPath)
}

func (u *Updater) buildDownloadURL(edition string) string {
	query := url.Values{}
	query.Set("edition_id", edition)
	query.Set("license_key", u.LicenseKey)
	query.Set("suffix", "tar.gz")
	return u.BaseURL + "?" + query.Encode()
}
