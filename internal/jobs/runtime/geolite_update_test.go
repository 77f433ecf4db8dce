package runtime

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"geoprobe/internal/config"
	"geoprobe/internal/geolite"
)

type recordingReloader struct {
	mu    sync.Mutex
	paths [][2]string
	err   error
}

func (r *recordingReloader) Reload(countryPath, asnPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, [2]string{countryPath, asnPath})
	return r.err
}

func (r *recordingReloader) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func archiveServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		edition := r.URL.Query().Get("edition_id")
		body := []byte("db")

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		tw := tar.NewWriter(gz)
		_ = tw.WriteHeader(&tar.Header{Name: edition + "/" + edition + ".mmdb", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg})
		_, _ = tw.Write(body)
		_ = tw.Close()
		_ = gz.Close()
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testLookupConfig(t *testing.T) config.LookupConfig {
	t.Helper()

	dir := t.TempDir()
	return config.LookupConfig{
		Provider:           config.ProviderGeoLite,
		GeoLiteCountryPath: filepath.Join(dir, "GeoLite2-Country.mmdb"),
		GeoLiteASNPath:     filepath.Join(dir, "GeoLite2-ASN.mmdb"),
	}
}

func TestRunGeoLiteUpdateReloadsTarget(t *testing.T) {
	updater := geolite.NewUpdater("key")
	updater.BaseURL = archiveServer(t).URL
	cfg := testLookupConfig(t)
	target := &recordingReloader{}

	if err := RunGeoLiteUpdate(context.Background(), updater, cfg, target); err != nil {
		t.Fatalf("RunGeoLiteUpdate returned error: %v", err)
	}
	if len(target.paths) != 1 || target.paths[0] != [2]string{cfg.GeoLiteCountryPath, cfg.GeoLiteASNPath} {
		t.Fatalf("Reload called with %v", target.paths)
	}
}

func TestRunGeoLiteUpdateWithoutKey(t *testing.T) {
	target := &recordingReloader{}
	err := RunGeoLiteUpdate(context.Background(), geolite.NewUpdater(""), testLookupConfig(t), target)
	if !errors.Is(err, geolite.ErrNoLicenseKey) {
		t.Fatalf("RunGeoLiteUpdate returned %v, want ErrNoLicenseKey", err)
	}
	if target.calls() != 0 {
		t.Fatal("Reload called without a download")
	}
}

func TestStartGeoLiteUpdateRoutineStopsWithContext(t *testing.T) {
	updater := geolite.NewUpdater("key")
	updater.BaseURL = archiveServer(t).URL
	target := &recordingReloader{}
	cfg := testLookupConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		StartGeoLiteUpdateRoutine(ctx, 10*time.Millisecond, updater, cfg, target)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for target.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("routine never reloaded the target")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("routine did not stop after cancel")
	}
}
