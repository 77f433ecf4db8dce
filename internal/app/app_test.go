package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"geoprobe/internal/domain"
	"geoprobe/internal/generator"
)

func TestReadPort(t *testing.T) {
	t.Setenv("GEOPROBE_PORT_VALID", "12345")
	if got := readPort("GEOPROBE_PORT_VALID"); got != 12345 {
		t.Fatalf("readPort returned %d, want 12345", got)
	}

	t.Setenv("GEOPROBE_PORT_INVALID", "not-a-number")
	if got := readPort("GEOPROBE_PORT_INVALID"); got != 0 {
		t.Fatalf("readPort with invalid value returned %d, want 0", got)
	}

	t.Setenv("GEOPROBE_PORT_ZERO", "0")
	if got := readPort("GEOPROBE_PORT_ZERO"); got != 0 {
		t.Fatalf("readPort with zero value returned %d, want 0", got)
	}
}

func TestResolvePort(t *testing.T) {
	t.Run("primary env overrides fallback", func(t *testing.T) {
		t.Setenv("PRIMARY_PORT", "5050")
		if got := resolvePort("PRIMARY_PORT", "LEGACY_PORT", 8080); got != 5050 {
			t.Fatalf("resolvePort returned %d, want 5050", got)
		}
	})

	t.Run("legacy env used when primary missing", func(t *testing.T) {
		t.Setenv("LEGACY_PORT", "6060")
		if got := resolvePort("PRIMARY_MISSING", "LEGACY_PORT", 8080); got != 6060 {
			t.Fatalf("resolvePort returned %d, want 6060", got)
		}
	})

	t.Run("fallback used when env unset", func(t *testing.T) {
		if got := resolvePort("UNSET_PRIMARY", "UNSET_LEGACY", 9090); got != 9090 {
			t.Fatalf("resolvePort returned %d, want 9090", got)
		}
	})
}

func newLookupServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, "%s;JP;Japan;Example;Net\r\n", r.URL.Query().Get("ip"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeSettings creates a settings file whose lookup endpoint is endpoint and
// whose source section is the given JSON object.
func writeSettings(t *testing.T, dir, endpoint, source string) string {
	t.Helper()

	settings := fmt.Sprintf(`{"lookup": {"provider": "http", "endpoint": %q}, "source": %s}`, endpoint, source)
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(settings), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func writeRanges(t *testing.T, dir string, ranges ...string) string {
	t.Helper()

	data, err := json.Marshal(map[string][]string{"ranges": ranges})
	if err != nil {
		t.Fatalf("marshal ranges: %v", err)
	}
	path := filepath.Join(dir, "cidrs.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write ranges: %v", err)
	}
	return path
}

func TestRunPrintsBatch(t *testing.T) {
	dir := t.TempDir()
	rangesPath := writeRanges(t, dir, "198.51.100.0/24", "203.0.113.0/24")
	settingsPath := writeSettings(t, dir, newLookupServer(t).URL,
		fmt.Sprintf(`{"kind": "file", "path": %q}`, rangesPath))

	var stdout bytes.Buffer
	if err := run([]string{"-settings", settingsPath, "-count", "4"}, &stdout); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	var records []domain.IPRecord
	if err := json.Unmarshal(stdout.Bytes(), &records); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout.String())
	}
	if len(records) != 4 {
		t.Fatalf("run printed %d records, want 4", len(records))
	}
	for _, record := range records {
		if !strings.HasPrefix(record.IP, "198.51.100.") && !strings.HasPrefix(record.IP, "203.0.113.") {
			t.Fatalf("record IP %s outside configured ranges", record.IP)
		}
		if record.CountryCode != "JP" || record.ISP != "Example;Net" || !record.IsComplete() {
			t.Fatalf("record %+v, want complete JP record", record)
		}
	}
}

func TestRunFailsWithoutRanges(t *testing.T) {
	dir := t.TempDir()
	rangesPath := writeRanges(t, dir)
	settingsPath := writeSettings(t, dir, newLookupServer(t).URL,
		fmt.Sprintf(`{"kind": "file", "path": %q}`, rangesPath))

	var stdout bytes.Buffer
	err := run([]string{"-settings", settingsPath}, &stdout)
	if !errors.Is(err, generator.ErrNoAddressSource) {
		t.Fatalf("run returned %v, want ErrNoAddressSource", err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("run printed %q on failure", stdout.String())
	}
}

func TestRunImportsIntoRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("GEOPROBE_REDIS_URL", "redis://"+mr.Addr())

	dir := t.TempDir()
	rangesPath := writeRanges(t, dir, "192.0.2.0/24", "not-a-range")
	settingsPath := writeSettings(t, dir, newLookupServer(t).URL,
		`{"kind": "redis", "redis_key": "test:cidrs"}`)

	var stdout bytes.Buffer
	if err := run([]string{"-settings", settingsPath, "-import", rangesPath}, &stdout); err != nil {
		t.Fatalf("import run returned error: %v", err)
	}

	stored, err := mr.Get("test:cidrs")
	if err != nil {
		t.Fatalf("read imported key: %v", err)
	}
	if stored != `{"ranges":["192.0.2.0/24"]}` {
		t.Fatalf("stored document = %s", stored)
	}

	if err := run([]string{"-settings", settingsPath, "-count", "2"}, &stdout); err != nil {
		t.Fatalf("batch run returned error: %v", err)
	}
	var records []domain.IPRecord
	if err := json.Unmarshal(stdout.Bytes(), &records); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(records) != 2 || !strings.HasPrefix(records[0].IP, "192.0.2.") {
		t.Fatalf("run printed %+v", records)
	}
}

func TestRunRejectsImportForFileSource(t *testing.T) {
	dir := t.TempDir()
	rangesPath := writeRanges(t, dir, "192.0.2.0/24")
	settingsPath := writeSettings(t, dir, newLookupServer(t).URL,
		fmt.Sprintf(`{"kind": "file", "path": %q}`, rangesPath))

	if err := run([]string{"-settings", settingsPath, "-import", rangesPath}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error importing into a file source")
	}
}

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"-version"}, &stdout); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(stdout.String(), `"buildVersion": "dev"`) {
		t.Fatalf("version output = %s", stdout.String())
	}
}
