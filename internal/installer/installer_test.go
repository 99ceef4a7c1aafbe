package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// buildArchive returns a gzipped tarball with the given entries.
func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range entries {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o755,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// releaseServer serves a fake GitHub release API plus the asset
// download.
func releaseServer(t *testing.T, assetName string, archive []byte) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":"v1.10","assets":[`+
			`{"name":"windows-rnnoise.zip","browser_download_url":"%s/win"},`+
			`{"name":"%s","browser_download_url":"%s/download"}]}`,
			srv.URL, assetName, srv.URL)
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestInstallExtractsPlugin(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"bin/ladspa/librnnoise_ladspa.so": "\x7fELF plugin",
		"bin/vst/librnnoise_vst.so":       "\x7fELF vst",
	})
	srv := releaseServer(t, "linux-rnnoise.tar.gz", archive)

	dir := filepath.Join(t.TempDir(), "rnnoise")
	inst := NewWithEndpoint(srv.Client(), srv.URL+"/latest")

	var calls int
	err := inst.Install(context.Background(), dir, func(dl, total int64) { calls++ })
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	data, err := os.ReadFile(PluginPath(dir))
	if err != nil {
		t.Fatalf("plugin not extracted: %v", err)
	}
	if string(data) != "\x7fELF plugin" {
		t.Errorf("plugin content mangled: %q", data)
	}
	if calls == 0 {
		t.Error("progress callback never invoked")
	}
}

func TestInstallReplacesExistingInstall(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"bin/ladspa/librnnoise_ladspa.so": "new",
	})
	srv := releaseServer(t, "linux-rnnoise.tar.gz", archive)

	dir := filepath.Join(t.TempDir(), "rnnoise")
	stale := filepath.Join(dir, "stale.txt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	inst := NewWithEndpoint(srv.Client(), srv.URL+"/latest")
	if err := inst.Install(context.Background(), dir, nil); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("previous install contents not removed")
	}
}

func TestInstallNoLinuxAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.10","assets":[{"name":"windows.zip","browser_download_url":"http://x/y"}]}`)
	}))
	t.Cleanup(srv.Close)

	inst := NewWithEndpoint(srv.Client(), srv.URL)
	err := inst.Install(context.Background(), t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error when release has no linux asset")
	}
}

func TestInstallMissingPluginInArchive(t *testing.T) {
	archive := buildArchive(t, map[string]string{"README.md": "hi"})
	srv := releaseServer(t, "linux-rnnoise.tar.gz", archive)

	inst := NewWithEndpoint(srv.Client(), srv.URL+"/latest")
	err := inst.Install(context.Background(), filepath.Join(t.TempDir(), "rnnoise"), nil)
	if err == nil {
		t.Fatal("expected error for archive without the plugin")
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"../evil.so": "payload",
	})
	path := filepath.Join(t.TempDir(), "a.tar.gz")
	if err := os.WriteFile(path, archive, 0o644); err != nil {
		t.Fatal(err)
	}

	parent := t.TempDir()
	if err := extract(path, filepath.Join(parent, "install")); err == nil {
		t.Fatal("expected error for path traversal entry")
	}
	if _, err := os.Stat(filepath.Join(parent, "evil.so")); !os.IsNotExist(err) {
		t.Error("traversal entry was written outside the install dir")
	}
}

func TestUninstall(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rnnoise")
	if err := os.MkdirAll(filepath.Join(dir, "bin", "ladspa"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Uninstall(dir); err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("install dir still exists")
	}

	if err := Uninstall(dir); err == nil {
		t.Error("expected error when nothing is installed")
	}
}
