// Package installer downloads the RNNoise LADSPA plugin from the
// werman/noise-suppression-for-voice GitHub releases and unpacks it
// under the install directory.
package installer

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// GitHub API endpoint for the latest plugin release
	defaultReleaseURL = "https://api.github.com/repos/werman/noise-suppression-for-voice/releases/latest"
	// HTTP timeout for the release metadata query
	apiTimeout = 10 * time.Second

	pluginFile = "librnnoise_ladspa.so"
)

// PluginPath returns the plugin location inside an install directory.
func PluginPath(dir string) string {
	return filepath.Join(dir, "bin", "ladspa", pluginFile)
}

// githubRelease is the subset of fields we read from the GitHub API.
type githubRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// ProgressFunc receives download progress. total is -1 when the server
// did not report a content length.
type ProgressFunc func(downloaded, total int64)

// Installer fetches and unpacks plugin releases.
type Installer struct {
	client     *http.Client
	releaseURL string
}

// New returns an Installer using the real GitHub API.
func New() *Installer {
	return &Installer{client: http.DefaultClient, releaseURL: defaultReleaseURL}
}

// NewWithEndpoint returns an Installer pointed at an alternative
// release endpoint. Used by tests.
func NewWithEndpoint(client *http.Client, releaseURL string) *Installer {
	return &Installer{client: client, releaseURL: releaseURL}
}

// Install downloads the latest linux release and extracts it under
// dir, replacing any existing install.
func (i *Installer) Install(ctx context.Context, dir string, progress ProgressFunc) error {
	tag, assetURL, err := i.latestLinuxAsset(ctx)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"release": tag,
		"url":     assetURL,
	}).Debug("Resolved latest plugin release")

	archive, err := i.download(ctx, assetURL, progress)
	if err != nil {
		return err
	}
	defer os.Remove(archive)

	if _, err := os.Stat(dir); err == nil {
		logrus.WithField("path", dir).Debug("Removing existing install")
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("installer: remove existing install: %w", err)
		}
	}

	if err := extract(archive, dir); err != nil {
		return err
	}

	if _, err := os.Stat(PluginPath(dir)); err != nil {
		return fmt.Errorf("installer: archive did not contain %s", filepath.Join("bin", "ladspa", pluginFile))
	}
	return nil
}

// Uninstall removes the install directory.
func Uninstall(dir string) error {
	fi, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("installer: nothing installed at %s", dir)
	}
	if err != nil {
		return fmt.Errorf("installer: stat %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("installer: %s is not a directory", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("installer: remove %s: %w", dir, err)
	}
	return nil
}

// latestLinuxAsset queries the release API and picks the first asset
// whose name starts with "linux".
func (i *Installer) latestLinuxAsset(ctx context.Context) (tag, url string, err error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.releaseURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("installer: create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("installer: fetch release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("installer: GitHub API returned %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", "", fmt.Errorf("installer: decode response: %w", err)
	}

	for _, asset := range release.Assets {
		if strings.HasPrefix(asset.Name, "linux") {
			return release.TagName, asset.BrowserDownloadURL, nil
		}
	}
	return "", "", fmt.Errorf("installer: release %s has no linux asset", release.TagName)
}

// download streams the asset to a temp file.
func (i *Installer) download(ctx context.Context, url string, progress ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("installer: create request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("installer: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("installer: download returned %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "rnnoise-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("installer: create temp file: %w", err)
	}
	defer tmp.Close()

	var reader io.Reader = resp.Body
	if progress != nil {
		reader = &progressReader{r: resp.Body, total: resp.ContentLength, fn: progress}
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("installer: write download: %w", err)
	}
	return tmp.Name(), nil
}

type progressReader struct {
	r          io.Reader
	total      int64
	downloaded int64
	fn         ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.downloaded += int64(n)
	p.fn(p.downloaded, p.total)
	return n, err
}

// extract unpacks a tar.gz archive under dir. Entry paths are confined
// to dir; an entry that would escape it aborts the extraction.
func extract(archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("installer: open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("installer: read gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("installer: read archive: %w", err)
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("installer: create dir: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("installer: create dir: %w", err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return fmt.Errorf("installer: create file: %w", err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("installer: extract %s: %w", hdr.Name, err)
			}
			out.Close()
		default:
			logrus.WithFields(logrus.Fields{
				"entry": hdr.Name,
				"type":  hdr.Typeflag,
			}).Debug("Skipping unsupported archive entry")
		}
	}
	return nil
}

// safeJoin joins name under dir and rejects paths that escape it.
func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("installer: archive entry has absolute path: %s", name)
	}
	target := filepath.Join(dir, name)
	if target != dir && !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("installer: archive entry escapes install dir: %s", name)
	}
	return target, nil
}
