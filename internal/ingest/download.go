package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Downloader fetches the zipped dataset and unpacks its CSV files.
type Downloader struct {
	client *resty.Client
	log    *zap.Logger
}

// NewDownloader creates a Downloader with retrying HTTP client settings.
func NewDownloader(log *zap.Logger) *Downloader {
	client := resty.New().
		SetTimeout(5 * time.Minute).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)
	return &Downloader{client: client, log: log}
}

// Fetch downloads the archive at url and extracts it into dir. It returns the
// names of the extracted files.
func (d *Downloader) Fetch(ctx context.Context, url, dir string) ([]string, error) {
	d.log.Info("downloading dataset", zap.String("url", url))
	resp, err := d.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download dataset: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("dataset download returned status %d", resp.StatusCode())
	}

	names, err := Extract(resp.Body(), dir)
	if err != nil {
		return nil, err
	}
	d.log.Info("dataset extracted", zap.String("dir", dir), zap.Strings("files", names))
	return names, nil
}

// Extract writes the CSV files of a zip archive into dir. Directory
// structure inside the archive is flattened.
func Extract(data []byte, dir string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset archive: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if !strings.EqualFold(filepath.Ext(name), ".csv") || strings.HasPrefix(name, ".") {
			continue
		}
		if err := extractFile(f, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func extractFile(f *zip.File, path string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
