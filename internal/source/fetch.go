package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"taxi-dashboard/internal/taxi"
)

// Download names one remote file and where it should live on disk.
type Download struct {
	URL  string
	Path string
}

// Fetch downloads every file that is not already present. Each file is
// written to a temporary name and renamed into place, so a failed or
// interrupted download never leaves a partial file behind.
func Fetch(ctx context.Context, client *http.Client, timeout time.Duration, files ...Download) error {
	if client == nil {
		client = http.DefaultClient
	}
	for _, d := range files {
		if d.URL == "" {
			continue
		}
		if _, err := os.Stat(d.Path); err == nil {
			continue
		}
		if err := fetchOne(ctx, client, timeout, d); err != nil {
			return err
		}
	}
	return nil
}

func fetchOne(ctx context.Context, client *http.Client, timeout time.Duration, d Download) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	log.Printf("downloading %s to %s", d.URL, d.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request for %s: %v", taxi.ErrSourceUnavailable, d.URL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download %s: %v", taxi.ErrSourceUnavailable, d.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download %s: status %s", taxi.ErrSourceUnavailable, d.URL, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(d.Path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", taxi.ErrSourceUnavailable, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.Path), "."+filepath.Base(d.Path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", taxi.ErrSourceUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", taxi.ErrSourceUnavailable, d.Path, err)
	}
	if err := os.Rename(tmp.Name(), d.Path); err != nil {
		return fmt.Errorf("%w: %v", taxi.ErrSourceUnavailable, err)
	}
	log.Printf("downloaded %s (%d bytes) in %s", d.Path, n, time.Since(start).Round(time.Millisecond))
	return nil
}
