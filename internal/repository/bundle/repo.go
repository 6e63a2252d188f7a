// Package bundle fetches bundle manifests and metadata files from the
// upstream bundle repository. Fetches are deterministic for a given
// (uuid, version) pair; the pipeline re-fetches freely during retries.
package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
)

// Config holds client parameters.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Repo implements worker.BundleFetcher over HTTP.
type Repo struct {
	base   *url.URL
	client *http.Client
}

// New creates a bundle repository client.
func New(cfg Config) (*Repo, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Repo{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type manifestResponse struct {
	Bundle struct {
		Files []domain.FileManifestEntry `json:"files"`
	} `json:"bundle"`
}

// Fetch retrieves the bundle manifest and the content of every indexable
// metadata file.
func (r *Repo) Fetch(ctx context.Context, uuid, version string) (*domain.Bundle, error) {
	var manifest manifestResponse
	manifestURL := r.endpoint(fmt.Sprintf("bundles/%s", uuid), version)
	if err := r.getJSON(ctx, manifestURL, &manifest); err != nil {
		return nil, fmt.Errorf("fetch manifest %s.%s: %w", uuid, version, err)
	}

	bundle := &domain.Bundle{
		FQID:          domain.BundleFQID{UUID: uuid, Version: version},
		Manifest:      manifest.Bundle.Files,
		MetadataFiles: make(map[string]map[string]any),
	}
	for _, entry := range manifest.Bundle.Files {
		if !entry.Indexable || !strings.HasSuffix(entry.Name, ".json") {
			continue
		}
		var content map[string]any
		fileURL := r.endpoint(fmt.Sprintf("files/%s", entry.UUID), entry.Version)
		if err := r.getJSON(ctx, fileURL, &content); err != nil {
			return nil, fmt.Errorf("fetch metadata file %s of %s.%s: %w",
				entry.Name, uuid, version, err)
		}
		bundle.MetadataFiles[entry.Name] = content
	}
	return bundle, nil
}

func (r *Repo) endpoint(path, version string) string {
	u := *r.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + path
	if version != "" {
		q := u.Query()
		q.Set("version", version)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (r *Repo) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", rawURL, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}
