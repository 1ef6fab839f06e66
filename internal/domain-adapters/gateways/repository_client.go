package gateways

import (
	"context"
	"crypto/sha1" //nolint:gosec // G505: SHA-1 is what Maven repositories publish
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/backo-go"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

const (
	// Initial backoff duration
	initialBackoff = 500 * time.Millisecond
	// Max backoff duration
	maxBackoff = 16 * time.Second

	metadataFile = "maven-metadata.xml"
)

// errNotFound marks a file that a repository does not have; the next repository is tried
var errNotFound = errors.New("not found")

// RepositoryClientOptions configures a RepositoryClient
type RepositoryClientOptions struct {
	CacheDir    string
	Offline     bool
	MaxAttempts int
	Timeout     time.Duration
	UserAgent   string
	Backoff     *backo.Backo
	Logger      interfaces.Logger
	Metrics     interfaces.MetricsRecorder
}

// RepositoryClient fetches files from Maven repositories into a local cache
// laid out like a Maven repository
type RepositoryClient struct {
	repositories []entities.Repository
	cacheDir     string
	offline      bool
	maxAttempts  int
	userAgent    string
	httpClient   *http.Client
	backoff      *backo.Backo
	logger       interfaces.Logger
	metrics      interfaces.MetricsRecorder
}

var _ gateways.ArtifactRepository = (*RepositoryClient)(nil)

// NewRepositoryClient creates a client for the given repositories, tried in order
func NewRepositoryClient(repositories []entities.Repository, opts RepositoryClientOptions) *RepositoryClient {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = entities.DefaultMaxAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "cauldron"
	}
	if opts.Backoff == nil {
		opts.Backoff = backo.NewBacko(initialBackoff, 2, 0, maxBackoff)
	}
	if opts.Logger == nil {
		opts.Logger = &interfaces.NoOpLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = interfaces.NoopRecorder{}
	}

	return &RepositoryClient{
		repositories: repositories,
		cacheDir:     opts.CacheDir,
		offline:      opts.Offline,
		maxAttempts:  opts.MaxAttempts,
		userAgent:    opts.UserAgent,
		httpClient:   &http.Client{Timeout: opts.Timeout},
		backoff:      opts.Backoff,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
}

// CachePath returns where a coordinate lives in the local cache
func (c *RepositoryClient) CachePath(coord entities.Coordinate) string {
	return filepath.Join(c.cacheDir, filepath.FromSlash(coord.RepositoryPath()))
}

// Fetch returns the cached file for coord, downloading it from the first repository that has it.
// Downloads are verified against the repository's .sha1 sidecar when one is published.
func (c *RepositoryClient) Fetch(ctx context.Context, coord entities.Coordinate) (*gateways.FetchedFile, error) {
	local := c.CachePath(coord)

	if _, err := os.Stat(local); err == nil {
		c.metrics.IncDownload("cache")
		return &gateways.FetchedFile{
			Path:      local,
			SHA1:      readChecksumFile(local + ".sha1"),
			FromCache: true,
		}, nil
	}

	if c.offline {
		return nil, fmt.Errorf("%w: %s", entities.ErrOffline, coord)
	}

	var errs *multierror.Error
	for _, repo := range c.repositories {
		fetched, err := c.fetchFrom(ctx, repo, coord, local)
		if err == nil {
			c.metrics.IncDownload("network")
			return fetched, nil
		}
		if errors.Is(err, errNotFound) {
			c.logger.Debug("artifact not in repository",
				interfaces.F(interfaces.FieldCoordinate, coord.String()),
				interfaces.F(interfaces.FieldRepository, repo.URL))
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", repo.URL, err))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", coord, err)
	}
	return nil, fmt.Errorf("%w: %s", entities.ErrArtifactNotFound, coord)
}

func (c *RepositoryClient) fetchFrom(ctx context.Context, repo entities.Repository, coord entities.Coordinate, local string) (*gateways.FetchedFile, error) {
	remote := coord.RepositoryPath()

	if err := os.MkdirAll(filepath.Dir(local), 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(local), "."+filepath.Base(local)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		//nolint:errcheck,gosec // G104: temp file is gone after a successful rename
		os.Remove(tmpName)
	}()

	h := sha1.New() //nolint:gosec // G401: SHA-1 is what Maven repositories publish
	written, err := c.download(ctx, repo, remote, io.MultiWriter(tmp, h))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}

	actual := hex.EncodeToString(h.Sum(nil))
	expected, err := c.fetchSidecar(ctx, repo, remote+".sha1")
	switch {
	case errors.Is(err, errNotFound):
		c.logger.Warn("repository publishes no checksum",
			interfaces.F(interfaces.FieldCoordinate, coord.String()),
			interfaces.F(interfaces.FieldRepository, repo.URL))
	case err != nil:
		return nil, fmt.Errorf("failed to fetch checksum: %w", err)
	case !strings.EqualFold(expected, actual):
		return nil, fmt.Errorf("%w: %s expected sha1 %s, got %s", entities.ErrChecksumMismatch, coord, expected, actual)
	}

	if err := os.Rename(tmpName, local); err != nil {
		return nil, fmt.Errorf("failed to move download into cache: %w", err)
	}
	if err := os.WriteFile(local+".sha1", []byte(actual), 0600); err != nil {
		return nil, fmt.Errorf("failed to write checksum: %w", err)
	}

	c.logger.Debug("downloaded",
		interfaces.F(interfaces.FieldCoordinate, coord.String()),
		interfaces.F(interfaces.FieldRepository, repo.URL),
		interfaces.F("size", humanize.Bytes(uint64(written))))

	return &gateways.FetchedFile{
		Path:       local,
		SHA1:       actual,
		Repository: repo.URL,
	}, nil
}

func (c *RepositoryClient) fetchSidecar(ctx context.Context, repo entities.Repository, remote string) (string, error) {
	var sb strings.Builder
	if _, err := c.download(ctx, repo, remote, &sb); err != nil {
		return "", err
	}
	// sidecars sometimes carry "<hash>  <file>"
	fields := strings.Fields(sb.String())
	if len(fields) == 0 {
		return "", errNotFound
	}
	return fields[0], nil
}

// download copies a repository file into w, retrying transient failures with exponential backoff
func (c *RepositoryClient) download(ctx context.Context, repo entities.Repository, remote string, w io.Writer) (int64, error) {
	base, err := url.Parse(strings.TrimSuffix(repo.URL, "/") + "/")
	if err != nil {
		return 0, fmt.Errorf("invalid repository URL %q: %w", repo.URL, err)
	}

	if base.Scheme == "file" {
		return copyLocalFile(filepath.Join(filepath.FromSlash(base.Path), filepath.FromSlash(remote)), w)
	}

	target := base.ResolveReference(&url.URL{Path: remote}).String()

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(c.backoff.Duration(attempt - 1)):
			}
		}

		resp, err := c.get(ctx, repo, target)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			// Network errors are retryable
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			n, err := io.Copy(w, resp.Body)
			//nolint:errcheck,gosec // G104: Best effort close after reading
			resp.Body.Close()
			if err != nil {
				return n, fmt.Errorf("failed to read %s: %w", target, err)
			}
			return n, nil
		case resp.StatusCode == http.StatusNotFound:
			//nolint:errcheck,gosec // G104: Best effort close
			resp.Body.Close()
			return 0, errNotFound
		case isRetryableError(resp.StatusCode):
			//nolint:errcheck,gosec // G104: Best effort close before retry
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, target)
			c.logger.Debug("retrying download",
				interfaces.F("url", target), interfaces.F("attempt", attempt+1), interfaces.Err(lastErr))
		default:
			//nolint:errcheck,gosec // G104: Best effort close
			resp.Body.Close()
			return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, target)
		}
	}

	return 0, fmt.Errorf("giving up after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *RepositoryClient) get(ctx context.Context, repo entities.Repository, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if repo.Username != "" {
		req.SetBasicAuth(repo.Username, repo.Password)
	}
	return c.httpClient.Do(req)
}

// isRetryableError reports whether an HTTP status is worth retrying
func isRetryableError(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

func copyLocalFile(path string, w io.Writer) (int64, error) {
	//nolint:gosec // G304: path is inside a configured file:// repository
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, errNotFound
	}
	if err != nil {
		return 0, err
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()
	return io.Copy(w, f)
}

func readChecksumFile(path string) string {
	//nolint:gosec // G304: path is a cache sidecar
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

type mavenMetadataXML struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Versioning struct {
		Latest      string   `xml:"latest"`
		Release     string   `xml:"release"`
		Versions    []string `xml:"versions>version"`
		LastUpdated string   `xml:"lastUpdated"`
	} `xml:"versioning"`
}

// FetchMetadata merges the maven-metadata.xml of every repository that lists the module.
// Versions keep repository order, which is publication order.
func (c *RepositoryClient) FetchMetadata(ctx context.Context, group, artifact string) (*gateways.MavenMetadata, error) {
	if c.offline {
		return nil, fmt.Errorf("%w: %s:%s metadata", entities.ErrOffline, group, artifact)
	}

	remote := entities.Coordinate{Group: group, Artifact: artifact}.ModuleDir() + "/" + metadataFile
	merged := &gateways.MavenMetadata{GroupID: group, ArtifactID: artifact}
	seen := make(map[string]bool)
	found := false

	var errs *multierror.Error
	for _, repo := range c.repositories {
		var sb strings.Builder
		if _, err := c.download(ctx, repo, remote, &sb); err != nil {
			if !errors.Is(err, errNotFound) {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", repo.URL, err))
			}
			continue
		}

		var doc mavenMetadataXML
		if err := xml.Unmarshal([]byte(sb.String()), &doc); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: invalid %s: %w", repo.URL, metadataFile, err))
			continue
		}
		found = true

		for _, v := range doc.Versioning.Versions {
			v = strings.TrimSpace(v)
			if v != "" && !seen[v] {
				seen[v] = true
				merged.Versions = append(merged.Versions, v)
			}
		}
		if doc.Versioning.LastUpdated > merged.LastUpdated {
			merged.LastUpdated = doc.Versioning.LastUpdated
			merged.Latest = doc.Versioning.Latest
			merged.Release = doc.Versioning.Release
		}
	}

	if !found {
		if err := errs.ErrorOrNil(); err != nil {
			return nil, fmt.Errorf("failed to fetch metadata for %s:%s: %w", group, artifact, err)
		}
		return nil, fmt.Errorf("%w: %s:%s", entities.ErrArtifactNotFound, group, artifact)
	}

	return merged, nil
}
