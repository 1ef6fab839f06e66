package gateways

import (
	"context"
	"crypto/sha1" //nolint:gosec // G505: Maven sidecars use SHA-1
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/backo-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

func sha1Hex(content string) string {
	sum := sha1.Sum([]byte(content)) //nolint:gosec // G401: Maven sidecars use SHA-1
	return hex.EncodeToString(sum[:])
}

// fakeRepository serves a Maven layout over HTTP and counts requests per path
type fakeRepository struct {
	mu       sync.Mutex
	files    map[string]string
	failures map[string]int // path -> number of 503 responses before success
	hits     map[string]int
	server   *httptest.Server
}

func newFakeRepository(t *testing.T) *fakeRepository {
	t.Helper()
	repo := &fakeRepository{
		files:    make(map[string]string),
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}
	repo.server = httptest.NewServer(http.HandlerFunc(repo.serve))
	t.Cleanup(repo.server.Close)
	return repo
}

func (r *fakeRepository) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := strings.TrimPrefix(req.URL.Path, "/")
	r.hits[p]++
	if r.failures[p] > 0 {
		r.failures[p]--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	content, ok := r.files[p]
	if !ok {
		http.NotFound(w, req)
		return
	}
	_, _ = w.Write([]byte(content))
}

func (r *fakeRepository) put(path, content string, withSHA1 bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = content
	if withSHA1 {
		r.files[path+".sha1"] = sha1Hex(content) + "  " + filepath.Base(path)
	}
}

func (r *fakeRepository) hitCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

func fastBackoff() *backo.Backo {
	return backo.NewBacko(time.Millisecond, 2, 0, 5*time.Millisecond)
}

var poiCoord = entities.Coordinate{Group: "org.apache.poi", Artifact: "poi", Version: "5.2.3"}

func TestRepositoryClient_FetchAndCache(t *testing.T) {
	repo := newFakeRepository(t)
	repo.put(poiCoord.RepositoryPath(), "poi-jar", true)

	cache := t.TempDir()
	client := NewRepositoryClient(
		[]entities.Repository{{URL: repo.server.URL}},
		RepositoryClientOptions{CacheDir: cache, Backoff: fastBackoff()},
	)

	fetched, err := client.Fetch(context.Background(), poiCoord)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "org", "apache", "poi", "poi", "5.2.3", "poi-5.2.3.jar"), fetched.Path)
	assert.Equal(t, sha1Hex("poi-jar"), fetched.SHA1)
	assert.False(t, fetched.FromCache)
	assert.Equal(t, repo.server.URL, fetched.Repository)

	again, err := client.Fetch(context.Background(), poiCoord)
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, sha1Hex("poi-jar"), again.SHA1)
	assert.Equal(t, 1, repo.hitCount(poiCoord.RepositoryPath()), "second fetch must be served from cache")
}

func TestRepositoryClient_RetriesTransientFailures(t *testing.T) {
	repo := newFakeRepository(t)
	path := poiCoord.RepositoryPath()
	repo.put(path, "poi-jar", true)
	repo.failures[path] = 2

	client := NewRepositoryClient(
		[]entities.Repository{{URL: repo.server.URL}},
		RepositoryClientOptions{CacheDir: t.TempDir(), MaxAttempts: 3, Backoff: fastBackoff()},
	)

	_, err := client.Fetch(context.Background(), poiCoord)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.hitCount(path))
}

func TestRepositoryClient_GivesUp(t *testing.T) {
	repo := newFakeRepository(t)
	path := poiCoord.RepositoryPath()
	repo.put(path, "poi-jar", true)
	repo.failures[path] = 10

	client := NewRepositoryClient(
		[]entities.Repository{{URL: repo.server.URL}},
		RepositoryClientOptions{CacheDir: t.TempDir(), MaxAttempts: 2, Backoff: fastBackoff()},
	)

	_, err := client.Fetch(context.Background(), poiCoord)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 2 attempts")
	assert.Equal(t, 2, repo.hitCount(path))
}

func TestRepositoryClient_ChecksumMismatch(t *testing.T) {
	repo := newFakeRepository(t)
	repo.put(poiCoord.RepositoryPath(), "poi-jar", false)
	repo.put(poiCoord.RepositoryPath()+".sha1", sha1Hex("something else"), false)

	cache := t.TempDir()
	client := NewRepositoryClient(
		[]entities.Repository{{URL: repo.server.URL}},
		RepositoryClientOptions{CacheDir: cache, Backoff: fastBackoff()},
	)

	_, err := client.Fetch(context.Background(), poiCoord)
	assert.ErrorIs(t, err, entities.ErrChecksumMismatch)
	assert.NoFileExists(t, client.CachePath(poiCoord))
}

func TestRepositoryClient_MissingSidecarIsAccepted(t *testing.T) {
	repo := newFakeRepository(t)
	repo.put(poiCoord.RepositoryPath(), "poi-jar", false)

	client := NewRepositoryClient(
		[]entities.Repository{{URL: repo.server.URL}},
		RepositoryClientOptions{CacheDir: t.TempDir(), Backoff: fastBackoff()},
	)

	fetched, err := client.Fetch(context.Background(), poiCoord)
	require.NoError(t, err)
	assert.Equal(t, sha1Hex("poi-jar"), fetched.SHA1)
}

func TestRepositoryClient_FallsThroughRepositories(t *testing.T) {
	empty := newFakeRepository(t)
	full := newFakeRepository(t)
	full.put(poiCoord.RepositoryPath(), "poi-jar", true)

	client := NewRepositoryClient(
		[]entities.Repository{{URL: empty.server.URL}, {URL: full.server.URL}},
		RepositoryClientOptions{CacheDir: t.TempDir(), Backoff: fastBackoff()},
	)

	fetched, err := client.Fetch(context.Background(), poiCoord)
	require.NoError(t, err)
	assert.Equal(t, full.server.URL, fetched.Repository)
	assert.Equal(t, 1, empty.hitCount(poiCoord.RepositoryPath()))
}

func TestRepositoryClient_NotFound(t *testing.T) {
	repo := newFakeRepository(t)
	client := NewRepositoryClient(
		[]entities.Repository{{URL: repo.server.URL}},
		RepositoryClientOptions{CacheDir: t.TempDir(), Backoff: fastBackoff()},
	)

	_, err := client.Fetch(context.Background(), poiCoord)
	assert.ErrorIs(t, err, entities.ErrArtifactNotFound)
}

func TestRepositoryClient_Offline(t *testing.T) {
	cache := t.TempDir()
	client := NewRepositoryClient(
		[]entities.Repository{{URL: "http://127.0.0.1:1"}},
		RepositoryClientOptions{CacheDir: cache, Offline: true},
	)

	_, err := client.Fetch(context.Background(), poiCoord)
	assert.ErrorIs(t, err, entities.ErrOffline)

	local := client.CachePath(poiCoord)
	require.NoError(t, os.MkdirAll(filepath.Dir(local), 0o750))
	require.NoError(t, os.WriteFile(local, []byte("cached"), 0o600))

	fetched, err := client.Fetch(context.Background(), poiCoord)
	require.NoError(t, err)
	assert.True(t, fetched.FromCache)

	_, err = client.FetchMetadata(context.Background(), "org.apache.poi", "poi")
	assert.ErrorIs(t, err, entities.ErrOffline)
}

func TestRepositoryClient_BasicAuth(t *testing.T) {
	var mu sync.Mutex
	var user, pass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".sha1") {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		user, pass, _ = r.BasicAuth()
		mu.Unlock()
		_, _ = w.Write([]byte("jar"))
	}))
	defer server.Close()

	client := NewRepositoryClient(
		[]entities.Repository{{URL: server.URL, Username: "deploy", Password: "secret"}},
		RepositoryClientOptions{CacheDir: t.TempDir()},
	)
	_, err := client.Fetch(context.Background(), poiCoord)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "deploy", user)
	assert.Equal(t, "secret", pass)
}

func TestRepositoryClient_FileRepository(t *testing.T) {
	root := t.TempDir()
	local := filepath.Join(root, filepath.FromSlash(poiCoord.RepositoryPath()))
	require.NoError(t, os.MkdirAll(filepath.Dir(local), 0o750))
	require.NoError(t, os.WriteFile(local, []byte("poi-jar"), 0o600))

	client := NewRepositoryClient(
		[]entities.Repository{{URL: "file://" + filepath.ToSlash(root)}},
		RepositoryClientOptions{CacheDir: t.TempDir()},
	)

	fetched, err := client.Fetch(context.Background(), poiCoord)
	require.NoError(t, err)
	assert.Equal(t, sha1Hex("poi-jar"), fetched.SHA1)

	missing := poiCoord.WithVersion("9.9.9")
	_, err = client.Fetch(context.Background(), missing)
	assert.ErrorIs(t, err, entities.ErrArtifactNotFound)
}

func metadataXML(release, lastUpdated string, versions ...string) string {
	var sb strings.Builder
	for _, v := range versions {
		fmt.Fprintf(&sb, "<version>%s</version>", v)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<metadata>
  <groupId>org.apache.poi</groupId>
  <artifactId>poi</artifactId>
  <versioning>
    <latest>%[1]s</latest>
    <release>%[1]s</release>
    <versions>%[2]s</versions>
    <lastUpdated>%[3]s</lastUpdated>
  </versioning>
</metadata>`, release, sb.String(), lastUpdated)
}

func TestRepositoryClient_FetchMetadata(t *testing.T) {
	central := newFakeRepository(t)
	mirror := newFakeRepository(t)
	path := "org/apache/poi/poi/maven-metadata.xml"
	central.put(path, metadataXML("5.2.3", "20230101000000", "5.2.2", "5.2.3"), false)
	mirror.put(path, metadataXML("5.3.0", "20240101000000", "5.2.3", "5.3.0"), false)

	client := NewRepositoryClient(
		[]entities.Repository{{URL: central.server.URL}, {URL: mirror.server.URL}},
		RepositoryClientOptions{CacheDir: t.TempDir(), Backoff: fastBackoff()},
	)

	meta, err := client.FetchMetadata(context.Background(), "org.apache.poi", "poi")
	require.NoError(t, err)
	assert.Equal(t, []string{"5.2.2", "5.2.3", "5.3.0"}, meta.Versions)
	assert.Equal(t, "5.3.0", meta.Release)
	assert.Equal(t, "20240101000000", meta.LastUpdated)

	_, err = client.FetchMetadata(context.Background(), "org.example", "missing")
	assert.True(t, errors.Is(err, entities.ErrArtifactNotFound), "error = %v", err)
}

func TestIsRetryableError(t *testing.T) {
	tests := map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
		http.StatusNotFound:            false,
		http.StatusUnauthorized:        false,
		http.StatusOK:                  false,
	}
	for status, want := range tests {
		if got := isRetryableError(status); got != want {
			t.Errorf("isRetryableError(%d) = %v, want %v", status, got, want)
		}
	}
}
