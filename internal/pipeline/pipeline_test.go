package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/italolelis/trackbot/internal/extract"
	"github.com/italolelis/trackbot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor scripts the collaborator's behavior for pipeline tests.
type fakeExtractor struct {
	probeInfo  extract.TrackInfo
	probeErr   error
	fetchInfo  extract.TrackInfo
	fetchErr   error
	fetchBytes []byte
	fetchName  string

	lastFetch extract.Request
	fetches   int
}

func (f *fakeExtractor) Probe(_ context.Context, _ string) (extract.TrackInfo, error) {
	return f.probeInfo, f.probeErr
}

func (f *fakeExtractor) Fetch(_ context.Context, req extract.Request) (extract.TrackInfo, error) {
	f.lastFetch = req
	f.fetches++

	if f.fetchErr != nil {
		return extract.TrackInfo{}, f.fetchErr
	}

	if f.fetchName != "" {
		path := filepath.Join(req.OutputDir, f.fetchName)
		if err := os.WriteFile(path, f.fetchBytes, 0644); err != nil {
			return extract.TrackInfo{}, err
		}
	}

	return f.fetchInfo, nil
}

func direct() service.Service {
	svc, _ := service.Classify("https://soundcloud.com/x/y")

	return svc
}

func searchBacked() service.Service {
	svc, _ := service.Classify("https://open.spotify.com/track/abc")

	return svc
}

func residualFiles(t *testing.T, dir string) int {
	t.Helper()

	var count int

	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			count++
		}

		return nil
	})
	require.NoError(t, err)

	return count
}

func TestRetrieveDirect(t *testing.T) {
	downloadDir := t.TempDir()
	ext := &fakeExtractor{
		fetchInfo:  extract.TrackInfo{Title: "My Song", Artist: "Someone"},
		fetchName:  "My Song.mp3",
		fetchBytes: []byte("audio"),
	}

	p := NewPipeline(ext, downloadDir, 1024)

	artifact, err := p.Retrieve(context.Background(), "https://soundcloud.com/x/y", direct())
	require.NoError(t, err)

	assert.False(t, ext.lastFetch.Search)
	assert.Equal(t, "https://soundcloud.com/x/y", ext.lastFetch.Query)

	// Renamed to the sanitized name inside the request subdirectory.
	assert.Equal(t, "My_Song.mp3", filepath.Base(artifact.AudioPath))
	assert.Equal(t, filepath.Join(downloadDir, artifact.RequestID), artifact.Dir)
	assert.FileExists(t, artifact.AudioPath)
	assert.Equal(t, int64(5), artifact.Size)

	artifact.Cleanup(context.Background())
	assert.Equal(t, 0, residualFiles(t, downloadDir))
}

func TestRetrieveSearchBacked(t *testing.T) {
	ext := &fakeExtractor{
		probeInfo:  extract.TrackInfo{Title: "Track", Artist: "Artist", Duration: 200},
		fetchInfo:  extract.TrackInfo{Title: "Track (Official Video)"},
		fetchName:  "Track (Official Video).mp3",
		fetchBytes: []byte("audio"),
	}

	p := NewPipeline(ext, t.TempDir(), 1024)

	artifact, err := p.Retrieve(context.Background(), "https://open.spotify.com/track/abc", searchBacked())
	require.NoError(t, err)

	assert.True(t, ext.lastFetch.Search)
	assert.Equal(t, "Track Artist", ext.lastFetch.Query)

	// Probe metadata wins over the search hit.
	assert.Equal(t, "Track", artifact.Info.Title)
	assert.Equal(t, "Artist", artifact.Info.Artist)

	artifact.Cleanup(context.Background())
}

func TestRetrieveSearchBackedUnresolved(t *testing.T) {
	downloadDir := t.TempDir()
	ext := &fakeExtractor{probeInfo: extract.TrackInfo{}}

	p := NewPipeline(ext, downloadDir, 1024)

	_, err := p.Retrieve(context.Background(), "https://open.spotify.com/track/abc", searchBacked())

	var metaErr *MetadataError
	require.ErrorAs(t, err, &metaErr)

	assert.Equal(t, 0, ext.fetches, "no fetch without resolved metadata")
	assert.Equal(t, 0, residualFiles(t, downloadDir))
}

func TestRetrieveExtractionFailure(t *testing.T) {
	downloadDir := t.TempDir()
	ext := &fakeExtractor{fetchErr: errors.New("boom")}

	p := NewPipeline(ext, downloadDir, 1024)

	_, err := p.Retrieve(context.Background(), "https://soundcloud.com/x/y", direct())

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.ErrorContains(t, err, "collaborator failed")

	assert.Equal(t, 0, residualFiles(t, downloadDir), "failed request must leave no files")
}

func TestRetrieveArtifactNotProduced(t *testing.T) {
	downloadDir := t.TempDir()
	ext := &fakeExtractor{fetchInfo: extract.TrackInfo{Title: "Ghost"}}

	p := NewPipeline(ext, downloadDir, 1024)

	_, err := p.Retrieve(context.Background(), "https://soundcloud.com/x/y", direct())

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "artifact not produced", extErr.Reason)
	assert.Equal(t, 0, residualFiles(t, downloadDir))
}

func TestRetrieveTooLarge(t *testing.T) {
	downloadDir := t.TempDir()
	ext := &fakeExtractor{
		fetchInfo:  extract.TrackInfo{Title: "Big"},
		fetchName:  "Big.mp3",
		fetchBytes: make([]byte, 100),
	}

	p := NewPipeline(ext, downloadDir, 10)

	_, err := p.Retrieve(context.Background(), "https://soundcloud.com/x/y", direct())

	var sizeErr *ArtifactTooLargeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, int64(100), sizeErr.Size)
	assert.Equal(t, int64(10), sizeErr.Limit)

	assert.Equal(t, 0, residualFiles(t, downloadDir), "oversized artifact must still be deleted")
}

func TestRetrieveNonDeterministicName(t *testing.T) {
	// The collaborator wrote a file whose name doesn't match the title; the
	// newest mp3 in the request directory is picked up and renamed.
	ext := &fakeExtractor{
		fetchInfo:  extract.TrackInfo{Title: "Expected Title"},
		fetchName:  "something-else.mp3",
		fetchBytes: []byte("audio"),
	}

	p := NewPipeline(ext, t.TempDir(), 1024)

	artifact, err := p.Retrieve(context.Background(), "https://soundcloud.com/x/y", direct())
	require.NoError(t, err)

	assert.Equal(t, "Expected_Title.mp3", filepath.Base(artifact.AudioPath))
	assert.FileExists(t, artifact.AudioPath)

	artifact.Cleanup(context.Background())
}

func TestRetrieveThumbnail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	ext := &fakeExtractor{
		fetchInfo:  extract.TrackInfo{Title: "Song", ThumbnailURL: srv.URL + "/cover.jpg"},
		fetchName:  "Song.mp3",
		fetchBytes: []byte("audio"),
	}

	p := NewPipeline(ext, t.TempDir(), 1024)

	artifact, err := p.Retrieve(context.Background(), "https://soundcloud.com/x/y", direct())
	require.NoError(t, err)

	require.NotEmpty(t, artifact.ThumbnailPath)
	assert.FileExists(t, artifact.ThumbnailPath)

	artifact.Cleanup(context.Background())
	assert.NoFileExists(t, artifact.ThumbnailPath)
}

func TestRetrieveThumbnailFailureNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ext := &fakeExtractor{
		fetchInfo:  extract.TrackInfo{Title: "Song", ThumbnailURL: srv.URL + "/cover.jpg"},
		fetchName:  "Song.mp3",
		fetchBytes: []byte("audio"),
	}

	p := NewPipeline(ext, t.TempDir(), 1024)

	artifact, err := p.Retrieve(context.Background(), "https://soundcloud.com/x/y", direct())
	require.NoError(t, err)
	assert.Empty(t, artifact.ThumbnailPath)

	artifact.Cleanup(context.Background())
}
