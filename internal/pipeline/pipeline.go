// Package pipeline orchestrates one track retrieval: fetch via the
// extraction collaborator, locate the artifact on disk, grab the cover
// image, and guard the transport size limit.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/italolelis/trackbot/internal/extract"
	"github.com/italolelis/trackbot/internal/logctx"
	"github.com/italolelis/trackbot/internal/sanitize"
	"github.com/italolelis/trackbot/internal/service"
)

const (
	dirPerm = 0755

	thumbnailName    = "thumb.jpg"
	thumbnailTimeout = 30 * time.Second
)

// Artifact is the transcoded audio file (plus optional thumbnail) produced
// for one request. The pipeline owns it until it is handed to delivery; the
// caller must Cleanup it on every outcome.
type Artifact struct {
	RequestID     string
	Dir           string
	AudioPath     string
	ThumbnailPath string
	Size          int64
	Info          extract.TrackInfo
}

// Cleanup removes the artifact's request directory and everything in it.
// Unconditional: disk usage stays bounded even when sends fail.
func (a *Artifact) Cleanup(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	if err := os.RemoveAll(a.Dir); err != nil {
		logger.Error("failed to remove request directory", "dir", a.Dir, "err", err)

		return
	}

	logger.Debug("request directory removed", "dir", a.Dir)
}

type Pipeline struct {
	extractor   extract.Extractor
	downloadDir string
	maxSize     int64
	httpClient  *http.Client
}

func NewPipeline(extractor extract.Extractor, downloadDir string, maxSize int64) *Pipeline {
	return &Pipeline{
		extractor:   extractor,
		downloadDir: downloadDir,
		maxSize:     maxSize,
		httpClient:  &http.Client{Timeout: thumbnailTimeout},
	}
}

// Retrieve fetches the track behind rawURL into a fresh per-request
// directory and returns the located artifact. Every request gets its own
// subdirectory keyed by request ID, so concurrent requests can never
// cross-deliver files.
func (p *Pipeline) Retrieve(ctx context.Context, rawURL string, svc service.Service) (*Artifact, error) {
	requestID := uuid.NewString()
	dir := filepath.Join(p.downloadDir, requestID)

	logger := logctx.LoggerFromContext(ctx).With("request_id", requestID, "service", svc.DisplayName)
	ctx = logctx.WithLogger(ctx, logger)

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create request directory: %w", err)
	}

	artifact, err := p.retrieve(ctx, rawURL, svc, requestID, dir)
	if err != nil {
		// Failed requests must not leave files behind.
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logger.Error("failed to remove request directory", "dir", dir, "err", rmErr)
		}

		return nil, err
	}

	return artifact, nil
}

func (p *Pipeline) retrieve(ctx context.Context, rawURL string, svc service.Service, requestID, dir string) (*Artifact, error) {
	logger := logctx.LoggerFromContext(ctx)

	var info extract.TrackInfo

	if svc.NeedsSearch {
		// DRM-protected catalogs: resolve metadata first, then search.
		probed, err := p.extractor.Probe(ctx, rawURL)
		if err != nil {
			return nil, &MetadataError{URL: rawURL, Err: err}
		}

		if !probed.Resolved() {
			return nil, &MetadataError{URL: rawURL}
		}

		query := strings.TrimSpace(probed.Title + " " + probed.Artist)

		logger.Info("searching for track", "query", query)

		fetched, err := p.extractor.Fetch(ctx, extract.Request{Query: query, Search: true, OutputDir: dir})
		if err != nil {
			return nil, &ExtractionError{Query: query, Reason: "collaborator failed", Err: err}
		}

		// The probe knows the real title and artist; the search hit only
		// fills in what the probe couldn't.
		info = probed
		if info.ThumbnailURL == "" {
			info.ThumbnailURL = fetched.ThumbnailURL
		}

		if info.Duration == 0 {
			info.Duration = fetched.Duration
		}
	} else {
		fetched, err := p.extractor.Fetch(ctx, extract.Request{Query: rawURL, OutputDir: dir})
		if err != nil {
			return nil, &ExtractionError{Query: rawURL, Reason: "collaborator failed", Err: err}
		}

		info = fetched
	}

	audioPath, size, err := p.locate(ctx, dir, info.Title)
	if err != nil {
		return nil, err
	}

	logger.Info("artifact located", "path", audioPath, "size", humanize.Bytes(uint64(size)))

	if size > p.maxSize {
		return nil, &ArtifactTooLargeError{Path: audioPath, Size: size, Limit: p.maxSize}
	}

	return &Artifact{
		RequestID:     requestID,
		Dir:           dir,
		AudioPath:     audioPath,
		ThumbnailPath: p.fetchThumbnail(ctx, dir, info.ThumbnailURL),
		Size:          size,
		Info:          info,
	}, nil
}

// locate finds the transcoded file inside the request directory. The
// collaborator normalizes codecs and extensions internally, so the final
// name is not deterministically known: try the sanitized expected name
// first, then the newest mp3, then the newest file of any kind.
func (p *Pipeline) locate(ctx context.Context, dir, title string) (string, int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	expected := filepath.Join(dir, sanitize.Clean(title+".mp3"))
	if fi, err := os.Stat(expected); err == nil {
		return expected, fi.Size(), nil
	}

	found, size := newestFile(dir, ".mp3")
	if found == "" {
		found, size = newestFile(dir, "")
	}

	if found == "" {
		return "", 0, &ExtractionError{Query: title, Reason: "artifact not produced"}
	}

	// Rename to the sanitized name so the delivered filename is clean.
	if title != "" {
		if err := os.Rename(found, expected); err != nil {
			logger.Warn("failed to rename artifact, keeping original name", "from", found, "err", err)

			return found, size, nil
		}

		return expected, size, nil
	}

	return found, size, nil
}

func newestFile(dir, ext string) (string, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0
	}

	var (
		newest     string
		newestSize int64
		newestMod  time.Time
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if ext != "" && !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			continue
		}

		if newest == "" || fi.ModTime().After(newestMod) {
			newest = filepath.Join(dir, entry.Name())
			newestSize = fi.Size()
			newestMod = fi.ModTime()
		}
	}

	return newest, newestSize
}

// fetchThumbnail downloads the cover image next to the artifact. Failures
// are non-fatal and simply yield no thumbnail.
func (p *Pipeline) fetchThumbnail(ctx context.Context, dir, url string) string {
	if url == "" {
		return ""
	}

	logger := logctx.LoggerFromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Warn("failed to build thumbnail request", "url", url, "err", err)

		return ""
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.Warn("failed to fetch thumbnail", "url", url, "err", err)

		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("thumbnail fetch returned non-200", "url", url, "status", resp.StatusCode)

		return ""
	}

	path := filepath.Join(dir, thumbnailName)

	out, err := os.Create(path)
	if err != nil {
		logger.Warn("failed to create thumbnail file", "path", path, "err", err)

		return ""
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		logger.Warn("failed to save thumbnail", "path", path, "err", err)

		return ""
	}

	logger.Debug("thumbnail saved", "path", path)

	return path
}
