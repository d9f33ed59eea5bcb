// Package ytdlp drives the yt-dlp binary as the extraction/transcode
// collaborator.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/italolelis/trackbot/internal/extract"
	"github.com/italolelis/trackbot/internal/logctx"
)

const (
	defaultBinary        = "yt-dlp"
	defaultBitrate       = 128
	defaultSocketTimeout = 60 * time.Second
	defaultProbeTimeout  = 45 * time.Second
	defaultFetchTimeout  = 10 * time.Minute

	httpChunkSize = "1M"
)

type Client struct {
	binary        string
	bitrate       int
	socketTimeout time.Duration
	probeTimeout  time.Duration
	fetchTimeout  time.Duration
}

type Option func(*Client)

// WithBinary overrides the yt-dlp executable path.
func WithBinary(path string) Option {
	return func(c *Client) { c.binary = path }
}

// WithBitrate sets the target mp3 bitrate in kbit/s.
func WithBitrate(kbps int) Option {
	return func(c *Client) { c.bitrate = kbps }
}

// WithTimeouts sets the socket, probe and fetch timeout budgets.
func WithTimeouts(socket, probe, fetch time.Duration) Option {
	return func(c *Client) {
		c.socketTimeout = socket
		c.probeTimeout = probe
		c.fetchTimeout = fetch
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		binary:        defaultBinary,
		bitrate:       defaultBitrate,
		socketTimeout: defaultSocketTimeout,
		probeTimeout:  defaultProbeTimeout,
		fetchTimeout:  defaultFetchTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// trackJSON is the subset of yt-dlp's info JSON the bot cares about.
type trackJSON struct {
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
}

func (t trackJSON) info() extract.TrackInfo {
	return extract.TrackInfo{
		Title:        t.Title,
		Artist:       t.Uploader,
		ThumbnailURL: t.Thumbnail,
		Duration:     int(t.Duration),
	}
}

// Probe resolves track metadata without downloading the media.
func (c *Client) Probe(ctx context.Context, url string) (extract.TrackInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	out, err := c.run(ctx, c.probeArgs(url))
	if err != nil {
		return extract.TrackInfo{}, fmt.Errorf("failed to probe track: %w", err)
	}

	track, err := decodeTrack(out)
	if err != nil {
		return extract.TrackInfo{}, fmt.Errorf("failed to parse probe output: %w", err)
	}

	return track.info(), nil
}

// Fetch downloads the requested track, transcoded to mp3 at the configured
// bitrate, into req.OutputDir.
func (c *Client) Fetch(ctx context.Context, req extract.Request) (extract.TrackInfo, error) {
	logger := logctx.LoggerFromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	logger.Debug("invoking yt-dlp", "query", req.Query, "search", req.Search, "output_dir", req.OutputDir)

	out, err := c.run(ctx, c.fetchArgs(req))
	if err != nil {
		return extract.TrackInfo{}, fmt.Errorf("failed to fetch track: %w", err)
	}

	track, err := decodeTrack(out)
	if err != nil {
		return extract.TrackInfo{}, fmt.Errorf("failed to parse fetch output: %w", err)
	}

	return track.info(), nil
}

func (c *Client) probeArgs(url string) []string {
	return []string{
		"-J",
		"--no-warnings",
		"--skip-download",
		"--socket-timeout", strconv.Itoa(int(c.socketTimeout.Seconds())),
		url,
	}
}

func (c *Client) fetchArgs(req extract.Request) []string {
	args := []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", fmt.Sprintf("%dK", c.bitrate),
		"--no-warnings",
		"--socket-timeout", strconv.Itoa(int(c.socketTimeout.Seconds())),
		"--http-chunk-size", httpChunkSize,
		"--dump-json",
		"--no-simulate",
		"-o", req.OutputDir + "/%(title)s.%(ext)s",
	}

	query := req.Query
	if req.Search {
		// One result only; search queries must never expand to playlists.
		args = append(args, "--no-playlist")
		query = "ytsearch1:" + query
	}

	return append(args, query)
}

func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}

		return nil, fmt.Errorf("%s: %s", c.binary, msg)
	}

	return stdout.Bytes(), nil
}

// decodeTrack reads the first JSON object from yt-dlp's stdout. In search
// mode the tool prints one object per entry; only the first matters since
// searches are capped to a single result.
func decodeTrack(out []byte) (trackJSON, error) {
	var track trackJSON

	dec := json.NewDecoder(bytes.NewReader(out))
	if err := dec.Decode(&track); err != nil {
		return trackJSON{}, err
	}

	return track, nil
}
